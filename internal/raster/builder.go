package raster

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/airbusgeo/godal"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/pkg/logging"
)

// GodalBuilder mosaics scene tiles and derives the product raster through
// GDAL. Callers must have run godal.RegisterAll once.
type GodalBuilder struct {
	logger *logging.StructuredLogger
}

// NewGodalBuilder creates a new GDAL-backed scene raster builder
func NewGodalBuilder(logger *logging.StructuredLogger) *GodalBuilder {
	return &GodalBuilder{logger: logger}
}

// BuildSceneRaster reads every recipe band from every tile, mosaics each
// band over the scene extent, applies the product recipe and writes the
// result as a compressed GeoTIFF in the scene's scratch directory.
func (b *GodalBuilder) BuildSceneRaster(ctx context.Context, spec models.ProductSpec, sceneID string, tilePaths []string, scratchDir string) (string, error) {
	if len(tilePaths) == 0 {
		return "", fmt.Errorf("scene %s has no tiles", sceneID)
	}

	start := time.Now()

	var projection string
	bandGrids := make([]*Grid, 0, len(spec.Recipe.Bands))
	for _, bandName := range spec.Recipe.Bands {
		bandIndex, ok := spec.BandMap[bandName]
		if !ok {
			return "", &models.BandNotFoundError{Product: spec.Name, Band: bandName}
		}

		tiles := make([]*Grid, 0, len(tilePaths))
		for _, path := range tilePaths {
			if err := ctx.Err(); err != nil {
				return "", err
			}
			grid, proj, err := readBandGrid(path, bandName, bandIndex, spec.Name)
			if err != nil {
				return "", err
			}
			if projection == "" {
				projection = proj
			}
			tiles = append(tiles, grid)
		}

		mosaic, err := Mosaic(tiles)
		if err != nil {
			return "", fmt.Errorf("scene %s band %s: %w", sceneID, bandName, err)
		}
		bandGrids = append(bandGrids, mosaic)
	}

	derived, err := Apply(spec.Recipe, bandGrids)
	if err != nil {
		return "", fmt.Errorf("scene %s: %w", sceneID, err)
	}

	outPath := filepath.Join(scratchDir, spec.Name+"_"+sceneID+".tif")
	if err := writeGeoTIFF(outPath, derived, projection, spec.Recipe.CastInt); err != nil {
		return "", fmt.Errorf("scene %s: %w", sceneID, err)
	}

	b.logger.Debug(ctx, "[RASTER_BUILT] Scene raster written", logging.Fields{
		"product":     spec.Name,
		"scene_id":    sceneID,
		"tiles":       len(tilePaths),
		"width":       derived.Width,
		"height":      derived.Height,
		"path":        outPath,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return outPath, nil
}

// readBandGrid opens one tile and reads one band into a grid
func readBandGrid(path, bandName string, bandIndex int, product string) (*Grid, string, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open tile %s: %w", path, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	if bandIndex < 1 || bandIndex > len(bands) {
		return nil, "", &models.BandNotFoundError{Product: product, Band: bandName, Tile: path}
	}
	band := bands[bandIndex-1]

	xSize := band.Structure().SizeX
	ySize := band.Structure().SizeY
	data := make([]float64, xSize*ySize)
	if err := band.Read(0, 0, data, xSize, ySize); err != nil {
		return nil, "", fmt.Errorf("failed to read band %s of %s: %w", bandName, path, err)
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, "", fmt.Errorf("failed to read geotransform of %s: %w", path, err)
	}

	grid := &Grid{
		Data:    data,
		Width:   xSize,
		Height:  ySize,
		NoData:  -9999,
		OriginX: gt[0],
		OriginY: gt[3],
		PixelW:  gt[1],
		PixelH:  gt[5],
	}
	if nodata, ok := band.NoData(); ok {
		grid.NoData = nodata
	}

	return grid, ds.Projection(), nil
}

// writeGeoTIFF writes the derived grid as a single-band compressed GeoTIFF
func writeGeoTIFF(path string, grid *Grid, projection string, asInt bool) error {
	dtype := godal.Float64
	if asInt {
		dtype = godal.Int16
	}

	ds, err := godal.Create(godal.GTiff, path, 1, dtype, grid.Width, grid.Height,
		godal.CreationOption("COMPRESS=LZW", "TILED=YES"))
	if err != nil {
		return fmt.Errorf("failed to create raster %s: %w", path, err)
	}
	defer ds.Close()

	gt := [6]float64{grid.OriginX, grid.PixelW, 0, grid.OriginY, 0, grid.PixelH}
	if err := ds.SetGeoTransform(gt); err != nil {
		return fmt.Errorf("failed to set geotransform on %s: %w", path, err)
	}
	if projection != "" {
		if err := ds.SetProjection(projection); err != nil {
			return fmt.Errorf("failed to set projection on %s: %w", path, err)
		}
	}

	band := ds.Bands()[0]
	if err := band.SetNoData(grid.NoData); err != nil {
		return fmt.Errorf("failed to set nodata on %s: %w", path, err)
	}
	if err := band.Write(0, 0, grid.Data, grid.Width, grid.Height); err != nil {
		return fmt.Errorf("failed to write raster %s: %w", path, err)
	}

	return nil
}
