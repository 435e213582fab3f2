package raster

import (
	"fmt"
	"math"
)

// Grid is one band of pixels anchored in a projected coordinate system.
// PixelH is negative for north-up rasters, matching the GDAL geotransform
// convention.
type Grid struct {
	Data    []float64
	Width   int
	Height  int
	NoData  float64
	OriginX float64
	OriginY float64
	PixelW  float64
	PixelH  float64
}

// NewGrid allocates a grid filled with its nodata value
func NewGrid(width, height int, noData float64) *Grid {
	g := &Grid{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
		NoData: noData,
	}
	for i := range g.Data {
		g.Data[i] = noData
	}
	return g
}

// At returns the pixel at (col, row)
func (g *Grid) At(col, row int) float64 {
	return g.Data[row*g.Width+col]
}

// Set writes the pixel at (col, row)
func (g *Grid) Set(col, row int, v float64) {
	g.Data[row*g.Width+col] = v
}

// IsNoData reports whether v is the grid's nodata value
func (g *Grid) IsNoData(v float64) bool {
	return v == g.NoData || math.IsNaN(v)
}

// Mosaic places the tiles of one scene into a single grid covering their
// union extent. Tiles must share pixel size; gaps between tiles stay nodata.
// Where tiles overlap, later tiles win, which is harmless for MODIS grids
// whose cells never overlap.
func Mosaic(tiles []*Grid) (*Grid, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("mosaic needs at least one tile")
	}

	first := tiles[0]
	if first.PixelW == 0 || first.PixelH == 0 {
		return nil, fmt.Errorf("mosaic tile has zero pixel size")
	}
	for _, t := range tiles[1:] {
		if !almostEqual(t.PixelW, first.PixelW) || !almostEqual(t.PixelH, first.PixelH) {
			return nil, fmt.Errorf("mosaic tiles disagree on pixel size: %g,%g vs %g,%g",
				t.PixelW, t.PixelH, first.PixelW, first.PixelH)
		}
	}

	minX, maxY := first.OriginX, first.OriginY
	maxX := first.OriginX + float64(first.Width)*first.PixelW
	minY := first.OriginY + float64(first.Height)*first.PixelH
	for _, t := range tiles[1:] {
		minX = math.Min(minX, t.OriginX)
		maxY = math.Max(maxY, t.OriginY)
		maxX = math.Max(maxX, t.OriginX+float64(t.Width)*t.PixelW)
		minY = math.Min(minY, t.OriginY+float64(t.Height)*t.PixelH)
	}

	width := int(math.Round((maxX - minX) / first.PixelW))
	height := int(math.Round((minY - maxY) / first.PixelH))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mosaic extent collapsed to %dx%d", width, height)
	}

	out := NewGrid(width, height, first.NoData)
	out.OriginX = minX
	out.OriginY = maxY
	out.PixelW = first.PixelW
	out.PixelH = first.PixelH

	for _, t := range tiles {
		colOff := int(math.Round((t.OriginX - minX) / first.PixelW))
		rowOff := int(math.Round((t.OriginY - maxY) / first.PixelH))
		for row := 0; row < t.Height; row++ {
			for col := 0; col < t.Width; col++ {
				v := t.At(col, row)
				if t.IsNoData(v) {
					continue
				}
				out.Set(colOff+col, rowOff+row, v)
			}
		}
	}

	return out, nil
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
