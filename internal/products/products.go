package products

import (
	"fmt"
	"path/filepath"

	"hidrocl-platform/internal/config"
	"hidrocl-platform/internal/models"
)

// Build assembles the product specs for every archive configured in cfg.
// Products whose directory is unset are left out; an empty result means
// nothing is configured at all.
func Build(cfg *config.Config) ([]models.ProductSpec, error) {
	table := func(name string) string {
		return filepath.Join(cfg.Paths.TablesDir, name+".csv")
	}

	var specs []models.ProductSpec

	if dir := cfg.Products.Mod13q1Dir; dir != "" {
		specs = append(specs,
			models.ProductSpec{
				Name:          "mod13q1_ndvi",
				Directory:     dir,
				FileSuffix:    ".hdf",
				ID:            models.IDRule{SceneField: 1, TileField: 2},
				DateLayout:    "A2006002",
				ExpectedTiles: 9,
				Mode:          models.EngineRaster,
				Recipe:        models.RasterRecipe{Kind: models.RecipeBand, Bands: []string{"ndvi"}, Scale: 0.1, CastInt: true},
				BandMap:       mod13q1Bands,
				Passes: []models.ExtractionPass{{
					Name:         "mean",
					Statistic:    models.StatWeightedMean,
					PolygonsPath: cfg.Paths.PolygonsSinusoidal,
					Variables: []models.VariableSpec{
						{Name: "ndvi", TablePath: table("ndvi"), ResultColumn: 1, Policy: models.PolicyCeiling},
					},
				}},
			},
			models.ProductSpec{
				Name:          "mod13q1_evi",
				Directory:     dir,
				FileSuffix:    ".hdf",
				ID:            models.IDRule{SceneField: 1, TileField: 2},
				DateLayout:    "A2006002",
				ExpectedTiles: 9,
				Mode:          models.EngineRaster,
				Recipe:        models.RasterRecipe{Kind: models.RecipeBand, Bands: []string{"evi"}, Scale: 0.1, CastInt: true},
				BandMap:       mod13q1Bands,
				Passes: []models.ExtractionPass{{
					Name:         "mean",
					Statistic:    models.StatWeightedMean,
					PolygonsPath: cfg.Paths.PolygonsSinusoidal,
					Variables: []models.VariableSpec{
						{Name: "evi", TablePath: table("evi"), ResultColumn: 1, Policy: models.PolicyCeiling},
					},
				}},
			},
			models.ProductSpec{
				Name:          "mod13q1_nbr",
				Directory:     dir,
				FileSuffix:    ".hdf",
				ID:            models.IDRule{SceneField: 1, TileField: 2},
				DateLayout:    "A2006002",
				ExpectedTiles: 9,
				Mode:          models.EngineRaster,
				Recipe: models.RasterRecipe{
					Kind:    models.RecipeNormalizedDifference,
					Bands:   []string{"nir", "mir"},
					Scale:   1000,
					CastInt: true,
				},
				BandMap: mod13q1Bands,
				Passes: []models.ExtractionPass{{
					Name:         "mean",
					Statistic:    models.StatWeightedMean,
					PolygonsPath: cfg.Paths.PolygonsSinusoidal,
					Variables: []models.VariableSpec{
						{Name: "nbr", TablePath: table("nbr"), ResultColumn: 1, Policy: models.PolicyCeiling},
					},
				}},
			},
		)
	}

	if dir := cfg.Products.Mod10a2Dir; dir != "" {
		specs = append(specs, models.ProductSpec{
			Name:          "mod10a2_snow",
			Directory:     dir,
			FileSuffix:    ".hdf",
			ID:            models.IDRule{SceneField: 1, TileField: 2},
			DateLayout:    "A2006002",
			ExpectedTiles: 9,
			Mode:          models.EngineRaster,
			Recipe: models.RasterRecipe{
				Kind:       models.RecipeBinaryPresence,
				Bands:      []string{"snow"},
				MatchValue: 200,
			},
			BandMap: map[string]int{"snow": 1},
			Passes: []models.ExtractionPass{
				{
					Name:         "n",
					Statistic:    models.StatWeightedPercent,
					PolygonsPath: cfg.Paths.PolygonsNorth,
					Variables: []models.VariableSpec{
						{Name: "snow_north", TablePath: table("snow_north"), ResultColumn: 1, Policy: models.PolicyRound2},
					},
				},
				{
					Name:         "s",
					Statistic:    models.StatWeightedPercent,
					PolygonsPath: cfg.Paths.PolygonsSouth,
					Variables: []models.VariableSpec{
						{Name: "snow_south", TablePath: table("snow_south"), ResultColumn: 1, Policy: models.PolicyRound2},
					},
				},
			},
		})
	}

	if dir := cfg.Products.Mcd43a3Dir; dir != "" {
		specs = append(specs, models.ProductSpec{
			Name:          "mcd43a3_albedo",
			Directory:     dir,
			FileSuffix:    ".hdf",
			ID:            models.IDRule{SceneField: 1, TileField: 2},
			DateLayout:    "A2006002",
			ExpectedTiles: 9,
			Mode:          models.EngineRaster,
			Recipe:        models.RasterRecipe{Kind: models.RecipeBand, Bands: []string{"albedo"}, Scale: 0.1, CastInt: true},
			BandMap:       map[string]int{"albedo": 1},
			Passes: []models.ExtractionPass{
				{
					Name:         "mean",
					Statistic:    models.StatWeightedMean,
					PolygonsPath: cfg.Paths.PolygonsSinusoidal,
					Variables: []models.VariableSpec{
						{Name: "albedo_mean", TablePath: table("albedo_mean"), ResultColumn: 1, Policy: models.PolicyCeiling},
					},
				},
				{
					Name:         "quan",
					Statistic:    models.StatWeightedQuan,
					PolygonsPath: cfg.Paths.PolygonsSinusoidal,
					Variables: []models.VariableSpec{
						{Name: "albedo_p10", TablePath: table("albedo_p10"), ResultColumn: 1, Policy: models.PolicyCeiling},
						{Name: "albedo_p25", TablePath: table("albedo_p25"), ResultColumn: 2, Policy: models.PolicyCeiling},
						{Name: "albedo_median", TablePath: table("albedo_median"), ResultColumn: 3, Policy: models.PolicyCeiling},
						{Name: "albedo_p75", TablePath: table("albedo_p75"), ResultColumn: 4, Policy: models.PolicyCeiling},
						{Name: "albedo_p90", TablePath: table("albedo_p90"), ResultColumn: 5, Policy: models.PolicyCeiling},
					},
				},
			},
		})
	}

	if dir := cfg.Products.ImergDir; dir != "" {
		specs = append(specs, models.ProductSpec{
			Name:          "imerg_precipitation",
			Directory:     dir,
			FileSuffix:    ".HDF5",
			ID:            models.IDRule{SceneField: 4, SceneCut: "-", TileField: -1},
			DateLayout:    "20060102",
			ExpectedTiles: 48,
			Mode:          models.EngineDirect,
			Passes: []models.ExtractionPass{{
				Name:         "pp",
				Statistic:    models.StatDailyMean,
				PolygonsPath: cfg.Paths.PolygonsGeographic,
				Variables: []models.VariableSpec{
					{Name: "precipitation", TablePath: table("precipitation"), ResultColumn: 1, Policy: models.PolicyRound2},
				},
			}},
		})
	}

	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}

	return specs, nil
}

// ByName returns the spec with the given name
func ByName(specs []models.ProductSpec, name string) (models.ProductSpec, error) {
	for _, spec := range specs {
		if spec.Name == name {
			return spec, nil
		}
	}
	return models.ProductSpec{}, fmt.Errorf("unknown product %q", name)
}

// mod13q1Bands maps the vegetation product's logical bands to their
// subdataset indexes: NDVI, EVI, then the reflectance bands, with the
// mid-infrared band last among the ones used here.
var mod13q1Bands = map[string]int{
	"ndvi": 1,
	"evi":  2,
	"nir":  5,
	"mir":  7,
}

// Scripts maps each statistic to its extraction script under the configured
// scripts directory.
func Scripts(scriptsDir string) map[models.StatKind]string {
	return map[models.StatKind]string{
		models.StatWeightedMean:    filepath.Join(scriptsDir, "WeightedMeanExtraction.R"),
		models.StatWeightedPercent: filepath.Join(scriptsDir, "WeightedPercentExtraction.R"),
		models.StatWeightedQuan:    filepath.Join(scriptsDir, "WeightedQuanExtraction.R"),
		models.StatDailyMean:       filepath.Join(scriptsDir, "DailyMeanExtraction.R"),
	}
}
