package products

import (
	"testing"

	"hidrocl-platform/internal/config"
	"hidrocl-platform/internal/models"
)

func fullConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Products.Mod13q1Dir = "/data/mod13q1"
	cfg.Products.Mod10a2Dir = "/data/mod10a2"
	cfg.Products.Mcd43a3Dir = "/data/mcd43a3"
	cfg.Products.ImergDir = "/data/imerg"
	cfg.Paths.TablesDir = "/tables"
	cfg.Paths.PolygonsSinusoidal = "/polys/sinu.gpkg"
	cfg.Paths.PolygonsGeographic = "/polys/geo.gpkg"
	cfg.Paths.PolygonsNorth = "/polys/north.gpkg"
	cfg.Paths.PolygonsSouth = "/polys/south.gpkg"
	return cfg
}

func TestBuildFullConfig(t *testing.T) {
	specs, err := Build(fullConfig())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	// Three vegetation variables, snow, albedo, precipitation.
	if len(specs) != 6 {
		t.Fatalf("Build() returned %d specs, want 6", len(specs))
	}

	nbr, err := ByName(specs, "mod13q1_nbr")
	if err != nil {
		t.Fatal(err)
	}
	if nbr.Recipe.Kind != models.RecipeNormalizedDifference || nbr.Recipe.Scale != 1000 {
		t.Errorf("nbr recipe = %+v", nbr.Recipe)
	}
	if nbr.ExpectedTiles != 9 {
		t.Errorf("nbr ExpectedTiles = %d, want 9", nbr.ExpectedTiles)
	}

	snow, err := ByName(specs, "mod10a2_snow")
	if err != nil {
		t.Fatal(err)
	}
	if len(snow.Passes) != 2 {
		t.Fatalf("snow passes = %d, want 2 (north and south)", len(snow.Passes))
	}
	if snow.Passes[0].PolygonsPath != "/polys/north.gpkg" || snow.Passes[1].PolygonsPath != "/polys/south.gpkg" {
		t.Errorf("snow polygons = %q, %q", snow.Passes[0].PolygonsPath, snow.Passes[1].PolygonsPath)
	}
	if snow.Recipe.MatchValue != 200 {
		t.Errorf("snow MatchValue = %g, want 200", snow.Recipe.MatchValue)
	}

	albedo, err := ByName(specs, "mcd43a3_albedo")
	if err != nil {
		t.Fatal(err)
	}
	if got := len(albedo.Variables()); got != 6 {
		t.Errorf("albedo variables = %d, want 6 (mean + five quantiles)", got)
	}
	quan := albedo.Passes[1]
	if quan.Statistic != models.StatWeightedQuan {
		t.Errorf("quantile pass statistic = %s", quan.Statistic)
	}
	for i, v := range quan.Variables {
		if v.ResultColumn != i+1 {
			t.Errorf("quantile variable %s column = %d, want %d", v.Name, v.ResultColumn, i+1)
		}
	}

	imerg, err := ByName(specs, "imerg_precipitation")
	if err != nil {
		t.Fatal(err)
	}
	if imerg.Mode != models.EngineDirect {
		t.Errorf("imerg mode = %s, want direct", imerg.Mode)
	}
	if imerg.ExpectedTiles != 48 {
		t.Errorf("imerg ExpectedTiles = %d, want 48", imerg.ExpectedTiles)
	}
	if imerg.ID.TileField != -1 {
		t.Errorf("imerg TileField = %d, want -1", imerg.ID.TileField)
	}
}

func TestBuildPartialConfig(t *testing.T) {
	cfg := fullConfig()
	cfg.Products.Mod10a2Dir = ""
	cfg.Products.Mcd43a3Dir = ""
	cfg.Products.ImergDir = ""

	specs, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(specs) != 3 {
		t.Errorf("Build() returned %d specs, want 3 vegetation specs", len(specs))
	}

	if _, err := ByName(specs, "imerg_precipitation"); err == nil {
		t.Error("ByName() should fail for unconfigured product")
	}
}

func TestBuildInvalidSpec(t *testing.T) {
	cfg := fullConfig()
	cfg.Paths.PolygonsSinusoidal = ""

	if _, err := Build(cfg); err == nil {
		t.Error("Build() should fail when a pass has no polygon path")
	}
}

func TestScripts(t *testing.T) {
	scripts := Scripts("/opt/scripts")
	if len(scripts) != 4 {
		t.Fatalf("Scripts() = %d entries, want 4", len(scripts))
	}
	if scripts[models.StatWeightedMean] != "/opt/scripts/WeightedMeanExtraction.R" {
		t.Errorf("weighted mean script = %q", scripts[models.StatWeightedMean])
	}
}
