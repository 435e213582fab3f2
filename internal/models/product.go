package models

import (
	"fmt"
	"strings"
)

// EngineMode selects how the zonal-statistics engine is fed for a product.
type EngineMode string

const (
	// EngineRaster mosaics the scene's tiles into a working raster and
	// hands the engine that raster.
	EngineRaster EngineMode = "raster"
	// EngineDirect hands the engine the product directory and scene
	// identifier; the engine aggregates the scene's grids itself. Used for
	// sub-daily precipitation composites.
	EngineDirect EngineMode = "direct"
)

// StatKind names the statistic the engine is asked for. It selects the
// extraction script and determines the shape of the output table (quantile
// extractions return one value column per percentile).
type StatKind string

const (
	StatWeightedMean    StatKind = "weighted_mean"
	StatWeightedPercent StatKind = "weighted_percent"
	StatWeightedQuan    StatKind = "weighted_quantile"
	StatDailyMean       StatKind = "daily_mean"
)

// RecipeKind describes how a scene's working raster is derived from its
// tile bands.
type RecipeKind string

const (
	// RecipeBand extracts a single named band from every tile.
	RecipeBand RecipeKind = "band"
	// RecipeNormalizedDifference computes (a-b)/(a+b) per tile, clipped to
	// [-1,1] and nodata-masked after mosaicking.
	RecipeNormalizedDifference RecipeKind = "normalized_difference"
	// RecipeBinaryPresence maps cells equal to MatchValue to 1 and all
	// others to 0 (e.g. maximum snow extent).
	RecipeBinaryPresence RecipeKind = "binary_presence"
)

// RasterRecipe defines the working-raster derivation for a product.
// Band names are logical; they resolve through the product's BandMap.
type RasterRecipe struct {
	Kind       RecipeKind
	Bands      []string // one band, or two for a normalized difference
	MatchValue float64  // RecipeBinaryPresence only
	Scale      float64  // applied after mosaicking; 0 or 1 means no scaling
	CastInt    bool     // truncate to integer before persisting
}

// NumericPolicy converts a raw statistic cell into the value written to a
// store. Missing or unparseable cells always become the missing marker so
// row width stays fixed.
type NumericPolicy string

const (
	// PolicyCeiling rounds up to an integer (cover and index means).
	PolicyCeiling NumericPolicy = "ceiling"
	// PolicyRound2 keeps two decimals (magnitude sums).
	PolicyRound2 NumericPolicy = "round2"
)

// VariableSpec binds one output time series to a column of the engine's
// result table.
type VariableSpec struct {
	Name         string
	TablePath    string
	ResultColumn int // 1-based value column in the engine output
	Policy       NumericPolicy
}

// ExtractionPass is one engine invocation per scene: a statistic computed
// against one polygon set, feeding one or more stores at different column
// offsets.
type ExtractionPass struct {
	Name         string // scratch-file tag, e.g. "mean", "quan", "n", "s"
	Statistic    StatKind
	PolygonsPath string
	Variables    []VariableSpec
}

// IDRule extracts the scene identifier (and optionally the spatial grid
// token) from a raw tile filename.
type IDRule struct {
	// SceneField is the dot-delimited field carrying the scene identifier.
	SceneField int
	// SceneCut optionally splits the scene field again and keeps the first
	// part (IMERG encodes "<date>-S<time>" in one field).
	SceneCut string
	// TileField is the dot-delimited field carrying the grid-tile token,
	// or -1 for products without a spatial grid.
	TileField int
}

// SceneID extracts the scene identifier from a tile filename. The second
// return is false when the filename does not have enough fields.
func (r IDRule) SceneID(filename string) (string, bool) {
	parts := strings.Split(filename, ".")
	if r.SceneField >= len(parts) {
		return "", false
	}
	id := parts[r.SceneField]
	if r.SceneCut != "" {
		id = strings.SplitN(id, r.SceneCut, 2)[0]
	}
	if id == "" {
		return "", false
	}
	return id, true
}

// TileToken extracts the grid-tile token from a tile filename.
func (r IDRule) TileToken(filename string) (string, bool) {
	if r.TileField < 0 {
		return "", false
	}
	parts := strings.Split(filename, ".")
	if r.TileField >= len(parts) {
		return "", false
	}
	return parts[r.TileField], true
}

// ProductSpec is the data-driven description of one satellite product.
// The whole pipeline is parameterized by it; there is one spec per product
// instead of one script per product.
type ProductSpec struct {
	Name          string
	Directory     string
	FileSuffix    string
	ID            IDRule
	DateLayout    string
	ExpectedTiles int
	Mode          EngineMode
	Recipe        RasterRecipe
	// BandMap resolves logical band names to 1-based raster band indexes.
	// Validated when a tile is opened; a missing entry is a BandNotFoundError
	// at load time rather than a late lookup failure.
	BandMap map[string]int
	Passes  []ExtractionPass
}

// Validate checks the spec's internal consistency before a run.
func (p ProductSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("product spec missing name")
	}
	if p.Directory == "" {
		return fmt.Errorf("product %s: missing directory", p.Name)
	}
	if p.ExpectedTiles < 1 {
		return fmt.Errorf("product %s: expected tile count must be positive, got %d", p.Name, p.ExpectedTiles)
	}
	if len(p.Passes) == 0 {
		return fmt.Errorf("product %s: no extraction passes", p.Name)
	}
	if p.Mode == EngineRaster {
		want := 1
		if p.Recipe.Kind == RecipeNormalizedDifference {
			want = 2
		}
		if len(p.Recipe.Bands) != want {
			return fmt.Errorf("product %s: recipe %s needs %d band(s), got %d",
				p.Name, p.Recipe.Kind, want, len(p.Recipe.Bands))
		}
		for _, b := range p.Recipe.Bands {
			if _, ok := p.BandMap[b]; !ok {
				return &BandNotFoundError{Product: p.Name, Band: b}
			}
		}
	}
	for _, pass := range p.Passes {
		if pass.PolygonsPath == "" {
			return fmt.Errorf("product %s: pass %s missing polygon path", p.Name, pass.Name)
		}
		if len(pass.Variables) == 0 {
			return fmt.Errorf("product %s: pass %s has no variables", p.Name, pass.Name)
		}
		for _, v := range pass.Variables {
			if v.ResultColumn < 1 {
				return fmt.Errorf("product %s: variable %s: result column must be >= 1", p.Name, v.Name)
			}
		}
	}
	return nil
}

// Variables returns every variable of every pass, in pass order.
func (p ProductSpec) Variables() []VariableSpec {
	var out []VariableSpec
	for _, pass := range p.Passes {
		out = append(out, pass.Variables...)
	}
	return out
}
