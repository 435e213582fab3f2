package raster

import (
	"math"
	"testing"

	"hidrocl-platform/internal/models"
)

func tile(originX, originY float64, values []float64) *Grid {
	g := NewGrid(2, 2, -9999)
	g.OriginX = originX
	g.OriginY = originY
	g.PixelW = 10
	g.PixelH = -10
	copy(g.Data, values)
	return g
}

func TestMosaic(t *testing.T) {
	// Two side-by-side 2x2 tiles.
	left := tile(0, 0, []float64{1, 2, 3, 4})
	right := tile(20, 0, []float64{5, 6, 7, 8})

	out, err := Mosaic([]*Grid{left, right})
	if err != nil {
		t.Fatalf("Mosaic() error = %v", err)
	}

	if out.Width != 4 || out.Height != 2 {
		t.Fatalf("mosaic shape = %dx%d, want 4x2", out.Width, out.Height)
	}
	want := []float64{1, 2, 5, 6, 3, 4, 7, 8}
	for i, w := range want {
		if out.Data[i] != w {
			t.Errorf("Data[%d] = %g, want %g", i, out.Data[i], w)
		}
	}
}

func TestMosaicWithGap(t *testing.T) {
	// Diagonal tiles leave nodata corners.
	a := tile(0, 0, []float64{1, 1, 1, 1})
	b := tile(20, -20, []float64{2, 2, 2, 2})

	out, err := Mosaic([]*Grid{a, b})
	if err != nil {
		t.Fatalf("Mosaic() error = %v", err)
	}
	if out.Width != 4 || out.Height != 4 {
		t.Fatalf("mosaic shape = %dx%d, want 4x4", out.Width, out.Height)
	}
	if out.At(3, 0) != -9999 {
		t.Errorf("gap pixel = %g, want nodata", out.At(3, 0))
	}
	if out.At(0, 0) != 1 || out.At(2, 2) != 2 {
		t.Errorf("tile pixels misplaced: %g, %g", out.At(0, 0), out.At(2, 2))
	}
}

func TestMosaicPixelSizeMismatch(t *testing.T) {
	a := tile(0, 0, []float64{1, 1, 1, 1})
	b := tile(20, 0, []float64{2, 2, 2, 2})
	b.PixelW = 5

	if _, err := Mosaic([]*Grid{a, b}); err == nil {
		t.Error("Mosaic() should refuse tiles with different pixel sizes")
	}
}

func TestApplyScale(t *testing.T) {
	band := tile(0, 0, []float64{412, -20, -9999, 7})
	recipe := models.RasterRecipe{Kind: models.RecipeBand, Bands: []string{"ndvi"}, Scale: 0.1, CastInt: true}

	out, err := Apply(recipe, []*Grid{band})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := []float64{41, -2, -9999, 0}
	for i, w := range want {
		if out.Data[i] != w {
			t.Errorf("Data[%d] = %g, want %g", i, out.Data[i], w)
		}
	}
}

func TestApplyNormalizedDifference(t *testing.T) {
	nir := tile(0, 0, []float64{3, 1, -9999, 0})
	mir := tile(0, 0, []float64{1, 0, 5, 0})
	recipe := models.RasterRecipe{
		Kind:    models.RecipeNormalizedDifference,
		Bands:   []string{"nir", "mir"},
		Scale:   1000,
		CastInt: true,
	}

	out, err := Apply(recipe, []*Grid{nir, mir})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	// (3-1)/(3+1) = 0.5 -> 500
	if out.Data[0] != 500 {
		t.Errorf("Data[0] = %g, want 500", out.Data[0])
	}
	// (1-0)/(1+0) = 1, clipped edge -> 1000
	if out.Data[1] != 1000 {
		t.Errorf("Data[1] = %g, want 1000", out.Data[1])
	}
	// nodata input masks output
	if out.Data[2] != -9999 {
		t.Errorf("Data[2] = %g, want nodata", out.Data[2])
	}
	// zero denominator masks output
	if out.Data[3] != -9999 {
		t.Errorf("Data[3] = %g, want nodata", out.Data[3])
	}
}

func TestApplyNormalizedDifferenceClipsBelow(t *testing.T) {
	nir := tile(0, 0, []float64{1, 1, 1, 1})
	mir := tile(0, 0, []float64{-3, 1, 1, 1})
	recipe := models.RasterRecipe{
		Kind:  models.RecipeNormalizedDifference,
		Bands: []string{"nir", "mir"},
		Scale: 1000,
	}

	out, err := Apply(recipe, []*Grid{nir, mir})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	// (1-(-3))/(1+(-3)) = -2, clipped to -1 -> -1000
	if out.Data[0] != -1000 {
		t.Errorf("Data[0] = %g, want -1000", out.Data[0])
	}
}

func TestApplyBinaryPresence(t *testing.T) {
	band := tile(0, 0, []float64{200, 25, -9999, 200})
	recipe := models.RasterRecipe{Kind: models.RecipeBinaryPresence, Bands: []string{"snow"}, MatchValue: 200}

	out, err := Apply(recipe, []*Grid{band})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := []float64{1, 0, -9999, 1}
	for i, w := range want {
		if out.Data[i] != w {
			t.Errorf("Data[%d] = %g, want %g", i, out.Data[i], w)
		}
	}
}

func TestApplyBandCountMismatch(t *testing.T) {
	band := tile(0, 0, []float64{1, 2, 3, 4})
	recipe := models.RasterRecipe{Kind: models.RecipeNormalizedDifference, Bands: []string{"nir", "mir"}}

	if _, err := Apply(recipe, []*Grid{band}); err == nil {
		t.Error("Apply() should refuse a band count mismatch")
	}
}

func TestGridIsNoData(t *testing.T) {
	g := NewGrid(1, 1, -9999)
	if !g.IsNoData(-9999) || !g.IsNoData(math.NaN()) {
		t.Error("IsNoData() should cover the nodata value and NaN")
	}
	if g.IsNoData(0) {
		t.Error("IsNoData(0) = true")
	}
}
