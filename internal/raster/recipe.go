package raster

import (
	"fmt"
	"math"

	"hidrocl-platform/internal/models"
)

// Apply derives the product raster from the mosaicked bands according to the
// recipe. bands are ordered as in the recipe's band list and must share the
// first band's shape.
func Apply(recipe models.RasterRecipe, bands []*Grid) (*Grid, error) {
	if len(bands) != len(recipe.Bands) {
		return nil, fmt.Errorf("recipe %s needs %d bands, got %d", recipe.Kind, len(recipe.Bands), len(bands))
	}
	for _, b := range bands[1:] {
		if b.Width != bands[0].Width || b.Height != bands[0].Height {
			return nil, fmt.Errorf("recipe bands disagree on shape: %dx%d vs %dx%d",
				b.Width, b.Height, bands[0].Width, bands[0].Height)
		}
	}

	switch recipe.Kind {
	case models.RecipeBand:
		return applyScale(recipe, bands[0]), nil
	case models.RecipeNormalizedDifference:
		return applyNormalizedDifference(recipe, bands[0], bands[1]), nil
	case models.RecipeBinaryPresence:
		return applyBinaryPresence(recipe, bands[0]), nil
	default:
		return nil, fmt.Errorf("unknown recipe kind %q", recipe.Kind)
	}
}

// applyScale rescales a single band, preserving nodata
func applyScale(recipe models.RasterRecipe, band *Grid) *Grid {
	out := cloneShape(band)
	for i, v := range band.Data {
		if band.IsNoData(v) {
			out.Data[i] = out.NoData
			continue
		}
		v *= recipe.Scale
		if recipe.CastInt {
			v = math.Trunc(v)
		}
		out.Data[i] = v
	}
	return out
}

// applyNormalizedDifference computes (a-b)/(a+b) clipped to [-1, 1], then
// rescales. A zero denominator or a nodata input masks the output pixel.
func applyNormalizedDifference(recipe models.RasterRecipe, a, b *Grid) *Grid {
	out := cloneShape(a)
	for i := range a.Data {
		av, bv := a.Data[i], b.Data[i]
		if a.IsNoData(av) || b.IsNoData(bv) {
			out.Data[i] = out.NoData
			continue
		}
		denom := av + bv
		if denom == 0 {
			out.Data[i] = out.NoData
			continue
		}
		v := (av - bv) / denom
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		if recipe.Scale != 0 {
			v *= recipe.Scale
		}
		if recipe.CastInt {
			v = math.Trunc(v)
		}
		out.Data[i] = v
	}
	return out
}

// applyBinaryPresence maps pixels equal to the match value to 1 and every
// other valid pixel to 0
func applyBinaryPresence(recipe models.RasterRecipe, band *Grid) *Grid {
	out := cloneShape(band)
	for i, v := range band.Data {
		if band.IsNoData(v) {
			out.Data[i] = out.NoData
			continue
		}
		if v == recipe.MatchValue {
			out.Data[i] = 1
		} else {
			out.Data[i] = 0
		}
	}
	return out
}

func cloneShape(g *Grid) *Grid {
	out := NewGrid(g.Width, g.Height, g.NoData)
	out.OriginX = g.OriginX
	out.OriginY = g.OriginY
	out.PixelW = g.PixelW
	out.PixelH = g.PixelH
	return out
}
