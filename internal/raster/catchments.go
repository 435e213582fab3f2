package raster

import (
	"context"
	"fmt"

	"github.com/airbusgeo/godal"
)

// GodalCatchmentSource reads catchment ids from a polygon file's attribute
// table, in feature order. Table headers are derived from this order, so the
// polygon file must never be re-sorted once tables exist.
type GodalCatchmentSource struct {
	field string
}

// NewGodalCatchmentSource creates a catchment source reading the given
// attribute field, typically "gauge_id"
func NewGodalCatchmentSource(field string) *GodalCatchmentSource {
	return &GodalCatchmentSource{field: field}
}

// IDs returns the catchment ids of the polygon file in feature order
func (s *GodalCatchmentSource) IDs(ctx context.Context, polygonsPath string) ([]string, error) {
	ds, err := godal.Open(polygonsPath, godal.VectorOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to open polygons %s: %w", polygonsPath, err)
	}
	defer ds.Close()

	layers := ds.Layers()
	if len(layers) == 0 {
		return nil, fmt.Errorf("polygons %s have no layers", polygonsPath)
	}
	layer := layers[0]

	var ids []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		feature := layer.NextFeature()
		if feature == nil {
			break
		}
		fields := feature.Fields()
		field, ok := fields[s.field]
		if !ok {
			return nil, fmt.Errorf("polygons %s lack attribute %q", polygonsPath, s.field)
		}
		ids = append(ids, field.String())
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("polygons %s contain no features", polygonsPath)
	}

	return ids, nil
}
