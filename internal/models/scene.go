package models

import (
	"sort"
	"time"
)

// SceneClass is the completeness classification of a scene, decided solely
// by comparing its tile count against the product's expected tile count.
type SceneClass string

const (
	SceneComplete      SceneClass = "complete"
	SceneIncomplete    SceneClass = "incomplete"
	SceneOverpopulated SceneClass = "overpopulated"
)

// Scene is one acquisition instant of a product: the group of raw tile
// files sharing a scene identifier. Scenes are derived from a directory
// scan and never persisted.
type Scene struct {
	ID        string
	TileCount int
}

// ClassifyScene compares a tile count against the expected count.
func ClassifyScene(tileCount, expectedTiles int) SceneClass {
	switch {
	case tileCount == expectedTiles:
		return SceneComplete
	case tileCount < expectedTiles:
		return SceneIncomplete
	default:
		return SceneOverpopulated
	}
}

// Classification partitions the scenes of one scan into disjoint sets.
// Each slice is ordered by ascending scene identifier.
type Classification struct {
	Complete      []Scene
	Incomplete    []Scene
	Overpopulated []Scene
}

// Classify partitions per-identifier tile counts by the expected tile
// count. Every identifier in counts lands in exactly one of the three sets.
func Classify(counts map[string]int, expectedTiles int) Classification {
	ids := make([]string, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var c Classification
	for _, id := range ids {
		scene := Scene{ID: id, TileCount: counts[id]}
		switch ClassifyScene(scene.TileCount, expectedTiles) {
		case SceneComplete:
			c.Complete = append(c.Complete, scene)
		case SceneIncomplete:
			c.Incomplete = append(c.Incomplete, scene)
		default:
			c.Overpopulated = append(c.Overpopulated, scene)
		}
	}
	return c
}

// CompleteIDs returns the ordered identifiers of the complete scenes.
func (c Classification) CompleteIDs() []string {
	ids := make([]string, len(c.Complete))
	for i, s := range c.Complete {
		ids[i] = s.ID
	}
	return ids
}

// SceneDate decodes the date embedded in a scene identifier using the
// product's date layout (e.g. "A2006002" for MODIS year+day-of-year
// identifiers, "20060102" for daily precipitation composites) and returns
// it as an ISO YYYY-MM-DD string.
func SceneDate(sceneID, layout string) (string, error) {
	t, err := time.Parse(layout, sceneID)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}
