package services

// SceneRecorder reports whether a scene already has a row. Satisfied by the
// CSV series store.
type SceneRecorder interface {
	Contains(sceneID string) bool
	Path() string
}

// Frontier returns the complete scene ids that are missing from at least one
// of the given stores, sorted ascending (oldest scene first for MODIS and
// IMERG identifier shapes). The computation is a pure set difference, so a
// second call after processing returns only what is still pending.
func Frontier(completeIDs []string, stores []SceneRecorder, limit int) []string {
	pending := make([]string, 0, len(completeIDs))
	for _, id := range completeIDs {
		for _, store := range stores {
			if !store.Contains(id) {
				pending = append(pending, id)
				break
			}
		}
	}
	// completeIDs arrive sorted from classification; keep that order.
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}
