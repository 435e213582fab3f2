package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

// SceneCatalog is the result of scanning one product directory: every scene
// classified by completeness, plus the tile paths backing each scene.
type SceneCatalog struct {
	Product        string
	Classification models.Classification
	tiles          map[string][]string
	FilesScanned   int
	FilesIgnored   int
}

// TilesFor returns the sorted tile paths of a scene, or nil if the scene
// was not seen during the scan.
func (c *SceneCatalog) TilesFor(sceneID string) []string {
	return c.tiles[sceneID]
}

// CatalogService scans raw product directories and groups tiles into scenes
type CatalogService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewCatalogService creates a new catalog service
func NewCatalogService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *CatalogService {
	return &CatalogService{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Scan lists the product directory once, groups files into scenes by the
// product's identifier rule and classifies each scene against the expected
// tile count. A missing or unreadable directory is fatal: an empty listing
// and an absent archive must never look the same.
func (s *CatalogService) Scan(ctx context.Context, spec models.ProductSpec) (*SceneCatalog, error) {
	start := time.Now()

	entries, err := os.ReadDir(spec.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read product directory %s: %w", spec.Directory, err)
	}

	catalog := &SceneCatalog{
		Product: spec.Name,
		tiles:   make(map[string][]string),
	}
	counts := make(map[string]int)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if spec.FileSuffix != "" && !strings.HasSuffix(name, spec.FileSuffix) {
			continue
		}
		catalog.FilesScanned++

		sceneID, ok := spec.ID.SceneID(name)
		if !ok {
			catalog.FilesIgnored++
			s.logger.Debug(ctx, "[CATALOG_SKIP_FILE] Filename does not match product pattern", logging.Fields{
				"product": spec.Name,
				"file":    name,
			})
			continue
		}

		counts[sceneID]++
		catalog.tiles[sceneID] = append(catalog.tiles[sceneID], filepath.Join(spec.Directory, name))
	}

	for id := range catalog.tiles {
		sort.Strings(catalog.tiles[id])
	}

	catalog.Classification = models.Classify(counts, spec.ExpectedTiles)

	for _, scene := range catalog.Classification.Incomplete {
		s.logger.Warn(ctx, fmt.Sprintf("[CATALOG_INCOMPLETE] %s not enough files. Files: %d", scene.ID, scene.TileCount), logging.Fields{
			"product":  spec.Name,
			"scene_id": scene.ID,
			"files":    scene.TileCount,
			"expected": spec.ExpectedTiles,
		})
	}
	for _, scene := range catalog.Classification.Overpopulated {
		s.logger.Warn(ctx, "[CATALOG_OVERPOPULATED] Scene has more files than expected", logging.Fields{
			"product":  spec.Name,
			"scene_id": scene.ID,
			"files":    scene.TileCount,
			"expected": spec.ExpectedTiles,
		})
	}

	s.metrics.RecordClassification(spec.Name,
		len(catalog.Classification.Complete),
		len(catalog.Classification.Incomplete),
		len(catalog.Classification.Overpopulated),
	)

	s.logger.Info(ctx, "[CATALOG_SCAN] Product directory scanned", logging.Fields{
		"product":       spec.Name,
		"files":         catalog.FilesScanned,
		"ignored":       catalog.FilesIgnored,
		"complete":      len(catalog.Classification.Complete),
		"incomplete":    len(catalog.Classification.Incomplete),
		"overpopulated": len(catalog.Classification.Overpopulated),
		"duration_ms":   time.Since(start).Milliseconds(),
	})

	return catalog, nil
}
