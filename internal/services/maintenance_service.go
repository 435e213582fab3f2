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

// MaintenanceService removes duplicated tiles from raw product directories.
// Upstream re-deliveries leave two files for the same (scene, grid cell)
// pair differing only in processing timestamp, which pushes the scene into
// the overpopulated class and blocks extraction until cleaned.
type MaintenanceService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// MaintenanceResult summarizes one deduplication pass
type MaintenanceResult struct {
	Product        string
	FilesScanned   int
	DuplicateSets  int
	FilesRemovable []string
	FilesRemoved   int
	Duration       time.Duration
}

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *MaintenanceService {
	return &MaintenanceService{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Deduplicate finds files sharing a (scene, grid cell) pair and keeps only
// the newest by filename, which sorts by processing timestamp for the
// supported products. With dryRun set, candidates are reported but nothing
// is deleted.
func (s *MaintenanceService) Deduplicate(ctx context.Context, spec models.ProductSpec, dryRun bool) (*MaintenanceResult, error) {
	startTime := time.Now()

	if spec.ID.TileField < 0 {
		return nil, fmt.Errorf("product %s has no grid cell token, nothing to deduplicate", spec.Name)
	}

	entries, err := os.ReadDir(spec.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read product directory %s: %w", spec.Directory, err)
	}

	result := &MaintenanceResult{Product: spec.Name}
	groups := make(map[string][]string)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if spec.FileSuffix != "" && !strings.HasSuffix(name, spec.FileSuffix) {
			continue
		}
		result.FilesScanned++

		sceneID, ok := spec.ID.SceneID(name)
		if !ok {
			continue
		}
		tile, ok := spec.ID.TileToken(name)
		if !ok {
			continue
		}
		key := sceneID + "/" + tile
		groups[key] = append(groups[key], name)
	}

	keys := make([]string, 0, len(groups))
	for key, names := range groups {
		if len(names) > 1 {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		names := groups[key]
		sort.Strings(names)
		result.DuplicateSets++

		// Keep the last name: highest processing timestamp wins.
		for _, name := range names[:len(names)-1] {
			path := filepath.Join(spec.Directory, name)
			result.FilesRemovable = append(result.FilesRemovable, path)

			if dryRun {
				s.logger.Info(ctx, "[MAINT_DUPLICATE] Would remove duplicated tile", logging.Fields{
					"product": spec.Name,
					"file":    name,
					"kept":    names[len(names)-1],
				})
				continue
			}

			if err := os.Remove(path); err != nil {
				s.logger.Error(ctx, "[MAINT_REMOVE_ERROR] Failed to remove duplicated tile", logging.Fields{
					"product": spec.Name,
					"file":    name,
				}, err)
				continue
			}
			result.FilesRemoved++
			s.logger.Info(ctx, "[MAINT_REMOVED] Duplicated tile removed", logging.Fields{
				"product": spec.Name,
				"file":    name,
				"kept":    names[len(names)-1],
			})
		}
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[MAINT_COMPLETE] Deduplication pass finished", logging.Fields{
		"product":        spec.Name,
		"files_scanned":  result.FilesScanned,
		"duplicate_sets": result.DuplicateSets,
		"files_removed":  result.FilesRemoved,
		"dry_run":        dryRun,
		"duration_ms":    result.Duration.Milliseconds(),
	})

	return result, nil
}
