package scratch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

// DefaultDirName is the scratch directory created under the home directory
// when no explicit path is configured.
const DefaultDirName = "tempHidroCL"

// Manager owns the scratch directory for intermediate rasters. The
// directory is never purged automatically: leftovers are evidence of
// crashed scenes and get reported, not deleted.
type Manager struct {
	dir     string
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewManager ensures the scratch directory exists and reports any leftover
// files from previous runs. An empty dir selects ~/tempHidroCL.
func NewManager(ctx context.Context, dir string, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*Manager, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory: %w", err)
		}
		dir = filepath.Join(home, DefaultDirName)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scratch directory %s: %w", dir, err)
	}

	m := &Manager{
		dir:     dir,
		logger:  logger,
		metrics: metricsCollector,
	}

	leftovers, err := m.countLeftovers()
	if err != nil {
		return nil, err
	}
	metricsCollector.ScratchLeftoverFiles.Set(float64(leftovers))
	if leftovers > 0 {
		logger.Warn(ctx, "[SCRATCH_LEFTOVERS] Scratch directory is not empty", logging.Fields{
			"dir":   dir,
			"files": leftovers,
		})
	}

	return m, nil
}

// Dir returns the scratch directory path
func (m *Manager) Dir() string { return m.dir }

func (m *Manager) countLeftovers() (int, error) {
	count := 0
	err := filepath.WalkDir(m.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to inspect scratch directory %s: %w", m.dir, err)
	}
	return count, nil
}
