package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hidrocl-platform/internal/models"
)

func TestDeduplicate(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, []string{
		// Same scene and grid cell, two processing timestamps.
		"MOD13Q1.A2023100.h13v12.061.2023117032254.hdf",
		"MOD13Q1.A2023100.h13v12.061.2023120999999.hdf",
		// Unique files that must survive.
		"MOD13Q1.A2023100.h13v13.061.2023117032254.hdf",
		"MOD13Q1.A2023108.h13v12.061.2023125032254.hdf",
	})

	svc := NewMaintenanceService(quietLogger(), sharedMetrics())
	spec := modisSpec(dir, 9)

	t.Run("dry run reports without deleting", func(t *testing.T) {
		result, err := svc.Deduplicate(context.Background(), spec, true)
		if err != nil {
			t.Fatalf("Deduplicate() error = %v", err)
		}
		if result.DuplicateSets != 1 || result.FilesRemoved != 0 {
			t.Errorf("result = %+v, want 1 duplicate set, 0 removed", result)
		}
		if len(result.FilesRemovable) != 1 {
			t.Fatalf("FilesRemovable = %v", result.FilesRemovable)
		}
		if _, err := os.Stat(result.FilesRemovable[0]); err != nil {
			t.Errorf("dry run must not delete: %v", err)
		}
	})

	t.Run("removes older duplicate keeps newest", func(t *testing.T) {
		result, err := svc.Deduplicate(context.Background(), spec, false)
		if err != nil {
			t.Fatalf("Deduplicate() error = %v", err)
		}
		if result.FilesRemoved != 1 {
			t.Errorf("FilesRemoved = %d, want 1", result.FilesRemoved)
		}

		if _, err := os.Stat(filepath.Join(dir, "MOD13Q1.A2023100.h13v12.061.2023117032254.hdf")); !os.IsNotExist(err) {
			t.Error("older duplicate should be removed")
		}
		for _, kept := range []string{
			"MOD13Q1.A2023100.h13v12.061.2023120999999.hdf",
			"MOD13Q1.A2023100.h13v13.061.2023117032254.hdf",
			"MOD13Q1.A2023108.h13v12.061.2023125032254.hdf",
		} {
			if _, err := os.Stat(filepath.Join(dir, kept)); err != nil {
				t.Errorf("%s should survive: %v", kept, err)
			}
		}
	})
}

func TestDeduplicateGridlessProduct(t *testing.T) {
	svc := NewMaintenanceService(quietLogger(), sharedMetrics())
	spec := modisSpec(t.TempDir(), 48)
	spec.ID = models.IDRule{SceneField: 4, SceneCut: "-", TileField: -1}

	if _, err := svc.Deduplicate(context.Background(), spec, true); err == nil {
		t.Error("Deduplicate() should refuse products without a grid cell token")
	}
}
