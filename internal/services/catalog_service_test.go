package services

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Collector
)

// sharedMetrics returns a process-wide collector; promauto registers into
// the default registry, so a second NewCollector would panic.
func sharedMetrics() *metrics.Collector {
	testMetricsOnce.Do(func() {
		testMetrics = metrics.NewCollector("test")
	})
	return testMetrics
}

func quietLogger() *logging.StructuredLogger {
	l := logging.NewStructuredLogger("test", "test", logging.FatalLevel)
	return l
}

func writeFiles(t *testing.T, dir string, names []string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func modisSpec(dir string, expectedTiles int) models.ProductSpec {
	return models.ProductSpec{
		Name:          "mod13q1",
		Directory:     dir,
		FileSuffix:    ".hdf",
		ID:            models.IDRule{SceneField: 1, TileField: 2},
		DateLayout:    "A2006002",
		ExpectedTiles: expectedTiles,
	}
}

func TestCatalogScan(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, []string{
		// Complete scene: three tiles against an expectation of three.
		"MOD13Q1.A2023100.h13v12.061.2023117032254.hdf",
		"MOD13Q1.A2023100.h13v13.061.2023117032254.hdf",
		"MOD13Q1.A2023100.h14v12.061.2023117032254.hdf",
		// Incomplete scene: one tile short.
		"MOD13Q1.A2023108.h13v12.061.2023125032254.hdf",
		"MOD13Q1.A2023108.h13v13.061.2023125032254.hdf",
		// Files that must not be counted.
		"MOD13Q1.A2023116.h13v12.061.txt",
		"README",
	})

	svc := NewCatalogService(quietLogger(), sharedMetrics())
	catalog, err := svc.Scan(context.Background(), modisSpec(dir, 3))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if catalog.FilesScanned != 5 {
		t.Errorf("FilesScanned = %d, want 5", catalog.FilesScanned)
	}
	wantComplete := []models.Scene{{ID: "A2023100", TileCount: 3}}
	if !reflect.DeepEqual(catalog.Classification.Complete, wantComplete) {
		t.Errorf("Complete = %+v, want %+v", catalog.Classification.Complete, wantComplete)
	}
	wantIncomplete := []models.Scene{{ID: "A2023108", TileCount: 2}}
	if !reflect.DeepEqual(catalog.Classification.Incomplete, wantIncomplete) {
		t.Errorf("Incomplete = %+v, want %+v", catalog.Classification.Incomplete, wantIncomplete)
	}

	tiles := catalog.TilesFor("A2023100")
	if len(tiles) != 3 {
		t.Fatalf("TilesFor(A2023100) = %d paths, want 3", len(tiles))
	}
	for i := 1; i < len(tiles); i++ {
		if tiles[i-1] >= tiles[i] {
			t.Errorf("tile paths not sorted: %q before %q", tiles[i-1], tiles[i])
		}
	}
	if tiles[0] != filepath.Join(dir, "MOD13Q1.A2023100.h13v12.061.2023117032254.hdf") {
		t.Errorf("tiles[0] = %q", tiles[0])
	}

	if catalog.TilesFor("A2023199") != nil {
		t.Error("TilesFor() for unknown scene should be nil")
	}
}

func TestCatalogScanOverpopulated(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, []string{
		"MOD13Q1.A2023100.h13v12.061.2023117032254.hdf",
		"MOD13Q1.A2023100.h13v12.061.2023117999999.hdf", // duplicate tile, reprocessed upstream
	})

	svc := NewCatalogService(quietLogger(), sharedMetrics())
	catalog, err := svc.Scan(context.Background(), modisSpec(dir, 1))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(catalog.Classification.Overpopulated) != 1 {
		t.Fatalf("Overpopulated = %+v, want one scene", catalog.Classification.Overpopulated)
	}
	if got := catalog.Classification.Overpopulated[0]; got.ID != "A2023100" || got.TileCount != 2 {
		t.Errorf("Overpopulated[0] = %+v", got)
	}
	if len(catalog.Classification.Complete) != 0 {
		t.Errorf("overpopulated scene must not also be complete: %+v", catalog.Classification.Complete)
	}
}

func TestCatalogScanMissingDirectory(t *testing.T) {
	svc := NewCatalogService(quietLogger(), sharedMetrics())
	spec := modisSpec(filepath.Join(t.TempDir(), "does-not-exist"), 9)

	if _, err := svc.Scan(context.Background(), spec); err == nil {
		t.Fatal("Scan() of missing directory should fail, not return an empty catalog")
	}
}
