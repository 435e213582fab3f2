package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/internal/repository"
)

type fakeBuilder struct {
	calls int
	fail  bool
}

func (b *fakeBuilder) BuildSceneRaster(_ context.Context, spec models.ProductSpec, sceneID string, tilePaths []string, scratchDir string) (string, error) {
	b.calls++
	if b.fail {
		return "", errors.New("tile grid mismatch")
	}
	if len(tilePaths) == 0 {
		return "", errors.New("no tiles for scene")
	}
	return filepath.Join(scratchDir, spec.Name+"_"+sceneID+".tif"), nil
}

type fakeEngine struct {
	calls int
	rows  [][]string
	fail  bool
}

func (e *fakeEngine) Extract(_ context.Context, req ZonalRequest) (*ZonalResult, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("Rscript exited with status 1")
	}
	return &ZonalResult{Rows: e.rows}, nil
}

type fakeCatchments struct {
	ids []string
}

func (c *fakeCatchments) IDs(context.Context, string) ([]string, error) {
	return c.ids, nil
}

func newTestService(t *testing.T, builder RasterBuilder, engine ZonalEngine, ids []string) *ExtractionService {
	t.Helper()
	return NewExtractionService(
		NewCatalogService(quietLogger(), sharedMetrics()),
		builder,
		engine,
		&fakeCatchments{ids: ids},
		repository.NewNoopJournal(),
		quietLogger(),
		sharedMetrics(),
		t.TempDir(),
		0,
	)
}

func testSpec(t *testing.T, dir string, tables ...models.VariableSpec) models.ProductSpec {
	t.Helper()
	return models.ProductSpec{
		Name:          "mod13q1",
		Directory:     dir,
		FileSuffix:    ".hdf",
		ID:            models.IDRule{SceneField: 1, TileField: 2},
		DateLayout:    "A2006002",
		ExpectedTiles: 3,
		Mode:          models.EngineRaster,
		Recipe:        models.RasterRecipe{Kind: models.RecipeBand, Bands: []string{"ndvi"}, Scale: 0.1, CastInt: true},
		BandMap:       map[string]int{"ndvi": 1},
		Passes: []models.ExtractionPass{{
			Name:         "mean",
			Statistic:    models.StatWeightedMean,
			PolygonsPath: "polys.gpkg",
			Variables:    tables,
		}},
	}
}

func sceneTiles(scene string, n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "MOD13Q1." + scene + ".h1" + string(rune('0'+i)) + "v10.061.2023117032254.hdf"
	}
	return names
}

func TestProcessProductAppendsCompleteScenes(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, sceneTiles("A2023100", 3)) // complete
	writeFiles(t, dir, sceneTiles("A2023108", 2)) // incomplete, must stay untouched

	builder := &fakeBuilder{}
	engine := &fakeEngine{rows: [][]string{
		{"1001", "41.2"},
		{"1002", "17.0"},
	}}
	tablePath := filepath.Join(t.TempDir(), "ndvi.csv")
	spec := testSpec(t, dir, models.VariableSpec{
		Name: "ndvi", TablePath: tablePath, ResultColumn: 1, Policy: models.PolicyCeiling,
	})

	svc := newTestService(t, builder, engine, []string{"1001", "1002"})
	run, err := svc.ProcessProduct(context.Background(), spec)
	if err != nil {
		t.Fatalf("ProcessProduct() error = %v", err)
	}

	if run.ScenesAppended != 1 || run.ScenesFailed != 0 {
		t.Errorf("run = %+v, want 1 appended, 0 failed", run)
	}
	if builder.calls != 1 || engine.calls != 1 {
		t.Errorf("builder calls = %d, engine calls = %d, want 1 each", builder.calls, engine.calls)
	}

	data, err := os.ReadFile(tablePath)
	if err != nil {
		t.Fatal(err)
	}
	want := "modis_id,date,1001,1002\nA2023100,2023-04-10,42,17\n"
	if string(data) != want {
		t.Errorf("table = %q, want %q", string(data), want)
	}

	// Second run: frontier is empty, nothing is re-extracted.
	run2, err := svc.ProcessProduct(context.Background(), spec)
	if err != nil {
		t.Fatalf("second ProcessProduct() error = %v", err)
	}
	if run2.ScenesAppended != 0 || run2.ScenesFailed != 0 {
		t.Errorf("second run = %+v, want all zero", run2)
	}
	if engine.calls != 1 {
		t.Errorf("engine calls after second run = %d, want still 1", engine.calls)
	}
}

func TestPlanProductReportsFrontierWithoutProcessing(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, sceneTiles("A2023100", 3)) // complete
	writeFiles(t, dir, sceneTiles("A2023108", 2)) // incomplete

	builder := &fakeBuilder{}
	engine := &fakeEngine{rows: [][]string{{"1001", "1.0"}}}
	tablePath := filepath.Join(t.TempDir(), "ndvi.csv")
	spec := testSpec(t, dir, models.VariableSpec{
		Name: "ndvi", TablePath: tablePath, ResultColumn: 1, Policy: models.PolicyCeiling,
	})

	svc := newTestService(t, builder, engine, []string{"1001"})
	frontier, err := svc.PlanProduct(context.Background(), spec)
	if err != nil {
		t.Fatalf("PlanProduct() error = %v", err)
	}

	if len(frontier) != 1 || frontier[0] != "A2023100" {
		t.Errorf("frontier = %v, want [A2023100]", frontier)
	}
	if builder.calls != 0 || engine.calls != 0 {
		t.Errorf("builder calls = %d, engine calls = %d, want 0 each", builder.calls, engine.calls)
	}

	data, err := os.ReadFile(tablePath)
	if err != nil {
		t.Fatal(err)
	}
	if want := "modis_id,date,1001\n"; string(data) != want {
		t.Errorf("table = %q, want header only %q", string(data), want)
	}
}

func TestProcessProductSiblingTableSkip(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, sceneTiles("A2023100", 3))

	tablesDir := t.TempDir()
	northPath := filepath.Join(tablesDir, "snow_north.csv")
	southPath := filepath.Join(tablesDir, "snow_south.csv")

	// North already records the scene; south does not.
	north, err := repository.OpenOrCreateSeriesStore(northPath, SceneColumn, []string{"1001", "1002"})
	if err != nil {
		t.Fatal(err)
	}
	if err := north.Append("A2023100", "2023-04-10", []string{"10.00", "20.00"}); err != nil {
		t.Fatal(err)
	}

	engine := &fakeEngine{rows: [][]string{
		{"1001", "33.456", "44.1"},
		{"1002", "55.0", "66.0"},
	}}
	spec := testSpec(t, dir,
		models.VariableSpec{Name: "snow_north", TablePath: northPath, ResultColumn: 1, Policy: models.PolicyRound2},
		models.VariableSpec{Name: "snow_south", TablePath: southPath, ResultColumn: 2, Policy: models.PolicyRound2},
	)

	svc := newTestService(t, &fakeBuilder{}, engine, []string{"1001", "1002"})
	run, err := svc.ProcessProduct(context.Background(), spec)
	if err != nil {
		t.Fatalf("ProcessProduct() error = %v", err)
	}

	if run.ScenesAppended != 1 {
		t.Errorf("run = %+v, want 1 appended", run)
	}

	northData, _ := os.ReadFile(northPath)
	if got := strings.Count(string(northData), "A2023100"); got != 1 {
		t.Errorf("north table records scene %d times, want 1 (no duplicate append)", got)
	}
	southData, _ := os.ReadFile(southPath)
	if want := "A2023100,2023-04-10,44.10,66.00\n"; !strings.HasSuffix(string(southData), want) {
		t.Errorf("south table = %q, want suffix %q", string(southData), want)
	}
}

func TestProcessProductMisalignmentIsolatesStore(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, sceneTiles("A2023100", 3))

	tablePath := filepath.Join(t.TempDir(), "ndvi.csv")
	if _, err := repository.OpenOrCreateSeriesStore(tablePath, SceneColumn, []string{"1001", "1002"}); err != nil {
		t.Fatal(err)
	}

	// Engine returns the catchments permuted against the table header.
	engine := &fakeEngine{rows: [][]string{
		{"1002", "1.0"},
		{"1001", "2.0"},
	}}
	spec := testSpec(t, dir, models.VariableSpec{
		Name: "ndvi", TablePath: tablePath, ResultColumn: 1, Policy: models.PolicyCeiling,
	})

	svc := newTestService(t, &fakeBuilder{}, engine, []string{"1001", "1002"})
	run, err := svc.ProcessProduct(context.Background(), spec)
	if err != nil {
		t.Fatalf("ProcessProduct() error = %v", err)
	}

	if run.ScenesFailed != 1 || run.ScenesAppended != 0 {
		t.Errorf("run = %+v, want 1 failed, 0 appended", run)
	}

	data, _ := os.ReadFile(tablePath)
	if strings.Contains(string(data), "A2023100") {
		t.Error("misaligned row must not be written")
	}
}

func TestProcessProductMosaicFailureIsolatesScene(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, sceneTiles("A2023100", 3))
	writeFiles(t, dir, sceneTiles("A2023108", 3))

	engine := &fakeEngine{rows: [][]string{{"1001", "1.0"}}}
	builder := &fakeBuilder{fail: true}
	tablePath := filepath.Join(t.TempDir(), "ndvi.csv")
	spec := testSpec(t, dir, models.VariableSpec{
		Name: "ndvi", TablePath: tablePath, ResultColumn: 1, Policy: models.PolicyCeiling,
	})

	svc := newTestService(t, builder, engine, []string{"1001"})
	run, err := svc.ProcessProduct(context.Background(), spec)
	if err != nil {
		t.Fatalf("ProcessProduct() error = %v", err)
	}

	// Both scenes fail at mosaic; the engine is never reached, and the run
	// itself still completes.
	if run.ScenesFailed != 2 {
		t.Errorf("run = %+v, want 2 failed", run)
	}
	if builder.calls != 2 {
		t.Errorf("builder calls = %d, want 2 (second scene still attempted)", builder.calls)
	}
	if engine.calls != 0 {
		t.Errorf("engine calls = %d, want 0", engine.calls)
	}
}

func TestProcessProductEngineFailure(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, sceneTiles("A2023100", 3))

	engine := &fakeEngine{fail: true}
	tablePath := filepath.Join(t.TempDir(), "ndvi.csv")
	spec := testSpec(t, dir, models.VariableSpec{
		Name: "ndvi", TablePath: tablePath, ResultColumn: 1, Policy: models.PolicyCeiling,
	})

	svc := newTestService(t, &fakeBuilder{}, engine, []string{"1001"})
	run, err := svc.ProcessProduct(context.Background(), spec)
	if err != nil {
		t.Fatalf("ProcessProduct() error = %v", err)
	}
	if run.ScenesFailed != 1 {
		t.Errorf("run = %+v, want 1 failed", run)
	}

	data, _ := os.ReadFile(tablePath)
	if strings.Contains(string(data), "A2023100") {
		t.Error("failed scene must not leave a row behind")
	}
}
