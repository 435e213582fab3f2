package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/internal/repository"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

// SceneColumn is the header name of every table's scene identifier column.
const SceneColumn = "modis_id"

// RasterBuilder mosaics a complete scene's tiles and derives the product
// raster that the zonal engine will reduce.
type RasterBuilder interface {
	BuildSceneRaster(ctx context.Context, spec models.ProductSpec, sceneID string, tilePaths []string, scratchDir string) (string, error)
}

// ZonalRequest describes one zonal statistics invocation. RasterPath is set
// for mosaicked products; ProductDir and SceneID identify the inputs for
// products the engine reads directly.
type ZonalRequest struct {
	Product      string
	SceneID      string
	Statistic    models.StatKind
	PolygonsPath string
	RasterPath   string
	ProductDir   string
	ScratchDir   string
}

// ZonalResult carries the engine's raw output rows. Column 0 of every row is
// the catchment id; statistic columns follow in engine order.
type ZonalResult struct {
	Rows [][]string
}

// CatchmentIDs returns column 0 of the result rows, in row order.
func (r *ZonalResult) CatchmentIDs() []string {
	ids := make([]string, len(r.Rows))
	for i, row := range r.Rows {
		if len(row) > 0 {
			ids[i] = row[0]
		}
	}
	return ids
}

// ZonalEngine reduces a raster (or a scene's raw files) over the catchment
// polygons and returns one row per catchment.
type ZonalEngine interface {
	Extract(ctx context.Context, req ZonalRequest) (*ZonalResult, error)
}

// CatchmentSource lists the catchment ids of a polygon file, in the file's
// feature order. Table headers are created from this order, so it must be
// deterministic.
type CatchmentSource interface {
	IDs(ctx context.Context, polygonsPath string) ([]string, error)
}

// ExtractionService runs the incremental extraction pipeline for a product:
// scan, classify, frontier, then per-scene mosaic, zonal reduction and
// append. Scene failures are isolated; one bad scene never stops the run.
type ExtractionService struct {
	catalog    *CatalogService
	builder    RasterBuilder
	engine     ZonalEngine
	catchments CatchmentSource
	journal    repository.RunJournal
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
	scratchDir string
	limit      int
}

// NewExtractionService creates a new extraction service. limit caps the
// number of frontier scenes processed per run; zero means no cap.
func NewExtractionService(
	catalog *CatalogService,
	builder RasterBuilder,
	engine ZonalEngine,
	catchments CatchmentSource,
	journal repository.RunJournal,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
	scratchDir string,
	limit int,
) *ExtractionService {
	return &ExtractionService{
		catalog:    catalog,
		builder:    builder,
		engine:     engine,
		catchments: catchments,
		journal:    journal,
		logger:     logger,
		metrics:    metricsCollector,
		scratchDir: scratchDir,
		limit:      limit,
	}
}

// ProcessProduct runs one full extraction pass over a product and returns
// the finished run record. Errors are returned only for conditions that
// invalidate the whole run (unreadable archive, unloadable polygons,
// unusable tables); per-scene problems are journaled and counted instead.
func (s *ExtractionService) ProcessProduct(ctx context.Context, spec models.ProductSpec) (*models.ExtractionRun, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid product %s: %w", spec.Name, err)
	}

	catalog, err := s.catalog.Scan(ctx, spec)
	if err != nil {
		return nil, err
	}

	stores, err := s.openStores(ctx, spec)
	if err != nil {
		return nil, err
	}

	recorders := make([]SceneRecorder, 0, len(stores))
	for _, pass := range spec.Passes {
		for _, v := range pass.Variables {
			recorders = append(recorders, stores[v.TablePath])
		}
	}

	frontier := Frontier(catalog.Classification.CompleteIDs(), recorders, s.limit)
	s.metrics.FrontierSize.WithLabelValues(spec.Name).Set(float64(len(frontier)))

	run, err := s.journal.StartRun(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to open run journal: %w", err)
	}
	ctx = logging.WithRunID(ctx, fmt.Sprintf("%s-%d", spec.Name, run.ID))

	s.logger.Info(ctx, "[EXTRACT_RUN_START] Frontier computed", logging.Fields{
		"product":  spec.Name,
		"complete": len(catalog.Classification.Complete),
		"frontier": len(frontier),
		"limit":    s.limit,
	})

	for _, sceneID := range frontier {
		if err := ctx.Err(); err != nil {
			s.logger.Warn(ctx, "[EXTRACT_RUN_CANCELLED] Run cancelled mid-frontier", logging.Fields{
				"product":  spec.Name,
				"scene_id": sceneID,
			})
			break
		}

		outcome := s.processScene(ctx, spec, catalog, stores, run, sceneID)
		switch outcome {
		case models.OutcomeAppended:
			run.ScenesAppended++
		case models.OutcomeAlreadyStored, models.OutcomeRaceSkipped:
			run.ScenesSkipped++
		default:
			run.ScenesFailed++
		}
		s.metrics.RecordSceneOutcome(spec.Name, string(outcome))
	}

	if err := s.journal.FinishRun(ctx, run); err != nil {
		s.logger.Error(ctx, "[EXTRACT_JOURNAL_ERROR] Failed to close run journal", logging.Fields{
			"run_id": run.ID,
		}, err)
	}

	s.logger.Info(ctx, "[EXTRACT_RUN_DONE] Product run finished", logging.Fields{
		"product":         spec.Name,
		"scenes_appended": run.ScenesAppended,
		"scenes_skipped":  run.ScenesSkipped,
		"scenes_failed":   run.ScenesFailed,
	})

	return run, nil
}

// PlanProduct computes the frontier a run would process without touching
// the scenes, the scratch area or the journal. Tables are still opened (and
// created when absent) so that the reported frontier matches a real run.
func (s *ExtractionService) PlanProduct(ctx context.Context, spec models.ProductSpec) ([]string, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid product %s: %w", spec.Name, err)
	}

	catalog, err := s.catalog.Scan(ctx, spec)
	if err != nil {
		return nil, err
	}

	stores, err := s.openStores(ctx, spec)
	if err != nil {
		return nil, err
	}

	recorders := make([]SceneRecorder, 0, len(stores))
	for _, store := range stores {
		recorders = append(recorders, store)
	}

	frontier := Frontier(catalog.Classification.CompleteIDs(), recorders, s.limit)
	s.metrics.FrontierSize.WithLabelValues(spec.Name).Set(float64(len(frontier)))
	return frontier, nil
}

// openStores opens or creates every variable table of the product, with
// headers derived from each pass's polygon catchment order.
func (s *ExtractionService) openStores(ctx context.Context, spec models.ProductSpec) (map[string]*repository.SeriesStore, error) {
	stores := make(map[string]*repository.SeriesStore)
	for _, pass := range spec.Passes {
		ids, err := s.catchments.IDs(ctx, pass.PolygonsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load catchments from %s: %w", pass.PolygonsPath, err)
		}
		for _, v := range pass.Variables {
			if _, ok := stores[v.TablePath]; ok {
				continue
			}
			store, err := repository.OpenOrCreateSeriesStore(v.TablePath, SceneColumn, ids)
			if err != nil {
				return nil, err
			}
			stores[v.TablePath] = store
		}
	}
	return stores, nil
}

// processScene runs the pipeline for one scene and returns its dominant
// outcome. Every (store, scene) decision is journaled individually.
func (s *ExtractionService) processScene(
	ctx context.Context,
	spec models.ProductSpec,
	catalog *SceneCatalog,
	stores map[string]*repository.SeriesStore,
	run *models.ExtractionRun,
	sceneID string,
) models.SceneEventOutcome {
	start := time.Now()
	defer func() {
		s.metrics.SceneDuration.WithLabelValues(spec.Name).Observe(time.Since(start).Seconds())
	}()

	isoDate, err := models.SceneDate(sceneID, spec.DateLayout)
	if err != nil {
		s.logger.Error(ctx, "[EXTRACT_BAD_SCENE_ID] Scene identifier does not encode a date", logging.Fields{
			"product":  spec.Name,
			"scene_id": sceneID,
		}, err)
		s.recordEvent(ctx, run, sceneID, "", "", models.OutcomeEngineFailed, err.Error(), start)
		return models.OutcomeEngineFailed
	}

	// Re-check under the current store state: a sibling variable appended
	// earlier in this run may already cover every table.
	pendingStore := false
	for _, store := range stores {
		if !store.Contains(sceneID) {
			pendingStore = true
			break
		}
	}
	if !pendingStore {
		s.recordEvent(ctx, run, sceneID, isoDate, "", models.OutcomeRaceSkipped, "all tables already record this scene", start)
		return models.OutcomeRaceSkipped
	}

	// Re-check the tiles on disk: the archive may have changed between the
	// scan and this scene's turn in the frontier.
	if spec.Mode == models.EngineRaster {
		present := 0
		for _, path := range catalog.TilesFor(sceneID) {
			if _, err := os.Stat(path); err == nil {
				present++
			}
		}
		if present != spec.ExpectedTiles {
			s.logger.Warn(ctx, fmt.Sprintf("[EXTRACT_RACE] %s not enough files. Files: %d", sceneID, present), logging.Fields{
				"product":  spec.Name,
				"scene_id": sceneID,
				"files":    present,
				"expected": spec.ExpectedTiles,
			})
			s.recordEvent(ctx, run, sceneID, isoDate, "", models.OutcomeRaceSkipped,
				fmt.Sprintf("tile count changed after scan: %d", present), start)
			return models.OutcomeRaceSkipped
		}
	}

	scratch, err := os.MkdirTemp(s.scratchDir, spec.Name+"_"+sceneID+"_")
	if err != nil {
		s.logger.Error(ctx, "[EXTRACT_SCRATCH_ERROR] Failed to create scene scratch directory", logging.Fields{
			"product":  spec.Name,
			"scene_id": sceneID,
		}, err)
		s.recordEvent(ctx, run, sceneID, isoDate, "", models.OutcomeEngineFailed, err.Error(), start)
		return models.OutcomeEngineFailed
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.logger.Warn(ctx, "[EXTRACT_SCRATCH_LEFTOVER] Failed to remove scene scratch directory", logging.Fields{
				"scratch": scratch,
			})
		}
	}()

	rasterPath := ""
	if spec.Mode == models.EngineRaster {
		mosaicTimer := s.metrics.NewTimer(s.metrics.MosaicDuration.WithLabelValues(spec.Name))
		rasterPath, err = s.builder.BuildSceneRaster(ctx, spec, sceneID, catalog.TilesFor(sceneID), scratch)
		mosaicTimer.ObserveDuration()
		if err != nil {
			s.logger.Error(ctx, "[EXTRACT_MOSAIC_ERROR] Failed to build scene raster", logging.Fields{
				"product":  spec.Name,
				"scene_id": sceneID,
				"tiles":    len(catalog.TilesFor(sceneID)),
			}, err)
			s.recordEvent(ctx, run, sceneID, isoDate, "", models.OutcomeMosaicFailed, err.Error(), start)
			return models.OutcomeMosaicFailed
		}
	}

	outcome := models.OutcomeRaceSkipped
	failed := false
	appended := false

	for _, pass := range spec.Passes {
		// Skip the engine call entirely when every table of this pass
		// already has the scene.
		passPending := false
		for _, v := range pass.Variables {
			if !stores[v.TablePath].Contains(sceneID) {
				passPending = true
				break
			}
		}
		if !passPending {
			continue
		}

		engineTimer := s.metrics.NewTimer(s.metrics.EngineCallDuration.WithLabelValues(spec.Name))
		result, err := s.engine.Extract(ctx, ZonalRequest{
			Product:      spec.Name,
			SceneID:      sceneID,
			Statistic:    pass.Statistic,
			PolygonsPath: pass.PolygonsPath,
			RasterPath:   rasterPath,
			ProductDir:   spec.Directory,
			ScratchDir:   scratch,
		})
		engineTimer.ObserveDuration()
		if err != nil {
			s.metrics.EngineCallsTotal.WithLabelValues(spec.Name, "error").Inc()
			s.logger.Error(ctx, "[EXTRACT_ENGINE_ERROR] Zonal extraction failed", logging.Fields{
				"product":  spec.Name,
				"scene_id": sceneID,
				"pass":     pass.Name,
			}, err)
			for _, v := range pass.Variables {
				if !stores[v.TablePath].Contains(sceneID) {
					s.recordEvent(ctx, run, sceneID, isoDate, v.TablePath, models.OutcomeEngineFailed, err.Error(), start)
				}
			}
			failed = true
			continue
		}
		s.metrics.EngineCallsTotal.WithLabelValues(spec.Name, "ok").Inc()

		ids := result.CatchmentIDs()
		for _, v := range pass.Variables {
			store := stores[v.TablePath]

			if store.Contains(sceneID) {
				s.recordEvent(ctx, run, sceneID, isoDate, v.TablePath, models.OutcomeAlreadyStored, "", start)
				continue
			}

			if err := store.Align(ids); err != nil {
				s.logger.Error(ctx, "[EXTRACT_MISALIGNED] Engine output does not match table columns", logging.Fields{
					"product":  spec.Name,
					"scene_id": sceneID,
					"table":    v.TablePath,
				}, err)
				s.recordEvent(ctx, run, sceneID, isoDate, v.TablePath, models.OutcomeMisaligned, err.Error(), start)
				failed = true
				continue
			}

			values := models.FormatColumn(result.Rows, v.ResultColumn, v.Policy)
			if err := store.Append(sceneID, isoDate, values); err != nil {
				s.logger.Error(ctx, "[EXTRACT_APPEND_ERROR] Failed to append row", logging.Fields{
					"product":  spec.Name,
					"scene_id": sceneID,
					"table":    v.TablePath,
				}, err)
				s.recordEvent(ctx, run, sceneID, isoDate, v.TablePath, models.OutcomeEngineFailed, err.Error(), start)
				failed = true
				continue
			}

			s.metrics.RowsAppendedTotal.WithLabelValues(v.Name).Inc()
			s.recordEvent(ctx, run, sceneID, isoDate, v.TablePath, models.OutcomeAppended, "", start)
			s.logger.Info(ctx, "[EXTRACT_APPENDED] Row appended", logging.Fields{
				"product":  spec.Name,
				"scene_id": sceneID,
				"date":     isoDate,
				"variable": v.Name,
				"table":    v.TablePath,
			})
			appended = true
		}
	}

	switch {
	case appended:
		outcome = models.OutcomeAppended
	case failed:
		outcome = models.OutcomeEngineFailed
	default:
		outcome = models.OutcomeAlreadyStored
	}
	return outcome
}

func (s *ExtractionService) recordEvent(
	ctx context.Context,
	run *models.ExtractionRun,
	sceneID, isoDate, tablePath string,
	outcome models.SceneEventOutcome,
	detail string,
	start time.Time,
) {
	event := &models.SceneEvent{
		RunID:          run.ID,
		SceneID:        sceneID,
		SceneDate:      isoDate,
		TablePath:      tablePath,
		Outcome:        outcome,
		Detail:         detail,
		ElapsedSeconds: time.Since(start).Seconds(),
	}
	if err := s.journal.RecordSceneEvent(ctx, event); err != nil {
		s.logger.Warn(ctx, "[EXTRACT_JOURNAL_ERROR] Failed to record scene event", logging.Fields{
			"scene_id": sceneID,
			"outcome":  string(outcome),
		})
	}
}
