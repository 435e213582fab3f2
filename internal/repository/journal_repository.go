package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/pkg/database"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

// RunJournal records extraction runs and per-scene outcomes. The CSV tables
// remain the canonical record of extracted values; the journal only keeps an
// operational history for the status API, so every implementation must be
// safe to disable.
type RunJournal interface {
	// Run operations
	StartRun(ctx context.Context, product string) (*models.ExtractionRun, error)
	FinishRun(ctx context.Context, run *models.ExtractionRun) error
	GetRun(ctx context.Context, runID int64) (*models.ExtractionRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.ExtractionRun, int, error)

	// Scene event operations
	RecordSceneEvent(ctx context.Context, event *models.SceneEvent) error
	ListSceneEvents(ctx context.Context, filter SceneEventFilter) ([]*models.SceneEvent, int, error)

	// Utility operations
	Enabled() bool
	HealthCheck(ctx context.Context) error
}

// RunFilter defines filters for querying extraction runs
type RunFilter struct {
	Product *string
	Limit   int
	Offset  int
}

// SceneEventFilter defines filters for querying scene events
type SceneEventFilter struct {
	RunID   *int64
	SceneID *string
	Outcome *models.SceneEventOutcome
	Limit   int
	Offset  int
}

// postgresJournal implements RunJournal on Postgres
type postgresJournal struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPostgresJournal creates a journal backed by Postgres
func NewPostgresJournal(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) RunJournal {
	return &postgresJournal{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// StartRun inserts a new run row and returns it with its assigned id
func (j *postgresJournal) StartRun(ctx context.Context, product string) (*models.ExtractionRun, error) {
	run := &models.ExtractionRun{
		Product:   product,
		StartedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO extraction_runs (product, started_at)
		VALUES ($1, $2)
		RETURNING id
	`

	err := j.db.DB().QueryRowContext(ctx, query, run.Product, run.StartedAt).Scan(&run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	j.logger.Debug(ctx, "[JOURNAL_START_RUN] Run opened", logging.Fields{
		"run_id":  run.ID,
		"product": run.Product,
	})

	return run, nil
}

// FinishRun stamps the run's end time and totals
func (j *postgresJournal) FinishRun(ctx context.Context, run *models.ExtractionRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	query := `
		UPDATE extraction_runs
		SET finished_at = $1,
		    scenes_appended = $2,
		    scenes_skipped = $3,
		    scenes_failed = $4
		WHERE id = $5
	`

	_, err := j.db.ExecContext(ctx, "finish_run", query,
		run.FinishedAt,
		run.ScenesAppended,
		run.ScenesSkipped,
		run.ScenesFailed,
		run.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	j.logger.Debug(ctx, "[JOURNAL_FINISH_RUN] Run closed", logging.Fields{
		"run_id":          run.ID,
		"scenes_appended": run.ScenesAppended,
		"scenes_skipped":  run.ScenesSkipped,
		"scenes_failed":   run.ScenesFailed,
	})

	return nil
}

// GetRun retrieves a single run by id
func (j *postgresJournal) GetRun(ctx context.Context, runID int64) (*models.ExtractionRun, error) {
	query := `
		SELECT id, product, started_at, finished_at,
		       scenes_appended, scenes_skipped, scenes_failed
		FROM extraction_runs
		WHERE id = $1
	`

	var run models.ExtractionRun
	err := j.db.GetContext(ctx, "get_run", &run, query, runID)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "extraction_run",
			ID:       fmt.Sprintf("%d", runID),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// ListRuns retrieves runs with filtering and pagination, newest first
func (j *postgresJournal) ListRuns(ctx context.Context, filter RunFilter) ([]*models.ExtractionRun, int, error) {
	query := `
		SELECT id, product, started_at, finished_at,
		       scenes_appended, scenes_skipped, scenes_failed
		FROM extraction_runs
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.Product != nil {
		query += fmt.Sprintf(" AND product = $%d", argNum)
		args = append(args, *filter.Product)
		argNum++
	}

	// Get total count
	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := j.db.GetContext(ctx, "count_runs", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	// Add ordering and pagination
	query += " ORDER BY started_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var runs []*models.ExtractionRun
	err = j.db.SelectContext(ctx, "list_runs", &runs, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, totalCount, nil
}

// RecordSceneEvent inserts one scene outcome row
func (j *postgresJournal) RecordSceneEvent(ctx context.Context, event *models.SceneEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO scene_events (
			run_id, scene_id, scene_date, table_path,
			outcome, detail, elapsed_seconds, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := j.db.DB().QueryRowContext(ctx, query,
		event.RunID,
		event.SceneID,
		event.SceneDate,
		event.TablePath,
		event.Outcome,
		event.Detail,
		event.ElapsedSeconds,
		event.CreatedAt,
	).Scan(&event.ID)

	if err != nil {
		return fmt.Errorf("failed to record scene event: %w", err)
	}

	j.metrics.JournalEventsTotal.WithLabelValues(string(event.Outcome)).Inc()

	return nil
}

// ListSceneEvents retrieves scene events with filtering and pagination
func (j *postgresJournal) ListSceneEvents(ctx context.Context, filter SceneEventFilter) ([]*models.SceneEvent, int, error) {
	query := `
		SELECT id, run_id, scene_id, scene_date, table_path,
		       outcome, detail, elapsed_seconds, created_at
		FROM scene_events
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.RunID != nil {
		query += fmt.Sprintf(" AND run_id = $%d", argNum)
		args = append(args, *filter.RunID)
		argNum++
	}

	if filter.SceneID != nil {
		query += fmt.Sprintf(" AND scene_id = $%d", argNum)
		args = append(args, *filter.SceneID)
		argNum++
	}

	if filter.Outcome != nil {
		query += fmt.Sprintf(" AND outcome = $%d", argNum)
		args = append(args, *filter.Outcome)
		argNum++
	}

	// Get total count
	countQuery := "SELECT COUNT(*) FROM (" + query + ") AS count_query"
	var totalCount int
	err := j.db.GetContext(ctx, "count_scene_events", &totalCount, countQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count scene events: %w", err)
	}

	// Add ordering and pagination
	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var events []*models.SceneEvent
	err = j.db.SelectContext(ctx, "list_scene_events", &events, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list scene events: %w", err)
	}

	return events, totalCount, nil
}

// Enabled reports that the journal is live
func (j *postgresJournal) Enabled() bool { return true }

// HealthCheck performs a journal health check
func (j *postgresJournal) HealthCheck(ctx context.Context) error {
	return j.db.HealthCheck(ctx)
}

// noopJournal is used when no database is configured. Extraction must run
// unchanged on hosts that only have the CSV tables.
type noopJournal struct{}

// NewNoopJournal creates a journal that discards everything
func NewNoopJournal() RunJournal {
	return &noopJournal{}
}

func (noopJournal) StartRun(_ context.Context, product string) (*models.ExtractionRun, error) {
	return &models.ExtractionRun{Product: product, StartedAt: time.Now().UTC()}, nil
}

func (noopJournal) FinishRun(context.Context, *models.ExtractionRun) error { return nil }

func (noopJournal) GetRun(_ context.Context, runID int64) (*models.ExtractionRun, error) {
	return nil, &NotFoundError{Resource: "extraction_run", ID: fmt.Sprintf("%d", runID)}
}

func (noopJournal) ListRuns(context.Context, RunFilter) ([]*models.ExtractionRun, int, error) {
	return nil, 0, nil
}

func (noopJournal) RecordSceneEvent(context.Context, *models.SceneEvent) error { return nil }

func (noopJournal) ListSceneEvents(context.Context, SceneEventFilter) ([]*models.SceneEvent, int, error) {
	return nil, 0, nil
}

func (noopJournal) Enabled() bool { return false }

func (noopJournal) HealthCheck(context.Context) error { return nil }

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
