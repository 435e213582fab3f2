package services

import (
	"context"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/internal/repository"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

// StatusService exposes the state of the variable tables and the run
// journal to the HTTP API.
type StatusService struct {
	journal repository.RunJournal
	stores  map[string]*repository.SeriesStore
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStatusService creates a new status service. stores maps variable name
// to its opened table.
func NewStatusService(journal repository.RunJournal, stores map[string]*repository.SeriesStore, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatusService {
	return &StatusService{
		journal: journal,
		stores:  stores,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Store returns the opened table for a variable, if any
func (s *StatusService) Store(variable string) (*repository.SeriesStore, bool) {
	store, ok := s.stores[variable]
	return store, ok
}

// VariableStatuses describes every opened variable table
func (s *StatusService) VariableStatuses(ctx context.Context) []*models.VariableStatus {
	statuses := make([]*models.VariableStatus, 0, len(s.stores))
	for variable, store := range s.stores {
		latestScene, latestDate := store.Latest()
		statuses = append(statuses, &models.VariableStatus{
			Variable:    variable,
			TablePath:   store.Path(),
			RowCount:    store.RowCount(),
			Catchments:  len(store.CatchmentIDs()),
			LatestScene: latestScene,
			LatestDate:  latestDate,
		})
	}
	return statuses
}

// GetRuns retrieves journaled runs with filtering
func (s *StatusService) GetRuns(ctx context.Context, filter repository.RunFilter) ([]*models.ExtractionRun, int, error) {
	return s.journal.ListRuns(ctx, filter)
}

// GetSceneEvents retrieves journaled scene events with filtering
func (s *StatusService) GetSceneEvents(ctx context.Context, filter repository.SceneEventFilter) ([]*models.SceneEvent, int, error) {
	return s.journal.ListSceneEvents(ctx, filter)
}

// JournalEnabled reports whether a run journal database is configured
func (s *StatusService) JournalEnabled() bool {
	return s.journal.Enabled()
}

// HealthCheck checks the journal connection when one is configured
func (s *StatusService) HealthCheck(ctx context.Context) error {
	return s.journal.HealthCheck(ctx)
}
