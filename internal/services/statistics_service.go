package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"

	"hidrocl-platform/internal/models"
	"hidrocl-platform/internal/repository"
	"hidrocl-platform/pkg/logging"
	"hidrocl-platform/pkg/metrics"
)

// StatisticsService computes descriptive statistics over the variable tables
type StatisticsService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewStatisticsService creates a new statistics service
func NewStatisticsService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *StatisticsService {
	return &StatisticsService{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Summarize computes per-catchment descriptive statistics for one variable
// table. Missing markers are excluded; catchments whose series is entirely
// missing are omitted from the result.
func (s *StatisticsService) Summarize(ctx context.Context, variable string, store *repository.SeriesStore) ([]*models.CatchmentSummary, error) {
	startTime := time.Now()
	defer func() {
		s.metrics.StatsCalculationDuration.Observe(time.Since(startTime).Seconds())
	}()

	values, err := store.ReadValues()
	if err != nil {
		return nil, fmt.Errorf("failed to read table for %s: %w", variable, err)
	}

	summaries := make([]*models.CatchmentSummary, 0, len(values))
	for _, id := range store.CatchmentIDs() {
		series := values[id]
		if len(series) == 0 {
			continue
		}

		summary, err := summarizeSeries(id, series)
		if err != nil {
			s.logger.Error(ctx, "[STATS_CALC_ERROR] Failed to summarize series", logging.Fields{
				"variable":     variable,
				"catchment_id": id,
				"count":        len(series),
			}, err)
			continue
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CatchmentID < summaries[j].CatchmentID
	})

	s.logger.Info(ctx, "[STATS_CALC_COMPLETE] Table summarized", logging.Fields{
		"variable":    variable,
		"catchments":  len(summaries),
		"rows":        store.RowCount(),
		"duration_ms": time.Since(startTime).Milliseconds(),
	})

	return summaries, nil
}

func summarizeSeries(id string, series []float64) (*models.CatchmentSummary, error) {
	data := stats.Float64Data(series)

	mean, err := stats.Mean(data)
	if err != nil {
		return nil, err
	}
	min, err := stats.Min(data)
	if err != nil {
		return nil, err
	}
	max, err := stats.Max(data)
	if err != nil {
		return nil, err
	}
	median, err := stats.Median(data)
	if err != nil {
		return nil, err
	}
	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return nil, err
	}
	p10, err := stats.Percentile(data, 10)
	if err != nil {
		return nil, err
	}
	p90, err := stats.Percentile(data, 90)
	if err != nil {
		return nil, err
	}

	return &models.CatchmentSummary{
		CatchmentID: id,
		Count:       len(series),
		Mean:        mean,
		Min:         min,
		Max:         max,
		Median:      median,
		StdDev:      stdDev,
		P10:         p10,
		P90:         p90,
	}, nil
}
