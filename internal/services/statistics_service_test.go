package services

import (
	"context"
	"path/filepath"
	"testing"

	"hidrocl-platform/internal/repository"
)

func TestSummarize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ndvi.csv")
	store, err := repository.OpenOrCreateSeriesStore(path, SceneColumn, []string{"1001", "1002"})
	if err != nil {
		t.Fatal(err)
	}
	rows := []struct {
		scene, date string
		values      []string
	}{
		{"A2023100", "2023-04-10", []string{"10", "NA"}},
		{"A2023108", "2023-04-18", []string{"20", "NA"}},
		{"A2023116", "2023-04-26", []string{"30", "NA"}},
	}
	for _, r := range rows {
		if err := store.Append(r.scene, r.date, r.values); err != nil {
			t.Fatal(err)
		}
	}

	svc := NewStatisticsService(quietLogger(), sharedMetrics())
	summaries, err := svc.Summarize(context.Background(), "ndvi", store)
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	// 1002 is all missing and must be omitted.
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	s := summaries[0]
	if s.CatchmentID != "1001" || s.Count != 3 {
		t.Errorf("summary = %+v", s)
	}
	if s.Mean != 20 || s.Min != 10 || s.Max != 30 || s.Median != 20 {
		t.Errorf("summary stats = %+v", s)
	}
}
