package models

import "time"

// ExtractionRun is one batch invocation of the extractor for one product,
// recorded in the run journal.
type ExtractionRun struct {
	ID              int64      `json:"id" db:"id"`
	Product         string     `json:"product" db:"product"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty" db:"finished_at"`
	ScenesAppended  int        `json:"scenes_appended" db:"scenes_appended"`
	ScenesSkipped   int        `json:"scenes_skipped" db:"scenes_skipped"`
	ScenesFailed    int        `json:"scenes_failed" db:"scenes_failed"`
}

// SceneEventOutcome is the terminal state of one (scene, store) step.
type SceneEventOutcome string

const (
	OutcomeAppended      SceneEventOutcome = "appended"
	OutcomeAlreadyStored SceneEventOutcome = "already_stored"
	OutcomeMisaligned    SceneEventOutcome = "misaligned"
	OutcomeIncomplete    SceneEventOutcome = "incomplete"
	OutcomeOverpopulated SceneEventOutcome = "overpopulated"
	OutcomeRaceSkipped   SceneEventOutcome = "race_skipped"
	OutcomeEngineFailed  SceneEventOutcome = "engine_failed"
	OutcomeMosaicFailed  SceneEventOutcome = "mosaic_failed"
)

// SceneEvent is one journal row: what happened to one scene against one
// store (or against the whole product when no store applies, e.g. an
// incomplete classification).
type SceneEvent struct {
	ID             int64             `json:"id" db:"id"`
	RunID          int64             `json:"run_id" db:"run_id"`
	SceneID        string            `json:"scene_id" db:"scene_id"`
	SceneDate      string            `json:"scene_date,omitempty" db:"scene_date"`
	TablePath      string            `json:"table_path,omitempty" db:"table_path"`
	Outcome        SceneEventOutcome `json:"outcome" db:"outcome"`
	Detail         string            `json:"detail,omitempty" db:"detail"`
	ElapsedSeconds float64           `json:"elapsed_seconds" db:"elapsed_seconds"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}
