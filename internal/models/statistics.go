package models

// CatchmentSummary holds descriptive statistics for one catchment's series
// in one variable table.
type CatchmentSummary struct {
	CatchmentID string  `json:"catchment_id"`
	Count       int     `json:"count"`
	Mean        float64 `json:"mean"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Median      float64 `json:"median"`
	StdDev      float64 `json:"std_dev"`
	P10         float64 `json:"p10"`
	P90         float64 `json:"p90"`
}

// VariableStatus describes the current state of one variable table.
type VariableStatus struct {
	Variable    string `json:"variable"`
	TablePath   string `json:"table_path"`
	RowCount    int    `json:"row_count"`
	Catchments  int    `json:"catchments"`
	LatestScene string `json:"latest_scene,omitempty"`
	LatestDate  string `json:"latest_date,omitempty"`
}
