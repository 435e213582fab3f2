package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MissingMarker is written in place of a missing or unparseable statistic
// value. Rows keep their fixed width; values are never dropped.
const MissingMarker = "NA"

// FormatValue converts a raw statistic cell into the string appended to a
// store, per the variable's numeric policy. Empty and non-numeric cells
// become the missing marker rather than an error: a single bad cell must
// not lose the rest of the row.
func FormatValue(raw string, policy NumericPolicy) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "na") || strings.EqualFold(raw, "nan") {
		return MissingMarker
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return MissingMarker
	}
	switch policy {
	case PolicyRound2:
		return fmt.Sprintf("%.2f", v)
	default:
		return strconv.Itoa(int(math.Ceil(v)))
	}
}

// FormatColumn applies FormatValue to one value column of a parsed engine
// table. Rows short of the requested column yield the missing marker.
func FormatColumn(rows [][]string, column int, policy NumericPolicy) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		if column >= len(row) {
			out[i] = MissingMarker
			continue
		}
		out[i] = FormatValue(row[column], policy)
	}
	return out
}
