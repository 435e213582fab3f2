package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"hidrocl-platform/internal/models"
)

// DateColumn is the header name of every store's date column.
const DateColumn = "date"

// SeriesStore is one append-only per-variable time-series table: a CSV file
// whose header is `<id>,date,<catchment ids...>` and whose data rows are one
// processed scene each. Rows are only ever appended; the catchment column
// set is fixed for the life of the table.
type SeriesStore struct {
	path       string
	idColumn   string
	catchments []string
	recorded   map[string]struct{}
	rowCount   int
	lastScene  string
	lastDate   string
}

// OpenOrCreateSeriesStore loads an existing table or creates it with a
// header-only file. For an existing table the catchment columns must match
// catchmentIDs exactly (same ids, same order) or a SchemaMismatchError is
// returned: appending against a different catchment set would silently
// corrupt every future row.
func OpenOrCreateSeriesStore(path, idColumn string, catchmentIDs []string) (*SeriesStore, error) {
	s := &SeriesStore{
		path:       path,
		idColumn:   idColumn,
		catchments: append([]string(nil), catchmentIDs...),
		recorded:   make(map[string]struct{}),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := s.create(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", path, err)
	}
	defer f.Close()

	if err := s.load(f); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSeriesStore loads an existing table, taking the catchment column set
// from the persisted header as-is. Used by read-only consumers (the status
// API); the extraction path always opens with an expected catchment order.
func OpenSeriesStore(path, idColumn string) (*SeriesStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read table header %s: %w", path, err)
	}
	if len(header) < 2 {
		return nil, &models.SchemaMismatchError{
			TablePath: path,
			Detail:    "header lacks identifier and date columns",
		}
	}

	s := &SeriesStore{
		path:       path,
		idColumn:   idColumn,
		catchments: append([]string(nil), header[2:]...),
		recorded:   make(map[string]struct{}),
	}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", path, err)
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}
		s.recorded[row[0]] = struct{}{}
		s.rowCount++
		s.lastScene = row[0]
		if len(row) > 1 {
			s.lastDate = row[1]
		}
	}
	return s, nil
}

func (s *SeriesStore) create() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create table directory: %w", err)
		}
	}
	header := append([]string{s.idColumn, DateColumn}, s.catchments...)
	line := strings.Join(header, ",") + "\n"
	if err := os.WriteFile(s.path, []byte(line), 0644); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.path, err)
	}
	return nil
}

func (s *SeriesStore) load(f *os.File) error {
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return &models.SchemaMismatchError{
			TablePath: s.path,
			Expected:  len(s.catchments),
			Found:     0,
			Detail:    "table file is empty",
		}
	}
	if err != nil {
		return fmt.Errorf("failed to read table header %s: %w", s.path, err)
	}

	if len(header) != len(s.catchments)+2 {
		return &models.SchemaMismatchError{
			TablePath: s.path,
			Expected:  len(s.catchments),
			Found:     len(header) - 2,
			Detail:    "catchment column count differs",
		}
	}
	for i, id := range s.catchments {
		if normalizeCatchmentID(header[i+2]) != normalizeCatchmentID(id) {
			return &models.SchemaMismatchError{
				TablePath: s.path,
				Expected:  len(s.catchments),
				Found:     len(header) - 2,
				Detail:    fmt.Sprintf("column %d is %q, expected %q", i+2, header[i+2], id),
			}
		}
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read table %s: %w", s.path, err)
		}
		if len(row) == 0 || row[0] == "" {
			continue
		}
		s.recorded[row[0]] = struct{}{}
		s.rowCount++
		s.lastScene = row[0]
		if len(row) > 1 {
			s.lastDate = row[1]
		}
	}
	return nil
}

// Contains reports whether a scene identifier already has a row.
func (s *SeriesStore) Contains(sceneID string) bool {
	_, ok := s.recorded[sceneID]
	return ok
}

// Align compares the engine's catchment-id column, in order, against the
// store's header order. Catchment order is positional and never re-sorted;
// any disagreement means the polygon file and the table have diverged and
// the row must not be written.
func (s *SeriesStore) Align(resultIDs []string) error {
	if len(resultIDs) != len(s.catchments) {
		return &models.AlignmentError{
			TablePath: s.path,
			Position:  -1,
			Expected:  strconv.Itoa(len(s.catchments)) + " ids",
			Found:     strconv.Itoa(len(resultIDs)) + " ids",
		}
	}
	for i, id := range resultIDs {
		if normalizeCatchmentID(id) != normalizeCatchmentID(s.catchments[i]) {
			return &models.AlignmentError{
				TablePath: s.path,
				Position:  i,
				Expected:  s.catchments[i],
				Found:     id,
			}
		}
	}
	return nil
}

// Append writes one data row. values must already be aligned to the store's
// catchment order and have exactly one entry per catchment. The write is a
// single appended line; the file is never re-read or rewritten.
func (s *SeriesStore) Append(sceneID, isoDate string, values []string) error {
	if len(values) != len(s.catchments) {
		return fmt.Errorf("table %s: row for %s has %d values, want %d",
			s.path, sceneID, len(values), len(s.catchments))
	}
	if s.Contains(sceneID) {
		return fmt.Errorf("table %s: scene %s is already recorded", s.path, sceneID)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open table %s for append: %w", s.path, err)
	}
	defer f.Close()

	line := sceneID + "," + isoDate + "," + strings.Join(values, ",") + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append to table %s: %w", s.path, err)
	}

	s.recorded[sceneID] = struct{}{}
	s.rowCount++
	s.lastScene = sceneID
	s.lastDate = isoDate
	return nil
}

// Path returns the table's file path.
func (s *SeriesStore) Path() string { return s.path }

// CatchmentIDs returns a copy of the store's ordered catchment ids.
func (s *SeriesStore) CatchmentIDs() []string {
	return append([]string(nil), s.catchments...)
}

// RowCount returns the number of data rows.
func (s *SeriesStore) RowCount() int { return s.rowCount }

// Latest returns the most recently appended scene id and date.
func (s *SeriesStore) Latest() (sceneID, isoDate string) {
	return s.lastScene, s.lastDate
}

// ReadValues re-reads the table and returns, per catchment id, every
// numeric value of its column. Missing markers are skipped. Used by the
// summary-statistics service, never by the extraction path.
func (s *SeriesStore) ReadValues() (map[string][]float64, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	if _, err := r.Read(); err != nil { // header
		return nil, fmt.Errorf("failed to read table header %s: %w", s.path, err)
	}

	out := make(map[string][]float64, len(s.catchments))
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read table %s: %w", s.path, err)
		}
		for i, id := range s.catchments {
			col := i + 2
			if col >= len(row) {
				continue
			}
			v, err := strconv.ParseFloat(row[col], 64)
			if err != nil {
				continue
			}
			out[id] = append(out[id], v)
		}
	}
	return out, nil
}

// normalizeCatchmentID makes id comparison robust to formatting drift
// between the polygon attributes and the persisted header (e.g. "01001"
// vs "1001" for numeric gauge ids).
func normalizeCatchmentID(id string) string {
	id = strings.TrimSpace(id)
	if n, err := strconv.Atoi(id); err == nil {
		return strconv.Itoa(n)
	}
	return id
}
