package models

import "fmt"

// SchemaMismatchError means a store's persisted catchment header disagrees
// with the catchment set expected for its polygon grid. Fatal for that
// store; sibling stores are unaffected.
type SchemaMismatchError struct {
	TablePath string
	Expected  int
	Found     int
	Detail    string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("catchment header mismatch in %s (expected %d ids, found %d): %s",
		e.TablePath, e.Expected, e.Found, e.Detail)
}

// IsTransient returns false; a schema mismatch never heals on retry.
func (e *SchemaMismatchError) IsTransient() bool { return false }

// AlignmentError means the engine's output catchment order disagrees with a
// store's header order. The scene/store pair is skipped, never appended.
type AlignmentError struct {
	SceneID   string
	TablePath string
	Position  int
	Expected  string
	Found     string
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("scene %s: catchment order mismatch for %s at position %d (expected %s, found %s)",
		e.SceneID, e.TablePath, e.Position, e.Expected, e.Found)
}

func (e *AlignmentError) IsTransient() bool { return false }

// BandNotFoundError means a product recipe references a logical band the
// product's band map does not define, or a tile does not carry the mapped
// band index.
type BandNotFoundError struct {
	Product string
	Band    string
	Tile    string
}

func (e *BandNotFoundError) Error() string {
	if e.Tile != "" {
		return fmt.Sprintf("product %s: band %q not present in tile %s", e.Product, e.Band, e.Tile)
	}
	return fmt.Sprintf("product %s: band %q not defined in band map", e.Product, e.Band)
}

func (e *BandNotFoundError) IsTransient() bool { return false }

// ExternalToolError wraps a failed zonal-statistics engine invocation: a
// non-zero exit, a timeout, or an unparseable result table. The affected
// scene is skipped; the batch continues.
type ExternalToolError struct {
	SceneID string
	Stage   string // "invoke" or "parse"
	Output  string // trailing engine output, when available
	Err     error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("scene %s: zonal engine %s failed: %v", e.SceneID, e.Stage, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// IsTransient returns true; engine failures are often environmental and the
// scene is reconsidered on the next run.
func (e *ExternalToolError) IsTransient() bool { return true }
