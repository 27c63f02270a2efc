// Package sink persists finalized result sets outside the stdout envelope
// stream: CSV and JSON files for hand-off, SQLite for long-lived runs.
package sink

import (
	"fmt"
	"path/filepath"
	"strings"

	"gleaner/internal/schema"
)

// Sink stores accepted records. Write receives the full result set once the
// run finalizes; Close releases underlying resources.
type Sink interface {
	Write(records []schema.ValidatedRecord) error
	Close() error
}

// Open creates a sink for the given path, choosing the format from the file
// extension: .csv, .json, .db / .sqlite.
func Open(path, runID string, columns []string) (Sink, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVFile(path, columns)
	case ".json":
		return NewJSONFile(path), nil
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteStore(path, runID)
	default:
		return nil, fmt.Errorf("cannot infer sink format from %q (want .csv, .json, or .db)", path)
	}
}
