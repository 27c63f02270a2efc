package sink

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"gleaner/internal/schema"
)

// SQLiteStore persists records keyed by run, one JSON payload per record.
// Useful for long runs whose output outlives the process.
type SQLiteStore struct {
	db    *sql.DB
	runID string
}

// NewSQLiteStore opens (or creates) the database and ensures the schema.
func NewSQLiteStore(path, runID string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db, runID: runID}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	ddl := `
	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		payload TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}

// Write replaces this run's records with the given set, preserving arrival
// order through the seq column.
func (s *SQLiteStore) Write(records []schema.ValidatedRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM records WHERE run_id = ?", s.runID); err != nil {
		return fmt.Errorf("failed to clear previous rows: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO records (run_id, seq, payload) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record %d: %w", i, err)
		}
		if _, err := stmt.Exec(s.runID, i, string(payload)); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Load returns a run's records in arrival order.
func (s *SQLiteStore) Load(runID string) ([]schema.ValidatedRecord, error) {
	rows, err := s.db.Query("SELECT payload FROM records WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []schema.ValidatedRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var record schema.ValidatedRecord
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			return nil, fmt.Errorf("corrupt record payload: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
