package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"heartrisk/predlog"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp TEXT NOT NULL,
        inputs TEXT NOT NULL,
        prediction INTEGER NOT NULL,
        probability REAL NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
    `

// PredictionStore mirrors the prediction log into SQLite so recent rows can be
// queried without scanning the CSV file.
type PredictionStore struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the SQLite database at path.
func Open(path string) (*PredictionStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	database, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}
	// a single writer keeps inserts serialized without SQLITE_BUSY retries
	database.SetMaxOpenConns(1)

	if _, err := database.Exec(schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}
	return &PredictionStore{db: database, path: path}, nil
}

// Append inserts one prediction row.
func (s *PredictionStore) Append(ctx context.Context, entry predlog.LogEntry) error {
	inputs, err := json.Marshal([]float64(entry.Inputs))
	if err != nil {
		return &predlog.LogWriteError{Path: s.path, Err: err}
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO predictions (timestamp, inputs, prediction, probability)
        VALUES (?, ?, ?, ?)`,
		entry.Timestamp.UTC().Format(time.RFC3339Nano), string(inputs), entry.Prediction, entry.Probability)
	if err != nil {
		return &predlog.LogWriteError{Path: s.path, Err: err}
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *PredictionStore) Recent(ctx context.Context, limit int) ([]predlog.LogEntry, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT timestamp, inputs, prediction, probability
        FROM predictions
        ORDER BY id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]predlog.LogEntry, 0, limit)
	for rows.Next() {
		var (
			ts, inputs string
			entry      predlog.LogEntry
		)
		if err := rows.Scan(&ts, &inputs, &entry.Prediction, &entry.Probability); err != nil {
			return nil, err
		}
		if entry.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("row timestamp %q: %w", ts, err)
		}
		if err := json.Unmarshal([]byte(inputs), &entry.Inputs); err != nil {
			return nil, fmt.Errorf("row inputs: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *PredictionStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, err
}

func (s *PredictionStore) Close() error {
	return s.db.Close()
}
