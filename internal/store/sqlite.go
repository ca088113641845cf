package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const globalStatsID = "global"

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS interactions (
        id TEXT PRIMARY KEY, -- UUID
        kind TEXT NOT NULL CHECK (kind IN ('chat', 'document')),
        user_id TEXT NOT NULL,
        category TEXT,
        message TEXT,
        query TEXT,
        files_json TEXT, -- JSON array of file metadata
        response TEXT NOT NULL,
        processing_time_ms INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions (user_id, created_at);

    CREATE TABLE IF NOT EXISTS usage_stats (
        id TEXT PRIMARY KEY,
        total_consultas INTEGER NOT NULL DEFAULT 0,
        last_updated DATETIME NOT NULL
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// RecordInteraction inserts the interaction and bumps the global counter in
// one transaction.
func (s *SQLiteStore) RecordInteraction(ctx context.Context, rec *Interaction) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var filesJSON sql.NullString
	if len(rec.Files) > 0 {
		raw, err := json.Marshal(rec.Files)
		if err != nil {
			return fmt.Errorf("failed to encode file metadata: %w", err)
		}
		filesJSON = sql.NullString{String: string(raw), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO interactions (id, kind, user_id, category, message, query, files_json, response, processing_time_ms, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.UserID, nullIfEmpty(rec.Category), nullIfEmpty(rec.Message), nullIfEmpty(rec.Query),
		filesJSON, rec.Response, rec.ProcessingTimeMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO usage_stats (id, total_consultas, last_updated) VALUES (?, 1, ?)
         ON CONFLICT(id) DO UPDATE SET total_consultas = total_consultas + 1, last_updated = excluded.last_updated`,
		globalStatsID, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to increment usage stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit interaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*UsageStats, error) {
	var stats UsageStats
	err := s.db.QueryRowContext(ctx,
		"SELECT total_consultas, last_updated FROM usage_stats WHERE id = ?", globalStatsID,
	).Scan(&stats.TotalConsultas, &stats.LastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &UsageStats{}, nil
		}
		return nil, fmt.Errorf("failed to query usage stats: %w", err)
	}
	return &stats, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
