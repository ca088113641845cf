package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "asesor.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// interactionsByUser reads back a user's rows, newest first.
func interactionsByUser(t *testing.T, s *SQLiteStore, userID string) []Interaction {
	t.Helper()
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, kind, user_id, category, message, query, files_json, response, processing_time_ms, created_at
         FROM interactions WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		t.Fatalf("query interactions: %v", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var rec Interaction
		var category, message, query, filesJSON sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.UserID, &category, &message, &query, &filesJSON,
			&rec.Response, &rec.ProcessingTimeMs, &rec.CreatedAt); err != nil {
			t.Fatalf("scan interaction: %v", err)
		}
		rec.Category, rec.Message, rec.Query = category.String, message.String, query.String
		if filesJSON.Valid {
			if err := json.Unmarshal([]byte(filesJSON.String), &rec.Files); err != nil {
				t.Fatalf("decode file metadata for %s: %v", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate interactions: %v", err)
	}
	return out
}

func TestNewSQLiteStoreUnreachablePath(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missing", "asesor.db"))
	if err == nil {
		s.Close()
		t.Fatal("expected error for a database in a missing directory")
	}
	if s != nil {
		t.Fatalf("expected nil store on error, got %+v", s)
	}
}

func TestStatsEmptyStore(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalConsultas != 0 {
		t.Fatalf("expected 0 consultas, got %d", stats.TotalConsultas)
	}
}

func TestRecordInteractionIncrementsCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	chat := &Interaction{Kind: KindChat, UserID: "u1", Category: "deudas", Message: "hola", Response: "respuesta", ProcessingTimeMs: 12}
	if err := s.RecordInteraction(ctx, chat); err != nil {
		t.Fatalf("RecordInteraction chat: %v", err)
	}
	if chat.ID == "" || chat.CreatedAt.IsZero() {
		t.Fatalf("id and timestamp must be assigned: %+v", chat)
	}

	doc := &Interaction{
		Kind:     KindDocument,
		UserID:   "u1",
		Query:    "¿qué plazo tengo?",
		Files:    []FileMeta{{FileName: "demanda.pdf", FileType: "application/pdf", FileSize: 2048}},
		Response: "análisis",
	}
	if err := s.RecordInteraction(ctx, doc); err != nil {
		t.Fatalf("RecordInteraction document: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalConsultas != 2 {
		t.Fatalf("expected 2 consultas, got %d", stats.TotalConsultas)
	}

	recs := interactionsByUser(t, s, "u1")
	if len(recs) != 2 {
		t.Fatalf("expected 2 interactions, got %d", len(recs))
	}
	var found bool
	for _, r := range recs {
		if r.Kind == KindDocument {
			found = true
			if len(r.Files) != 1 || r.Files[0].FileName != "demanda.pdf" || r.Files[0].FileSize != 2048 {
				t.Fatalf("file metadata not persisted: %+v", r.Files)
			}
		}
	}
	if !found {
		t.Fatal("document interaction missing")
	}
}

func TestRecordInteractionRejectsUnknownKind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.RecordInteraction(ctx, &Interaction{Kind: "other", UserID: "u1", Response: "x"})
	if err == nil {
		t.Fatal("expected constraint failure")
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalConsultas != 0 {
		t.Fatalf("counter must roll back with the failed insert, got %d", stats.TotalConsultas)
	}
}
