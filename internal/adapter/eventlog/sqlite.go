package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"realtime-agents/internal/domain"
)

// SQLiteLog implements domain.EventLog using SQLite. History survives
// restarts, so an events pane reopened by session id can be replayed.
type SQLiteLog struct {
	db      *sql.DB
	history int
}

// NewSQLiteLog opens (or creates) a SQLite database at dbPath and runs the
// schema migration. history bounds the rows kept per session.
func NewSQLiteLog(dbPath string, history int) (*SQLiteLog, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create event log dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open event log db: %w", err)
	}
	// Single writer; appends from concurrent sessions queue on the pool.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("event log pragma: %w", err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate event log db: %w", err)
	}
	if history <= 0 {
		history = 500
	}
	return &SQLiteLog{db: db, history: history}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			type       TEXT NOT NULL,
			payload    TEXT,
			created_at TEXT NOT NULL
		)
	`); err != nil {
		return err
	}
	_, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_events_session ON events (session_id, id)")
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteLog) Close() error {
	return s.db.Close()
}

// Append inserts event and trims the session to its history bound.
func (s *SQLiteLog) Append(ctx context.Context, event domain.Event) error {
	var payload sql.NullString
	if len(event.Payload) > 0 {
		payload = sql.NullString{String: string(event.Payload), Valid: true}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO events (session_id, type, payload, created_at) VALUES (?, ?, ?, ?)",
		event.SessionID, string(event.Type), payload, event.Timestamp.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM events WHERE session_id = ? AND id <= (
			SELECT id FROM events WHERE session_id = ? ORDER BY id DESC LIMIT 1 OFFSET ?
		)`, event.SessionID, event.SessionID, s.history,
	); err != nil {
		return fmt.Errorf("trim events: %w", err)
	}
	return tx.Commit()
}

// List returns up to limit of the session's most recent events, oldest first.
func (s *SQLiteLog) List(ctx context.Context, sessionID string, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, payload, created_at FROM (
			SELECT id, type, payload, created_at FROM events
			WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			typ, created string
			payload      sql.NullString
		)
		if err := rows.Scan(&typ, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev := domain.Event{Type: domain.EventType(typ), SessionID: sessionID}
		if payload.Valid {
			ev.Payload = []byte(payload.String)
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		events = append(events, ev)
	}
	return events, rows.Err()
}
