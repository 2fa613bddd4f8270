package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"reply-gateway/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS api_logs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	caller_id TEXT    NOT NULL,
	success   INTEGER NOT NULL,
	cached    INTEGER NOT NULL,
	query     TEXT    NOT NULL,
	result    TEXT    NOT NULL,
	timestamp INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS exchanges (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	caller_id    TEXT    NOT NULL,
	user_message TEXT    NOT NULL,
	reply        TEXT    NOT NULL,
	timestamp    INTEGER NOT NULL
);`

// SQLiteAuditStore is a file-backed audit store for local runs.
type SQLiteAuditStore struct {
	db *sql.DB
}

// OpenSQLiteAuditStore opens (creating if needed) the database at path.
func OpenSQLiteAuditStore(ctx context.Context, path string) (*SQLiteAuditStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("repository: sqlite path must not be empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite: %w", err)
	}
	// One writer avoids SQLITE_BUSY between concurrent audit goroutines.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: sqlite ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: sqlite schema: %w", err)
	}
	return &SQLiteAuditStore{db: db}, nil
}

func (s *SQLiteAuditStore) RecordAttempt(ctx context.Context, rec domain.AuditRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO api_logs (caller_id, success, cached, query, result, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		rec.CallerID, rec.Success, rec.Cached, rec.Query, rec.Result, rec.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("repository: RecordAttempt: %w", err)
	}
	return nil
}

func (s *SQLiteAuditStore) SaveExchange(ctx context.Context, ex domain.Exchange) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO exchanges (caller_id, user_message, reply, timestamp) VALUES (?, ?, ?, ?)",
		ex.CallerID, ex.UserMessage, ex.Reply, ex.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("repository: SaveExchange: %w", err)
	}
	return nil
}

// RecentAttempts returns the newest attempt records for a caller, newest
// first.
func (s *SQLiteAuditStore) RecentAttempts(ctx context.Context, callerID string, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT caller_id, success, cached, query, result, timestamp FROM api_logs WHERE caller_id = ? ORDER BY id DESC LIMIT ?",
		callerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("repository: RecentAttempts query: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var (
			rec domain.AuditRecord
			ms  int64
		)
		if err := rows.Scan(&rec.CallerID, &rec.Success, &rec.Cached, &rec.Query, &rec.Result, &ms); err != nil {
			return nil, fmt.Errorf("repository: RecentAttempts scan: %w", err)
		}
		rec.Timestamp = unixMilliUTC(ms)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: RecentAttempts rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}
