// Package auditlog keeps a local journal of accepted task mutations.
//
// The journal is best-effort: callers log a failed append and move on. It
// must never block or fail a user-visible task operation.
package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one accepted mutation.
type Entry struct {
	ID int64 `json:"id"`

	ChatID string `json:"chat_id"`

	// Action is a short, stable identifier: "add", "remove" or "clear".
	Action string `json:"action"`

	// Detail is a small human-readable summary (task text for add, the
	// removed text for remove). Never raw user payloads beyond the task
	// text itself.
	Detail string `json:"detail,omitempty"`

	// ListLen is the chat's list length after the mutation.
	ListLen int `json:"list_len"`

	CreatedAtUnixMs int64 `json:"created_at_unix_ms"`
}

type Options struct {
	Logger *slog.Logger

	// Path is the SQLite database file, e.g. <data-dir>/audit.sqlite.
	Path string
}

// Store is a SQLite-backed mutation journal.
type Store struct {
	log *slog.Logger
	db  *sql.DB
}

func Open(opts Options) (*Store, error) {
	p := filepath.Clean(strings.TrimSpace(opts.Path))
	if p == "" || p == "." {
		return nil, errors.New("missing audit db path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{log: logger, db: db}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS mutations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id TEXT NOT NULL,
	action TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	list_len INTEGER NOT NULL DEFAULT 0,
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mutations_created ON mutations(created_at_unix_ms DESC);
CREATE INDEX IF NOT EXISTS idx_mutations_chat ON mutations(chat_id, created_at_unix_ms DESC);
`
	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one entry. CreatedAtUnixMs is stamped here.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return errors.New("audit store not initialized")
	}
	chatID := strings.TrimSpace(e.ChatID)
	if chatID == "" {
		return errors.New("missing chat id")
	}
	action := strings.TrimSpace(e.Action)
	if action == "" {
		return errors.New("missing action")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mutations (chat_id, action, detail, list_len, created_at_unix_ms) VALUES (?, ?, ?, ?, ?)`,
		chatID, action, truncateDetail(e.Detail), e.ListLen, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("audit store not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, action, detail, list_len, created_at_unix_ms
		 FROM mutations ORDER BY created_at_unix_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ChatID, &e.Action, &e.Detail, &e.ListLen, &e.CreatedAtUnixMs); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the total number of recorded mutations.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("audit store not initialized")
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutations`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func truncateDetail(detail string) string {
	detail = strings.TrimSpace(detail)
	const max = 300
	runes := []rune(detail)
	if len(runes) <= max {
		return detail
	}
	return string(runes[:max])
}
