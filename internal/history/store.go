// Package history records relayed exchanges in SQLite for operator
// inspection. The relay never reads this store; the in-memory state stays
// authoritative and is intentionally lost on restart.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"instarelay/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.HistoryStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db, logger: logger}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exchanges (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id  TEXT NOT NULL,
		sender_id   TEXT NOT NULL,
		thread_id   TEXT,
		inbound     TEXT,
		reply       TEXT,
		chunks      INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_time ON exchanges(created_at);
	CREATE INDEX IF NOT EXISTS idx_exchanges_mid ON exchanges(message_id);

	CREATE TABLE IF NOT EXISTS retractions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id  TEXT NOT NULL,
		sender_id   TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) RecordExchange(ctx context.Context, ex domain.Exchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (message_id, sender_id, thread_id, inbound, reply, chunks, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ex.MessageID, ex.SenderID, ex.ThreadID, ex.Inbound, ex.Reply, ex.Chunks, ex.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) RecordRetraction(ctx context.Context, messageID, senderID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO retractions (message_id, sender_id, created_at) VALUES (?, ?, ?)`,
		messageID, senderID, time.Now(),
	)
	return err
}

func (s *SQLiteStore) RecentExchanges(ctx context.Context, limit int) ([]domain.Exchange, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, sender_id, thread_id, inbound, reply, chunks, created_at
		 FROM exchanges ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Exchange
	for rows.Next() {
		var ex domain.Exchange
		if err := rows.Scan(&ex.ID, &ex.MessageID, &ex.SenderID, &ex.ThreadID,
			&ex.Inbound, &ex.Reply, &ex.Chunks, &ex.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}

// Prune deletes exchanges and retractions older than the cutoff and returns
// the number of exchange rows removed.
func (s *SQLiteStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM exchanges WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM retractions WHERE created_at < ?`, olderThan); err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("history pruned", "removed", n, "cutoff", olderThan)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
