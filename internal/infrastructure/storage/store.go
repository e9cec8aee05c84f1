// Package storage persists run results in SQLite or Postgres.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const memoryDSN = ":memory:"

// Store implements ports.ResultRepository and ports.ResultReader over
// database/sql. Writes are serialized so SQLite never reports a busy
// database to concurrent workers.
type Store struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	mu      sync.Mutex
}

// Open connects to dsn and creates the schema. DSNs starting with
// postgres:// or postgresql:// use lib/pq; anything else is a SQLite path,
// with ":memory:" opening a private in-memory database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, connStr := "sqlite", dsn
	var placeholder sq.PlaceholderFormat = sq.Question
	if isPostgres(dsn) {
		driver, placeholder = "postgres", sq.Dollar
	} else if dsn == memoryDSN {
		// A named shared-cache database keeps every pooled connection on
		// the same data while separate stores stay isolated.
		connStr = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dsn == memoryDSN {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if driver == "sqlite" && dsn != memoryDSN {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db, builder: sq.StatementBuilder.PlaceholderFormat(placeholder)}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// The schema sticks to types both SQLite and Postgres accept. Timestamps
// are RFC 3339 text in UTC.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		articles INTEGER NOT NULL DEFAULT 0,
		tallied INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		undetermined INTEGER NOT NULL DEFAULT 0,
		suppressed INTEGER NOT NULL DEFAULT 0,
		mean_icc DOUBLE PRECISION
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	`CREATE TABLE IF NOT EXISTS article_results (
		run_id TEXT NOT NULL,
		article_id TEXT NOT NULL,
		units INTEGER NOT NULL,
		undetermined INTEGER NOT NULL,
		suppressed INTEGER NOT NULL,
		off_context INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (run_id, article_id)
	)`,
	`CREATE TABLE IF NOT EXISTS article_tallies (
		run_id TEXT NOT NULL,
		article_id TEXT NOT NULL,
		frame TEXT NOT NULL,
		demographic TEXT NOT NULL,
		exemplar_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, article_id, frame, demographic)
	)`,
	`CREATE TABLE IF NOT EXISTS exemplars (
		run_id TEXT NOT NULL,
		article_id TEXT NOT NULL,
		unit_index INTEGER NOT NULL,
		frame TEXT NOT NULL,
		demographic TEXT NOT NULL,
		subgroups TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		method TEXT NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset INTEGER NOT NULL,
		quoted INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exemplars_run ON exemplars(run_id, article_id)`,
	`CREATE TABLE IF NOT EXISTS skipped_articles (
		run_id TEXT NOT NULL,
		article_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_skipped_run ON skipped_articles(run_id)`,
	`CREATE TABLE IF NOT EXISTS agreement (
		run_id TEXT NOT NULL,
		frame TEXT NOT NULL,
		demographic TEXT NOT NULL,
		n INTEGER NOT NULL,
		defined INTEGER NOT NULL,
		icc DOUBLE PRECISION NOT NULL,
		lower_bound DOUBLE PRECISION NOT NULL,
		upper_bound DOUBLE PRECISION NOT NULL,
		icc_k DOUBLE PRECISION NOT NULL,
		lower_k DOUBLE PRECISION NOT NULL,
		upper_k DOUBLE PRECISION NOT NULL,
		mean_abs_diff DOUBLE PRECISION NOT NULL,
		note TEXT NOT NULL,
		PRIMARY KEY (run_id, frame, demographic)
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema: %w", err)
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func exec(ctx context.Context, db execer, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.ExecContext(ctx, query, args...)
}
