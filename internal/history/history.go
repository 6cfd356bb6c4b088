// Copyright 2025 ArkApply Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history keeps a queryable run index in a SQLite database under
// the control directory. It is an audit supplement to the per-run receipt
// files: receipts hold the full detail, the index answers "what ran when"
// without parsing them all.
package history

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"arkapply/internal/util"
)

// DefaultBusyTimeout in milliseconds.
const DefaultBusyTimeout = 5000

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id        TEXT PRIMARY KEY,
		status        TEXT NOT NULL,
		dry_run       INTEGER NOT NULL DEFAULT 0,
		started_at    INTEGER NOT NULL,
		finished_at   INTEGER NOT NULL,
		op_count      INTEGER NOT NULL,
		updated_count INTEGER NOT NULL,
		error         TEXT NOT NULL DEFAULT '',
		receipt_path  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
}

// RunModel represents one row of the runs table.
type RunModel struct {
	bun.BaseModel `bun:"table:runs"`

	RunID        string `bun:"run_id,pk"`
	Status       string `bun:"status,notnull"`
	DryRun       bool   `bun:"dry_run,notnull"`
	StartedAt    int64  `bun:"started_at,notnull"`  // Unix timestamp
	FinishedAt   int64  `bun:"finished_at,notnull"` // Unix timestamp
	OpCount      int64  `bun:"op_count,notnull"`
	UpdatedCount int64  `bun:"updated_count,notnull"`
	Error        string `bun:"error,notnull"`
	ReceiptPath  string `bun:"receipt_path,notnull"`
}

// Store is a handle on the run index database.
type Store struct {
	path string
	db   *sql.DB
	bun  *bun.DB
}

// Open opens (or creates) the run index at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("libsql", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create history schema: %w", err)
		}
	}
	return &Store{
		path: path,
		db:   db,
		bun:  bun.NewDB(db, sqlitedialect.New()),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// execPragma runs a PRAGMA via Query because libsql returns rows for
// PRAGMA statements.
func execPragma(db *sql.DB, pragma string) error {
	rows, err := db.Query(pragma)
	if err != nil {
		return err
	}
	rows.Close()
	return nil
}

// applyPragmas sets the PRAGMAs explicitly after opening; libsql ignores
// DSN-based _pragma=value parameters.
func applyPragmas(db *sql.DB) error {
	// busy_timeout first so the WAL conversion waits on transient locks.
	if err := execPragma(db, fmt.Sprintf("PRAGMA busy_timeout = %d", DefaultBusyTimeout)); err != nil {
		return fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if err := execPragma(db, "PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to set journal_mode=WAL: %w", err)
	}
	if err := execPragma(db, "PRAGMA synchronous=NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous=NORMAL: %w", err)
	}
	return nil
}

// Record upserts a run row. Retries transient "database is locked" errors
// from concurrent invocations sharing the control directory.
func (s *Store) Record(ctx context.Context, run *RunModel) error {
	return util.Retry(ctx, func() error {
		_, err := s.bun.NewInsert().
			Model(run).
			On("CONFLICT (run_id) DO UPDATE").
			Set("status = EXCLUDED.status").
			Set("finished_at = EXCLUDED.finished_at").
			Set("updated_count = EXCLUDED.updated_count").
			Set("error = EXCLUDED.error").
			Set("receipt_path = EXCLUDED.receipt_path").
			Exec(ctx)
		return err
	}, util.DatabaseRetryOptions(ctx)...)
}

// List returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]RunModel, error) {
	var runs []RunModel
	q := s.bun.NewSelect().
		Model(&runs).
		Order("started_at DESC").
		Order("run_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Scan(ctx)
	return runs, err
}

// Get retrieves a run by ID prefix. Returns nil when no run matches.
func (s *Store) Get(ctx context.Context, idPrefix string) (*RunModel, error) {
	var run RunModel
	err := s.bun.NewSelect().
		Model(&run).
		Where("run_id LIKE ?", idPrefix+"%").
		Order("started_at DESC").
		Limit(1).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
