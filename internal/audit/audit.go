// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package audit keeps a local SQLite trail of every pipeline run together with the
// clearance it ran under.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Record is one audited run.
type Record struct {
	RunID    string    `json:"run_id" yaml:"run_id"`
	At       time.Time `json:"at" yaml:"at"`
	Question string    `json:"question" yaml:"question"`
	Level    string    `json:"level" yaml:"level"`
	Type     string    `json:"query_type" yaml:"query_type"`
	// State is "done" or "aborted".
	State    string        `json:"state" yaml:"state"`
	Stage    string        `json:"stage,omitempty" yaml:"stage,omitempty"`
	Reason   string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Query    string        `json:"query,omitempty" yaml:"query,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Store appends and lists records.
type Store struct {
	db *sql.DB
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	at_ms       INTEGER NOT NULL,
	question    TEXT NOT NULL,
	level       TEXT NOT NULL,
	query_type  TEXT NOT NULL,
	state       TEXT NOT NULL,
	stage       TEXT NOT NULL,
	reason      TEXT NOT NULL,
	query       TEXT NOT NULL,
	duration_ms INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS runs_at ON runs(at_ms)`,
}

// Open opens or creates the audit database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// Concurrent batch runs serialize on a single writer.
	db.SetMaxOpenConns(1)

	stmts := append([]string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"}, schema...)
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize audit database: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Append stores r.
func (s *Store) Append(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, at_ms, question, level, query_type, state, stage, reason, query, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.At.UnixMilli(), r.Question, r.Level, r.Type, r.State, r.Stage, r.Reason, r.Query, r.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, at_ms, question, level, query_type, state, stage, reason, query, duration_ms
		 FROM runs ORDER BY at_ms DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var atMs, durMs int64
		if err := rows.Scan(&r.RunID, &atMs, &r.Question, &r.Level, &r.Type, &r.State, &r.Stage, &r.Reason, &r.Query, &durMs); err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(atMs)
		r.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}
