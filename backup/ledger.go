// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

package backup

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite3 driver
)

// ErrNotFound is returned when no backup matches a reference.
var ErrNotFound = errors.New("backup not found")

// timeLayout is fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Record describes one backup file.
type Record struct {
	ID        string    `json:"id" yaml:"id"`
	Config    string    `json:"config" yaml:"config"`
	Source    string    `json:"source" yaml:"source"`
	Path      string    `json:"path" yaml:"path"`
	Reason    string    `json:"reason" yaml:"reason"`
	Size      int64     `json:"size" yaml:"size"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Ledger stores backup records in a SQLite database.
type Ledger struct {
	path string
	db   *sql.DB
}

// OpenLedger opens (creating if needed) the ledger database at path.
func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	l := &Ledger{path: path, db: db}
	if err := l.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initializeSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS backups (
			id         TEXT PRIMARY KEY,
			config     TEXT NOT NULL,
			source     TEXT NOT NULL,
			path       TEXT NOT NULL UNIQUE,
			reason     TEXT NOT NULL,
			size       INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_backups_config ON backups(config);
		CREATE INDEX IF NOT EXISTS idx_backups_created_at ON backups(created_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create backups table: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.path
}

// Record inserts a backup record.
func (l *Ledger) Record(r *Record) error {
	_, err := l.db.Exec(
		`INSERT INTO backups (id, config, source, path, reason, size, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Config, r.Source, r.Path, r.Reason, r.Size, r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record backup: %w", err)
	}
	return nil
}

// List returns records newest first, optionally filtered by config name.
func (l *Ledger) List(config string, limit int) ([]Record, error) {
	query := "SELECT id, config, source, path, reason, size, created_at FROM backups WHERE 1=1"
	args := []interface{}{}

	if config != "" {
		query += " AND config = ?"
		args = append(args, config)
	}

	query += " ORDER BY created_at DESC, rowid DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	return records, rows.Err()
}

// Find returns the record whose ID equals ref or starts with it. A prefix
// must identify exactly one record.
func (l *Ledger) Find(ref string) (*Record, error) {
	if ref == "" {
		return nil, ErrNotFound
	}
	rows, err := l.db.Query(
		"SELECT id, config, source, path, reason, size, created_at FROM backups WHERE substr(id, 1, ?) = ? ORDER BY id = ? DESC, created_at DESC LIMIT 2",
		len(ref), ref, ref,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query backups: %w", err)
	}
	defer rows.Close()

	var found []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		if r.ID == ref {
			return r, nil
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("backup id prefix %q is ambiguous", ref)
	}
}

// Close closes the database connection
func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (*Record, error) {
	var r Record
	var created string
	if err := s.Scan(&r.ID, &r.Config, &r.Source, &r.Path, &r.Reason, &r.Size, &created); err != nil {
		return nil, fmt.Errorf("failed to scan backup row: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("invalid backup timestamp %q: %w", created, err)
	}
	r.CreatedAt = t
	return &r, nil
}
