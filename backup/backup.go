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

// Package backup copies WireGuard configs aside before and after edits and
// restores them on request. Copies are tracked in a SQLite ledger.
package backup

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/we-are-mono/ppwm/state"
)

// TimestampFormat is the suffix layout of backup file names.
const TimestampFormat = "20060102-150405"

// ErrTargetExists is returned when a restore would overwrite a config.
var ErrTargetExists = errors.New("restore target already exists")

var suffixPattern = regexp.MustCompile(`-\d{8}-\d{6}(?:-\d+)?$`)

// Service creates, lists and restores backups in one directory.
type Service struct {
	dir    string
	ledger *Ledger
	log    hclog.Logger
	now    func() time.Time
}

// NewService creates a backup service. ledger may be nil, in which case
// backups are still written but only discoverable by scanning dir.
func NewService(dir string, ledger *Ledger, log hclog.Logger) *Service {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Service{dir: dir, ledger: ledger, log: log, now: time.Now}
}

// Dir returns the backup directory.
func (s *Service) Dir() string {
	return s.dir
}

// Backup copies the file at path to <dir>/<name>-YYYYMMDD-HHMMSS. The
// source is never moved or modified.
func (s *Service) Backup(path, reason string) (*Record, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := s.now()
	base := filepath.Base(path) + "-" + now.Format(TimestampFormat)
	dst, size, err := s.copyUnique(path, base)
	if err != nil {
		return nil, err
	}

	r := &Record{
		ID:        uuid.NewString(),
		Config:    filepath.Base(path),
		Source:    path,
		Path:      dst,
		Reason:    reason,
		Size:      size,
		CreatedAt: now,
	}
	if s.ledger != nil {
		if err := s.ledger.Record(r); err != nil {
			// the copy is on disk either way
			s.log.Warn("backup not recorded in ledger", "path", dst, "error", err)
		}
	}
	s.log.Info("backup created", "path", dst, "source", path, "reason", reason)
	return r, nil
}

// copyUnique copies src to a new file named base, adding -2, -3... when
// a backup with the same timestamp already exists.
func (s *Service) copyUnique(src, base string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", 0, err
	}

	for n := 1; ; n++ {
		name := base
		if n > 1 {
			name += "-" + strconv.Itoa(n)
		}
		dst := filepath.Join(s.dir, name)
		out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("failed to create backup: %w", err)
		}

		size, err := io.Copy(out, in)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
			return "", 0, fmt.Errorf("failed to write backup: %w", err)
		}
		return dst, size, nil
	}
}

// List returns the known backups newest first. Files in the backup
// directory that the ledger does not know about are included without an ID.
func (s *Service) List(config string) ([]Record, error) {
	var records []Record
	if s.ledger != nil {
		var err error
		records, err = s.ledger.List(config, 0)
		if err != nil {
			return nil, err
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !suffixPattern.MatchString(e.Name()) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		if slices.ContainsFunc(records, func(r Record) bool { return r.Path == path }) {
			continue
		}
		orig := OriginalName(e.Name())
		if config != "" && orig != config {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		records = append(records, Record{
			Config:    orig,
			Path:      path,
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	slices.SortStableFunc(records, func(a, b Record) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return records, nil
}

// Resolve finds a backup by ledger ID (or unique ID prefix), by file name
// in the backup directory, or by path.
func (s *Service) Resolve(ref string) (*Record, error) {
	if s.ledger != nil {
		r, err := s.ledger.Find(ref)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	path := ref
	if !strings.ContainsRune(ref, filepath.Separator) {
		path = filepath.Join(s.dir, ref)
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return &Record{
		Config:    OriginalName(filepath.Base(path)),
		Path:      path,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// Restore writes the backup named by ref back to <targetDir>/<config>.
// An existing config is only replaced when force is set. The backup file
// itself is left in place.
func (s *Service) Restore(ref, targetDir string, force bool) (string, error) {
	r, err := s.Resolve(ref)
	if err != nil {
		return "", err
	}

	target := filepath.Join(targetDir, r.Config)
	if _, err := os.Stat(target); err == nil && !force {
		return "", fmt.Errorf("%w: %s (use --force to overwrite)", ErrTargetExists, target)
	}

	data, err := os.ReadFile(r.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read backup: %w", err)
	}
	if err := state.WriteFileAtomic(target, data, 0600); err != nil {
		return "", err
	}

	s.log.Info("backup restored", "path", target, "backup", r.Path)
	return target, nil
}

// OriginalName strips the timestamp suffix from a backup file name.
func OriginalName(name string) string {
	return suffixPattern.ReplaceAllString(name, "")
}
