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

package state

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/we-are-mono/ppwm/types"
)

// ConfigExt is the extension of WireGuard interface configs.
const ConfigExt = ".conf"

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path. A failed write leaves the original untouched.
// The mode of an existing file is preserved; perm applies to new files.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// CopyFile copies src to dst, keeping the source permissions.
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, info.Mode().Perm())
}

// ListConfigs returns the names of the WireGuard configs in dir, sorted.
func ListConfigs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ConfigExt) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)
	return names, nil
}

// ConfigPath resolves an interface name ("wg0" or "wg0.conf") to its config
// path inside dir.
func ConfigPath(dir, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid config name %q", name)
	}
	if !strings.HasSuffix(name, ConfigExt) {
		name += ConfigExt
	}
	return filepath.Join(dir, name), nil
}

// InterfaceName strips the directory and extension from a config path.
func InterfaceName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ConfigExt)
}

// FileStore reads and atomically rewrites config files on disk.
type FileStore struct{}

// Load returns the contents of path.
func (FileStore) Load(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Persist replaces path with text atomically.
func (FileStore) Persist(path, text string) error {
	if err := WriteFileAtomic(path, []byte(text), 0600); err != nil {
		return fmt.Errorf("%w: %v", types.ErrPersistenceFailure, err)
	}
	return nil
}
