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

	"github.com/we-are-mono/ppwm/types"
)

const (
	toolNamespace       = "ppwm"
	defaultWireGuardDir = "/etc/wireguard"
)

// LoadToolConfig loads ppwm.json from the config directory.
// If the file doesn't exist, it returns a default configuration.
func LoadToolConfig() (*types.Config, error) {
	path := filepath.Join(GetConfigDir(), toolNamespace+".json")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultToolConfig(), nil
	}

	// Fields missing from the file keep their defaults
	config := DefaultToolConfig()
	if err := LoadConfig(toolNamespace, config); err != nil {
		return nil, fmt.Errorf("failed to load ppwm config: %w", err)
	}
	applyDefaults(config)
	return config, nil
}

// SaveToolConfig saves ppwm.json to the config directory.
func SaveToolConfig(config *types.Config) error {
	return SaveConfig(toolNamespace, config)
}

// DefaultToolConfig returns the configuration used when ppwm.json is absent.
func DefaultToolConfig() *types.Config {
	config := &types.Config{
		Version: "1.0",
		Backup:  types.BackupConfig{Before: true},
	}
	applyDefaults(config)
	return config
}

// BackupDir returns the configured backup directory.
func BackupDir(config *types.Config) string {
	if config.Backup.Dir != "" {
		return config.Backup.Dir
	}
	return filepath.Join(config.WireGuardDir, "backups")
}

// LedgerPath returns the configured backup ledger database path.
func LedgerPath(config *types.Config) string {
	if config.Backup.Ledger != "" {
		return config.Backup.Ledger
	}
	return filepath.Join(BackupDir(config), "ledger.db")
}

func applyDefaults(config *types.Config) {
	if config.WireGuardDir == "" {
		config.WireGuardDir = defaultWireGuardDir
	}
	if config.ClientIP == "" {
		config.ClientIP = types.DefaultClientIP
	}
	if len(config.Categories) == 0 {
		config.Categories = append([]string(nil), types.DefaultCategories...)
	}
	if config.Logging == nil {
		config.Logging = &types.LoggingConfig{Level: "info", Format: "text"}
	}
	if config.Version == "" {
		config.Version = "1.0"
	}
}
