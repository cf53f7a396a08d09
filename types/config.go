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

package types

// BackupConfig controls when the mutation pipeline asks for backups.
type BackupConfig struct {
	Before bool   `json:"before"`           // Back up the config before a mutation is persisted
	After  bool   `json:"after"`            // Back up the config after a mutation is persisted
	Dir    string `json:"dir,omitempty"`    // Backup directory (default: <wireguard_dir>/backups)
	Ledger string `json:"ledger,omitempty"` // SQLite ledger path (default: <backup dir>/ledger.db)
}

// LoggingConfig represents configuration for the logging system
type LoggingConfig struct {
	Level  string `json:"level"`          // debug, info, warn, error (default: info)
	Format string `json:"format"`         // text, json (default: text)
	File   string `json:"file,omitempty"` // Log file path (default: stderr)
}

// Config represents the ppwm tool configuration (/etc/ppwm/ppwm.json)
type Config struct {
	Logging      *LoggingConfig `json:"logging"`
	Backup       BackupConfig   `json:"backup"`
	WireGuardDir string         `json:"wireguard_dir"`
	ClientIP     string         `json:"client_ip"` // DNAT destination address written into directives
	Categories   []string       `json:"categories"`
	Version      string         `json:"version"`
}

// DefaultClientIP is the placeholder written when no client address is configured.
const DefaultClientIP = "<client_ip>"
