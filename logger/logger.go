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

// Package logger provides structured logging for ppwm on top of hclog.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // text, json
	File   string // Path to log file (default: stderr)
}

// DebugEnabled reports whether PPWM_DEBUG forces debug output.
func DebugEnabled() bool {
	return os.Getenv("PPWM_DEBUG") != ""
}

// ParseLevel converts a string to an hclog level. Unknown values map to info.
func ParseLevel(level string) hclog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return hclog.Debug
	case "info":
		return hclog.Info
	case "warn":
		return hclog.Warn
	case "error":
		return hclog.Error
	default:
		return hclog.Info
	}
}

// New creates a logger writing to w, or to the configured file when set.
func New(config Config, w io.Writer) (hclog.Logger, error) {
	if config.File != "" {
		f, err := os.OpenFile(config.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
	}

	level := ParseLevel(config.Level)
	if DebugEnabled() {
		level = hclog.Debug
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "ppwm",
		Level:      level,
		Output:     w,
		JSONFormat: config.Format == "json",
	}), nil
}

var (
	mu  sync.RWMutex
	std hclog.Logger = hclog.NewNullLogger()
)

// Init initializes the global logger
func Init(config Config, w io.Writer) error {
	l, err := New(config, w)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Set replaces the global logger.
func Set(l hclog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	std = l
}

// Get returns a named child of the global logger.
func Get(component string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std.Named(component)
}
