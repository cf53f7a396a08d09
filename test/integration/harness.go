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

//go:build integration
// +build integration

package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/we-are-mono/ppwm/backup"
	"github.com/we-are-mono/ppwm/logger"
	"github.com/we-are-mono/ppwm/pipeline"
	"github.com/we-are-mono/ppwm/state"
)

// TestHarness provides isolated test environment for integration tests
type TestHarness struct {
	t             *testing.T
	configDir     string
	wgDir         string
	createdIfaces []string
	ledger        *backup.Ledger
	originalEnv   map[string]string
}

// NewTestHarness creates a new isolated test environment with its own
// ppwm config directory and WireGuard directory.
func NewTestHarness(t *testing.T) *TestHarness {
	t.Helper()

	h := &TestHarness{
		t:             t,
		configDir:     t.TempDir(),
		wgDir:         t.TempDir(),
		createdIfaces: []string{},
		originalEnv:   make(map[string]string),
	}

	// Save original environment variables
	h.originalEnv["PPWM_CONFIG_DIR"] = os.Getenv("PPWM_CONFIG_DIR")
	os.Setenv("PPWM_CONFIG_DIR", h.configDir)

	logger.Set(hclog.New(&hclog.LoggerOptions{
		Name:   "ppwm",
		Level:  hclog.Debug,
		Output: hclog.DefaultOutput,
	}))

	t.Logf("Created test harness: config=%s, wireguard=%s", h.configDir, h.wgDir)
	return h
}

// RequireRoot skips the test unless it can manipulate network interfaces.
func (h *TestHarness) RequireRoot() {
	h.t.Helper()
	if os.Geteuid() != 0 {
		h.t.Skip("Interface tests require root privileges")
	}
}

// WriteConfig writes <name>.conf to the WireGuard directory
func (h *TestHarness) WriteConfig(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.wgDir, name+state.ConfigExt)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		h.t.Fatalf("Failed to write config %s: %v", name, err)
	}
	return path
}

// ReadConfig returns the current contents of <name>.conf
func (h *TestHarness) ReadConfig(name string) string {
	h.t.Helper()
	data, err := os.ReadFile(filepath.Join(h.wgDir, name+state.ConfigExt))
	if err != nil {
		h.t.Fatalf("Failed to read config %s: %v", name, err)
	}
	return string(data)
}

// Backups returns a backup service over a real SQLite ledger
func (h *TestHarness) Backups() *backup.Service {
	h.t.Helper()
	dir := filepath.Join(h.wgDir, "backups")
	if h.ledger == nil {
		if err := os.MkdirAll(dir, 0700); err != nil {
			h.t.Fatalf("Failed to create backup dir: %v", err)
		}
		ledger, err := backup.OpenLedger(filepath.Join(dir, "ledger.db"))
		if err != nil {
			h.t.Fatalf("Failed to open ledger: %v", err)
		}
		h.ledger = ledger
	}
	return backup.NewService(dir, h.ledger, logger.Get("backup"))
}

// Pipeline returns a pipeline writing to the harness WireGuard directory
func (h *TestHarness) Pipeline(dryRun bool) *pipeline.Pipeline {
	return pipeline.New(pipeline.Options{
		Store:        state.FileStore{},
		Backups:      h.Backups(),
		BackupBefore: true,
		ClientIP:     "10.66.66.2",
		DryRun:       dryRun,
		Logger:       logger.Get("pipeline"),
	})
}

// Path returns the config path of an interface
func (h *TestHarness) Path(name string) string {
	return filepath.Join(h.wgDir, name+state.ConfigExt)
}

// CreateDummyInterface creates a dummy interface in the current namespace.
// The name is prefixed with "test-" to avoid conflicts with real interfaces.
func (h *TestHarness) CreateDummyInterface(name string) string {
	h.t.Helper()
	actualName := "test-" + name
	h.run("ip", "link", "add", actualName, "type", "dummy")
	h.createdIfaces = append(h.createdIfaces, actualName)
	return actualName
}

// CreateWireGuardInterface creates a wireguard link, skipping the test when
// the kernel has no WireGuard support.
func (h *TestHarness) CreateWireGuardInterface(name string) string {
	h.t.Helper()
	actualName := "test-" + name
	if out, err := exec.Command("ip", "link", "add", actualName, "type", "wireguard").CombinedOutput(); err != nil {
		h.t.Skipf("WireGuard links not supported: %v: %s", err, out)
	}
	h.createdIfaces = append(h.createdIfaces, actualName)
	return actualName
}

// SetLinkUp brings an interface up
func (h *TestHarness) SetLinkUp(name string) {
	h.t.Helper()
	h.run("ip", "link", "set", name, "up")
}

// AddAddress assigns a CIDR address to an interface
func (h *TestHarness) AddAddress(name, cidr string) {
	h.t.Helper()
	h.run("ip", "addr", "add", cidr, "dev", name)
}

func (h *TestHarness) run(name string, args ...string) {
	h.t.Helper()
	if output, err := exec.Command(name, args...).CombinedOutput(); err != nil {
		h.t.Fatalf("%s %v failed: %v\nOutput: %s", name, args, err, output)
	}
}

// Cleanup tears down the test environment
func (h *TestHarness) Cleanup() {
	h.t.Helper()

	for _, iface := range h.createdIfaces {
		_ = exec.Command("ip", "link", "del", iface).Run() // Ignore errors on cleanup
	}
	if h.ledger != nil {
		h.ledger.Close()
	}

	// Restore original environment
	for key, val := range h.originalEnv {
		if val == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, val)
		}
	}
	logger.Set(hclog.NewNullLogger())
}
