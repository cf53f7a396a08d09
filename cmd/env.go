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

package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/we-are-mono/ppwm/backup"
	"github.com/we-are-mono/ppwm/catalog"
	"github.com/we-are-mono/ppwm/logger"
	"github.com/we-are-mono/ppwm/pipeline"
	"github.com/we-are-mono/ppwm/state"
	"github.com/we-are-mono/ppwm/types"
)

// env bundles the collaborators a command runs against.
type env struct {
	config   *types.Config
	pipeline *pipeline.Pipeline
	log      hclog.Logger

	backups *backup.Service
	ledger  *backup.Ledger
}

// loadEnv builds an env from ppwm.json and the persistent flags.
// It can be overridden in tests.
var loadEnv = func() (*env, error) {
	config, err := state.LoadToolConfig()
	if err != nil {
		return nil, err
	}
	applyGlobals(config, globals)

	lc := logger.Config{Level: config.Logging.Level, Format: config.Logging.Format, File: config.Logging.File}
	if globals.debug {
		lc.Level = "debug"
	}
	if err := logger.Init(lc, os.Stderr); err != nil {
		return nil, err
	}
	return newEnv(config, state.FileStore{}, globals), nil
}

func applyGlobals(config *types.Config, g globalOptions) {
	if g.wgDir != "" {
		config.WireGuardDir = g.wgDir
		config.Backup.Dir = ""
		config.Backup.Ledger = ""
	}
	if g.clientIP != "" {
		config.ClientIP = g.clientIP
	}
}

func newEnv(config *types.Config, store pipeline.Store, g globalOptions) *env {
	e := &env{config: config, log: logger.Get("cli")}
	opts := pipeline.Options{
		Store:        store,
		BackupBefore: config.Backup.Before,
		BackupAfter:  config.Backup.After,
		ClientIP:     config.ClientIP,
		Categories:   config.Categories,
		DryRun:       g.dryRun,
		Logger:       logger.Get("pipeline"),
	}
	if !g.noBackup {
		opts.Backups = e
	}
	e.pipeline = pipeline.New(opts)
	return e
}

// Backups returns the backup service, opening the ledger on first use.
// A ledger that cannot be opened only disables record keeping.
func (e *env) Backups() *backup.Service {
	if e.backups == nil {
		ledger, err := backup.OpenLedger(state.LedgerPath(e.config))
		if err != nil {
			e.log.Warn("backup ledger unavailable", "error", err)
			ledger = nil
		}
		e.ledger = ledger
		e.backups = backup.NewService(state.BackupDir(e.config), ledger, logger.Get("backup"))
	}
	return e.backups
}

// Backup implements pipeline.Backuper.
func (e *env) Backup(path, reason string) (*backup.Record, error) {
	return e.Backups().Backup(path, reason)
}

func (e *env) Close() {
	if e.ledger != nil {
		e.ledger.Close()
	}
}

func (e *env) configPath(name string) (string, error) {
	return state.ConfigPath(e.config.WireGuardDir, name)
}

// configPaths resolves names to config paths, or lists every config in the
// WireGuard directory when names is empty.
func (e *env) configPaths(names []string) ([]string, error) {
	if len(names) == 0 {
		files, err := state.ListConfigs(e.config.WireGuardDir)
		if err != nil {
			return nil, err
		}
		names = files
	}
	paths := make([]string, 0, len(names))
	for _, name := range names {
		path, err := e.configPath(name)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// category resolves a category argument case-insensitively.
func (e *env) category(name string) (string, error) {
	for _, c := range e.config.Categories {
		if strings.EqualFold(c, name) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q (must be one of: %s)", types.ErrCategoryNotFound, name, strings.Join(e.config.Categories, ", "))
}

// withEnv adapts an execute function into a cobra Run function.
func withEnv(fn func(w io.Writer, e *env, args []string) error) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		e, err := loadEnv()
		if err == nil {
			defer e.Close()
			err = fn(cmd.OutOrStdout(), e, args)
		}
		if err != nil {
			cmd.PrintErrln(formatError(err))
			exitWithError()
		}
	}
}

// formatError prefixes err with its taxonomy name when it has one.
func formatError(err error) string {
	if kind := types.ErrorKind(err); kind != "Unknown" {
		return fmt.Sprintf("[ERROR] %s: %v", kind, err)
	}
	return fmt.Sprintf("[ERROR] %v", err)
}

// resolvePort turns a selector into a PortKey. A selector is either the
// 1-based number shown by "port list" or a record like "667/tcp".
func resolvePort(c *catalog.Catalog, category, subsection, selector string) (types.PortKey, error) {
	if n, err := strconv.Atoi(selector); err == nil {
		e, err := c.Resolve(category, subsection, n)
		if err != nil {
			return types.PortKey{}, err
		}
		return e.Key, nil
	}

	port, proto, err := types.ParsePortRecord(selector)
	if err != nil {
		return types.PortKey{}, err
	}
	entries, err := c.ListPorts(category, subsection)
	if err != nil {
		return types.PortKey{}, err
	}
	key := types.PortKey{Category: category, Subsection: subsection, Port: port, Protocol: proto}
	if !slices.ContainsFunc(entries, func(e catalog.Entry) bool { return key.Matches(e.Binding) }) {
		return types.PortKey{}, fmt.Errorf("%w: %s in %s/%s", types.ErrPortNotFound, selector, category, subsection)
	}
	return key, nil
}

// printResult reports what a mutation did.
func printResult(w io.Writer, r *pipeline.Result, done string) {
	if r.Stage != pipeline.StagePersisted {
		if r.Diff != "" {
			fmt.Fprint(w, r.Diff)
			fmt.Fprintln(w, "[DRY RUN] No changes written")
			return
		}
		if !r.Changed {
			fmt.Fprintln(w, "[OK] Nothing to change")
			return
		}
	}

	for _, line := range r.Removed {
		fmt.Fprintf(w, "  - %s\n", line)
	}
	for _, line := range r.Added {
		fmt.Fprintf(w, "  + %s\n", line)
	}
	for _, path := range r.Backups {
		fmt.Fprintf(w, "  Backup: %s\n", path)
	}
	fmt.Fprintf(w, "[OK] %s\n", done)
}
