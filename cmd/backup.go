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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/we-are-mono/ppwm/state"
)

var restoreForce bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up and inspect config backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create <interface>",
	Short: "Copy a config into the backup directory",
	Args:  cobra.ExactArgs(1),
	Run:   withEnv(executeBackupCreate),
}

var backupListCmd = &cobra.Command{
	Use:     "list [interface]",
	Aliases: []string{"ls"},
	Short:   "List backups, newest first",
	Args:    cobra.MaximumNArgs(1),
	Run:     withEnv(executeBackupList),
}

var restoreCmd = &cobra.Command{
	Use:   "restore <id|file>",
	Short: "Restore a config from a backup",
	Long: `Writes a backup back to <wireguard_dir>/<name>.conf. The backup is named
by its ID (or a unique ID prefix) from 'ppwm backup list', or by its file name.

An existing config is only replaced with --force.`,
	Args: cobra.ExactArgs(1),
	Run: withEnv(func(w io.Writer, e *env, args []string) error {
		return executeRestore(w, e, args[0], restoreForce)
	}),
}

func init() {
	rootCmd.AddCommand(backupCmd, restoreCmd)
	backupCmd.AddCommand(backupCreateCmd, backupListCmd)
	restoreCmd.Flags().BoolVar(&restoreForce, "force", false, "overwrite an existing config")
}

func executeBackupCreate(w io.Writer, e *env, args []string) error {
	path, err := e.configPath(args[0])
	if err != nil {
		return err
	}
	r, err := e.Backups().Backup(path, "manual")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "[OK] Backup created: %s\n", r.Path)
	fmt.Fprintf(w, "  ID: %s\n", r.ID)
	return nil
}

func executeBackupList(w io.Writer, e *env, args []string) error {
	config := ""
	if len(args) > 0 {
		config = args[0] + state.ConfigExt
	}
	records, err := e.Backups().List(config)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(w, "No backups in %s\n", e.Backups().Dir())
		return nil
	}

	fmt.Fprintf(w, "Backups in %s:\n", e.Backups().Dir())
	for _, r := range records {
		id := "-"
		if r.ID != "" {
			id = r.ID[:8]
		}
		reason := r.Reason
		if reason == "" {
			reason = "untracked"
		}
		fmt.Fprintf(w, "  %-8s  %s  %-24s  %s\n", id, r.CreatedAt.Format("2006-01-02 15:04:05"), filepath.Base(r.Path), reason)
	}
	return nil
}

func executeRestore(w io.Writer, e *env, ref string, force bool) error {
	path, err := e.Backups().Restore(ref, e.config.WireGuardDir, force)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "[OK] Restored %s\n", path)
	return nil
}
