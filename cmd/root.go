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

// Package cmd implements the CLI commands for ppwm using cobra.
// It provides the root command structure and version management.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the application version string.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	wgDir    string
	clientIP string
	noBackup bool
	debug    bool
	dryRun   bool
}

var globals globalOptions

var rootCmd = &cobra.Command{
	Use:   "ppwm",
	Short: "ppwm - WireGuard port forwarding manager",
	Long: `ppwm manages port forwards for game and service panels behind a WireGuard tunnel.

Forwarded ports are grouped by category and subsection inside the
interface config, and every port carries the PostUp/PostDown iptables
rules that publish it. Edits are validated first and written atomically.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("ppwm v%s (built: %s)\n", Version, BuildTime))

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&globals.wgDir, "wg-dir", "", "WireGuard config directory (default from ppwm.json, /etc/wireguard)")
	flags.StringVar(&globals.clientIP, "client-ip", "", "address forwarded traffic is sent to (default from ppwm.json)")
	flags.BoolVar(&globals.noBackup, "no-backup", false, "do not back up configs around a change")
	flags.BoolVar(&globals.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&globals.dryRun, "dry-run", false, "show the resulting diff without writing anything")
}

// Execute runs the root command and handles any errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion updates the version and build time for display in help and version output.
func SetVersion(version, buildTime string) {
	Version = version
	BuildTime = buildTime
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("ppwm v%s (built: %s)\n", version, buildTime))
}

// exitWithError is a helper function that exits with code 1.
// It can be overridden in tests to avoid actual exit.
var exitWithError = func() {
	os.Exit(1)
}
