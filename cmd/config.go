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
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/we-are-mono/ppwm/logger"
	"github.com/we-are-mono/ppwm/state"
	"github.com/we-are-mono/ppwm/types"
	"github.com/we-are-mono/ppwm/validation"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change ppwm settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Args:  cobra.NoArgs,
	Run:   withEnv(executeConfigShow),
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting in ppwm.json",
	Long: `Changes one setting and saves ppwm.json.

Keys:
  wireguard_dir, client_ip, categories (comma separated),
  backup.before, backup.after, backup.dir, backup.ledger,
  logging.level, logging.format, logging.file`,
	Args: cobra.ExactArgs(2),
	Run:  runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd)
}

func executeConfigShow(w io.Writer, e *env, args []string) error {
	data, err := json.MarshalIndent(e.config, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) {
	if err := executeConfigSet(cmd.OutOrStdout(), args[0], args[1]); err != nil {
		cmd.PrintErrln(formatError(err))
		exitWithError()
	}
}

// executeConfigSet edits the saved file, not the effective settings, so
// command line overrides never end up in ppwm.json.
func executeConfigSet(w io.Writer, key, value string) error {
	config, err := state.LoadToolConfig()
	if err != nil {
		return err
	}
	if err := setConfigValue(config, key, value); err != nil {
		return err
	}
	if err := state.SaveToolConfig(config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(w, "[OK] %s = %s\n", key, value)
	return nil
}

func setConfigValue(config *types.Config, key, value string) error {
	switch key {
	case "wireguard_dir":
		if value == "" {
			return fmt.Errorf("wireguard_dir cannot be empty")
		}
		config.WireGuardDir = value
	case "client_ip":
		if err := validation.ValidateClientIP(value); err != nil {
			return err
		}
		config.ClientIP = value
	case "categories":
		var categories []string
		for _, c := range strings.Split(value, ",") {
			if c = strings.TrimSpace(c); c != "" {
				categories = append(categories, c)
			}
		}
		if len(categories) == 0 {
			return fmt.Errorf("categories cannot be empty")
		}
		config.Categories = categories
	case "backup.before", "backup.after":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false", key)
		}
		if key == "backup.before" {
			config.Backup.Before = b
		} else {
			config.Backup.After = b
		}
	case "backup.dir":
		config.Backup.Dir = value
	case "backup.ledger":
		config.Backup.Ledger = value
	case "logging.level":
		if logger.ParseLevel(value) == hclog.Info && !strings.EqualFold(value, "info") {
			return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
		}
		config.Logging.Level = strings.ToLower(value)
	case "logging.format":
		if value != "text" && value != "json" {
			return fmt.Errorf("logging.format must be text or json")
		}
		config.Logging.Format = value
	case "logging.file":
		config.Logging.File = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
