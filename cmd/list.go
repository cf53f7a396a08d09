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

	"github.com/spf13/cobra"

	"github.com/we-are-mono/ppwm/state"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List WireGuard configs",
	Args:    cobra.NoArgs,
	Run:     withEnv(executeList),
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func executeList(w io.Writer, e *env, args []string) error {
	configs, err := state.ListConfigs(e.config.WireGuardDir)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		fmt.Fprintf(w, "No configs found in %s\n", e.config.WireGuardDir)
		return nil
	}

	fmt.Fprintf(w, "Configs in %s:\n", e.config.WireGuardDir)
	for i, path := range configs {
		fmt.Fprintf(w, "  %d. %s\n", i+1, state.InterfaceName(path))
	}
	return nil
}
