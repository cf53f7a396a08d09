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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/we-are-mono/ppwm/state"
	"github.com/we-are-mono/ppwm/types"
)

var validateCmd = &cobra.Command{
	Use:   "validate [interface...]",
	Short: "Check configs without changing them",
	Long: `Parses the given configs, or every config in the WireGuard directory, and
reports structural errors, repeated markers and port rules that no longer
match the rules ppwm would generate.`,
	Run: withEnv(executeValidate),
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func executeValidate(w io.Writer, e *env, args []string) error {
	paths, err := e.configPaths(args)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Validating configs in %s...\n\n", e.config.WireGuardDir)
	failed := 0
	for _, path := range paths {
		name := state.InterfaceName(path)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(w, "❌ %s: not found\n", name)
			failed++
			continue
		}

		c, err := e.pipeline.Inspect(path)
		if err != nil {
			fmt.Fprintf(w, "❌ %s: %v\n", name, err)
			failed++
			continue
		}

		problems := c.Audit()
		if len(problems) == 0 {
			fmt.Fprintf(w, "✓ %s: valid (%d ports)\n", name, len(c.Entries()))
			continue
		}
		fmt.Fprintf(w, "⚠ %s: %d warning(s)\n", name, len(problems))
		for _, p := range problems {
			fmt.Fprintf(w, "    %v\n", p)
		}
		if hasDuplicateMarker(problems) {
			failed++
		}
	}

	fmt.Fprintln(w)
	if failed > 0 {
		return fmt.Errorf("validation failed for %d config(s)", failed)
	}
	fmt.Fprintln(w, "✓ All configs are valid")
	return nil
}

// hasDuplicateMarker reports problems that block mutations; drifted rules
// are only informational.
func hasDuplicateMarker(problems []error) bool {
	for _, p := range problems {
		if errors.Is(p, types.ErrDuplicateMarker) {
			return true
		}
	}
	return false
}
