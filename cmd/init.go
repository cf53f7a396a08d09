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
)

var initCmd = &cobra.Command{
	Use:   "init <interface>",
	Short: "Add the category template to a config",
	Long: `Appends the category markers ([Category: Games], [Category: Services],
[Category: Miscellaneous]) that the config does not have yet. Existing
content is left as it is, so running init twice changes nothing.`,
	Args: cobra.ExactArgs(1),
	Run:  withEnv(executeInit),
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func executeInit(w io.Writer, e *env, args []string) error {
	path, err := e.configPath(args[0])
	if err != nil {
		return err
	}
	r, err := e.pipeline.InitTemplate(path)
	if err != nil {
		return err
	}
	for _, marker := range r.Markers {
		fmt.Fprintf(w, "  + [Category: %s]\n", marker)
	}
	printResult(w, r, fmt.Sprintf("Template ready in %s", args[0]))
	return nil
}
