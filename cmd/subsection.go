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

var subsectionCmd = &cobra.Command{
	Use:     "subsection",
	Aliases: []string{"sub"},
	Short:   "Manage subsections inside a category",
}

var subsectionAddCmd = &cobra.Command{
	Use:   "add <interface> <category> <name>",
	Short: "Create a subsection",
	Example: `  ppwm subsection add wg0 games Minecraft
  ppwm subsection add wg0 services "Panel 2"`,
	Args: cobra.ExactArgs(3),
	Run:  withEnv(executeSubsectionAdd),
}

var subsectionDeleteCmd = &cobra.Command{
	Use:     "delete <interface> <category> <name>",
	Aliases: []string{"rm"},
	Short:   "Delete a subsection and all of its ports",
	Args:    cobra.ExactArgs(3),
	Run:     withEnv(executeSubsectionDelete),
}

var subsectionListCmd = &cobra.Command{
	Use:     "list <interface> [category]",
	Aliases: []string{"ls"},
	Short:   "List subsections",
	Args:    cobra.RangeArgs(1, 2),
	Run:     withEnv(executeSubsectionList),
}

func init() {
	rootCmd.AddCommand(subsectionCmd)
	subsectionCmd.AddCommand(subsectionAddCmd, subsectionDeleteCmd, subsectionListCmd)
}

func executeSubsectionAdd(w io.Writer, e *env, args []string) error {
	path, err := e.configPath(args[0])
	if err != nil {
		return err
	}
	category, err := e.category(args[1])
	if err != nil {
		return err
	}
	r, err := e.pipeline.AddSubsection(path, category, args[2])
	if err != nil {
		return err
	}
	printResult(w, r, fmt.Sprintf("Subsection %s added to %s", args[2], category))
	return nil
}

func executeSubsectionDelete(w io.Writer, e *env, args []string) error {
	path, err := e.configPath(args[0])
	if err != nil {
		return err
	}
	category, err := e.category(args[1])
	if err != nil {
		return err
	}
	r, err := e.pipeline.RemoveSubsection(path, category, args[2])
	if err != nil {
		return err
	}
	printResult(w, r, fmt.Sprintf("Subsection %s removed from %s", args[2], category))
	return nil
}

func executeSubsectionList(w io.Writer, e *env, args []string) error {
	path, err := e.configPath(args[0])
	if err != nil {
		return err
	}
	c, err := e.pipeline.Inspect(path)
	if err != nil {
		return err
	}

	categories := c.Categories()
	if len(args) > 1 {
		category, err := e.category(args[1])
		if err != nil {
			return err
		}
		categories = []string{category}
	}

	for _, category := range categories {
		names, err := c.ListSubsections(category)
		if err != nil {
			fmt.Fprintf(w, "[WARN] %s: %v\n", category, err)
			continue
		}
		fmt.Fprintf(w, "%s:\n", category)
		if len(names) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for i, name := range names {
			ports, _ := c.ListPorts(category, name)
			fmt.Fprintf(w, "  %d. %s (%d ports)\n", i+1, name, len(ports))
		}
	}
	return nil
}
