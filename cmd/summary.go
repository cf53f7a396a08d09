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
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/we-are-mono/ppwm/state"
	"github.com/we-are-mono/ppwm/types"
)

// InterfaceSummary lists the managed ports of one config.
type InterfaceSummary struct {
	Interface  string            `json:"interface" yaml:"interface"`
	ListenPort string            `json:"listen_port,omitempty" yaml:"listen_port,omitempty"`
	Categories []CategorySummary `json:"categories" yaml:"categories"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// CategorySummary lists the subsections of one category.
type CategorySummary struct {
	Name        string              `json:"name" yaml:"name"`
	Subsections []SubsectionSummary `json:"subsections" yaml:"subsections"`
}

// SubsectionSummary lists the port bindings of one subsection.
type SubsectionSummary struct {
	Name  string              `json:"name" yaml:"name"`
	Ports []types.PortBinding `json:"ports" yaml:"ports"`
}

var summaryFlags struct {
	format    string
	outputDir string
}

// summaryNow is the clock used for export file names.
var summaryNow = time.Now

var summaryCmd = &cobra.Command{
	Use:   "summary [interface...]",
	Short: "Summarize managed ports across configs",
	Long: `Prints every category, subsection and port of the given configs, or of
all configs when none are named.

With --format yaml or --format json the summary is written to
managed_ports_summary_YYYYMMDD_HHMMSS.<ext> in --output-dir instead.`,
	Run: withEnv(func(w io.Writer, e *env, args []string) error {
		return executeSummary(w, e, args, summaryFlags.format, summaryFlags.outputDir)
	}),
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	summaryCmd.Flags().StringVar(&summaryFlags.format, "format", "text", "output format: text, yaml or json")
	summaryCmd.Flags().StringVarP(&summaryFlags.outputDir, "output-dir", "o", ".", "directory for exported summaries")
}

func executeSummary(w io.Writer, e *env, names []string, format, outputDir string) error {
	paths, err := e.configPaths(names)
	if err != nil {
		return err
	}

	summaries := make([]InterfaceSummary, 0, len(paths))
	for _, path := range paths {
		summaries = append(summaries, summarize(e, path))
	}

	switch format {
	case "", "text":
		printSummary(w, summaries)
		return nil
	case "yaml", "json":
		path, err := exportSummary(summaries, format, outputDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "[OK] Summary of %d config(s) written to %s\n", len(summaries), path)
		return nil
	default:
		return fmt.Errorf("unknown format %q (must be one of: text, yaml, json)", format)
	}
}

// summarize never fails; a config that cannot be parsed is reported with
// its error so the rest of the summary is still produced.
func summarize(e *env, path string) InterfaceSummary {
	s := InterfaceSummary{Interface: state.InterfaceName(path)}
	c, err := e.pipeline.Inspect(path)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	s.ListenPort, _ = c.Document().Interface("ListenPort")

	for _, category := range c.Categories() {
		cs := CategorySummary{Name: category}
		names, _ := c.ListSubsections(category)
		for _, name := range names {
			ss := SubsectionSummary{Name: name, Ports: []types.PortBinding{}}
			entries, _ := c.ListPorts(category, name)
			for _, entry := range entries {
				ss.Ports = append(ss.Ports, entry.Binding)
			}
			cs.Subsections = append(cs.Subsections, ss)
		}
		s.Categories = append(s.Categories, cs)
	}
	return s
}

func printSummary(w io.Writer, summaries []InterfaceSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No configs found")
		return
	}
	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "Interface: %s", s.Interface)
		if s.ListenPort != "" {
			fmt.Fprintf(w, " (ListenPort %s)", s.ListenPort)
		}
		fmt.Fprintln(w)
		if s.Error != "" {
			fmt.Fprintf(w, "  [ERROR] %s\n", s.Error)
			continue
		}
		if len(s.Categories) == 0 {
			fmt.Fprintln(w, "  (no categories, run 'ppwm init')")
		}
		for _, cs := range s.Categories {
			fmt.Fprintf(w, "  %s\n", cs.Name)
			for _, ss := range cs.Subsections {
				fmt.Fprintf(w, "    %s\n", ss.Name)
				for _, b := range ss.Ports {
					fmt.Fprintf(w, "      %s%s\n", b.Record(), forwardSuffix(b))
				}
			}
		}
	}
}

func exportSummary(summaries []InterfaceSummary, format, outputDir string) (string, error) {
	var (
		data []byte
		err  error
	)
	if format == "json" {
		data, err = json.MarshalIndent(summaries, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(summaries)
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outputDir, err)
	}
	name := fmt.Sprintf("managed_ports_summary_%s.%s", summaryNow().Format("20060102_150405"), format)
	path := filepath.Join(outputDir, name)
	if err := state.WriteFileAtomic(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
