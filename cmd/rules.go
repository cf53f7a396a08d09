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

	"github.com/we-are-mono/ppwm/rules"
)

var rulesFlags struct {
	proto    string
	forward  int
	commands bool
}

var rulesCmd = &cobra.Command{
	Use:   "rules <port>",
	Short: "Print the PostUp/PostDown rules for a port",
	Long: `Prints the directive lines a port binding would add to a config,
without reading or writing any file.

Examples:
  ppwm rules 25565
  ppwm rules 667-671 --proto both
  ppwm rules 8080 --forward 80 --client-ip 10.0.0.2`,
	Args: cobra.ExactArgs(1),
	Run: withEnv(func(w io.Writer, e *env, args []string) error {
		return executeRules(w, e, args[0], rulesFlags.proto, rulesFlags.forward, rulesFlags.commands)
	}),
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.Flags().StringVarP(&rulesFlags.proto, "proto", "p", "tcp", "protocol: tcp, udp or both")
	rulesCmd.Flags().IntVarP(&rulesFlags.forward, "forward", "f", 0, "client port to forward to")
	rulesCmd.Flags().BoolVar(&rulesFlags.commands, "commands", false, "print only the commands that would run now (PostUp)")
}

func executeRules(w io.Writer, e *env, port, proto string, forward int, commands bool) error {
	bindings, err := parseBindings(port, proto, forward)
	if err != nil {
		return err
	}
	synth := e.pipeline.Synthesizer()

	for _, b := range bindings {
		lines, err := synth.Synthesize(b, rules.ActionAdd)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "# %s%s\n", b.Record(), forwardSuffix(b.Normalize()))
		if commands {
			lines = rules.Delta(lines, rules.ActionAdd)
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
