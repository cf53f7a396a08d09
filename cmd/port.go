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

	"github.com/we-are-mono/ppwm/types"
	"github.com/we-are-mono/ppwm/validation"
)

// portOptions holds the flags of port add and port edit.
type portOptions struct {
	port       string
	proto      string
	forward    int
	forwardSet bool
}

var portAddFlags, portEditFlags portOptions

var portCmd = &cobra.Command{
	Use:   "port",
	Short: "Manage forwarded ports",
}

var portAddCmd = &cobra.Command{
	Use:   "add <interface> <category> <subsection> <ports>",
	Short: "Forward one or more ports",
	Long: `Adds ports to a subsection together with their PostUp/PostDown rules.

<ports> is a port, a range, or a comma separated list of both. All ports
of one call are added together or not at all.

Examples:
  ppwm port add wg0 games Minecraft 25565
  ppwm port add wg0 games Minecraft 19132 --proto udp
  ppwm port add wg0 services Web 8080 --forward 80
  ppwm port add wg0 misc Voice "667, 669-671" --proto both`,
	Args: cobra.ExactArgs(4),
	Run: withEnv(func(w io.Writer, e *env, args []string) error {
		return executePortAdd(w, e, args, portAddFlags)
	}),
}

var portEditCmd = &cobra.Command{
	Use:   "edit <interface> <category> <subsection> <number|port/proto>",
	Short: "Change a forwarded port",
	Long: `Replaces a port binding. Flags that are not given keep their current value.

Examples:
  ppwm port edit wg0 games Minecraft 1 --forward 25566
  ppwm port edit wg0 games Minecraft 25565/tcp --proto both
  ppwm port edit wg0 games Minecraft 2 --forward 0`,
	Args: cobra.ExactArgs(4),
	Run: withEnv(func(w io.Writer, e *env, args []string) error {
		return executePortEdit(w, e, args, portEditFlags)
	}),
}

var portDeleteCmd = &cobra.Command{
	Use:     "delete <interface> <category> <subsection> <number|port/proto>",
	Aliases: []string{"rm"},
	Short:   "Stop forwarding a port",
	Args:    cobra.ExactArgs(4),
	Run:     withEnv(executePortDelete),
}

var portListCmd = &cobra.Command{
	Use:     "list <interface> <category> <subsection>",
	Aliases: []string{"ls"},
	Short:   "List the ports of a subsection",
	Args:    cobra.ExactArgs(3),
	Run:     withEnv(executePortList),
}

func init() {
	rootCmd.AddCommand(portCmd)
	portCmd.AddCommand(portAddCmd, portEditCmd, portDeleteCmd, portListCmd)

	portAddCmd.Flags().StringVarP(&portAddFlags.proto, "proto", "p", "tcp", "protocol: tcp, udp or both")
	portAddCmd.Flags().IntVarP(&portAddFlags.forward, "forward", "f", 0, "client port to forward to (single ports only)")

	portEditCmd.Flags().StringVar(&portEditFlags.port, "port", "", "new port or range")
	portEditCmd.Flags().StringVarP(&portEditFlags.proto, "proto", "p", "", "new protocol: tcp, udp or both")
	portEditCmd.Flags().IntVarP(&portEditFlags.forward, "forward", "f", 0, "new client port (0 keeps the external port)")
	portEditCmd.PreRun = func(cmd *cobra.Command, args []string) {
		portEditFlags.forwardSet = cmd.Flags().Changed("forward")
	}
}

// parseBindings expands a port list into bindings for one protocol.
func parseBindings(list, proto string, forward int) ([]types.PortBinding, error) {
	entries, err := validation.ValidatePortList(list)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidBinding, err)
	}
	p, err := types.ParseProtocol(proto)
	if err != nil {
		return nil, err
	}
	if forward != 0 && len(entries) > 1 {
		return nil, fmt.Errorf("%w: --forward applies to a single port, got %d", types.ErrInvalidBinding, len(entries))
	}

	bindings := make([]types.PortBinding, 0, len(entries))
	for _, entry := range entries {
		spec, err := types.ParsePortSpec(entry)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, types.PortBinding{Port: spec, Protocol: p, ForwardTarget: forward})
	}
	return bindings, nil
}

func executePortAdd(w io.Writer, e *env, args []string, opts portOptions) error {
	path, err := e.configPath(args[0])
	if err != nil {
		return err
	}
	category, err := e.category(args[1])
	if err != nil {
		return err
	}
	bindings, err := parseBindings(args[3], opts.proto, opts.forward)
	if err != nil {
		return err
	}

	r, err := e.pipeline.AddPorts(path, category, args[2], bindings)
	if err != nil {
		return err
	}
	printResult(w, r, fmt.Sprintf("Added %d port(s) to %s/%s", len(bindings), category, args[2]))
	return nil
}

func executePortEdit(w io.Writer, e *env, args []string, opts portOptions) error {
	path, err := e.configPath(args[0])
	if err != nil {
		return err
	}
	category, err := e.category(args[1])
	if err != nil {
		return err
	}
	c, err := e.pipeline.Inspect(path)
	if err != nil {
		return err
	}
	key, err := resolvePort(c, category, args[2], args[3])
	if err != nil {
		return err
	}

	var current types.PortBinding
	entries, _ := c.ListPorts(category, args[2])
	for _, entry := range entries {
		if key.Matches(entry.Binding) {
			current = entry.Binding
		}
	}

	nb := current
	if opts.port != "" {
		if nb.Port, err = types.ParsePortSpec(opts.port); err != nil {
			return err
		}
	}
	if opts.proto != "" {
		if nb.Protocol, err = types.ParseProtocol(opts.proto); err != nil {
			return err
		}
	}
	if opts.forwardSet {
		nb.ForwardTarget = opts.forward
	}
	if nb.Normalize() == current.Normalize() {
		fmt.Fprintln(w, "[OK] Nothing to change")
		return nil
	}

	r, err := e.pipeline.EditPort(path, key, nb)
	if err != nil {
		return err
	}
	printResult(w, r, fmt.Sprintf("Changed %s to %s", current.Record(), nb.Record()))
	return nil
}

func executePortDelete(w io.Writer, e *env, args []string) error {
	path, err := e.configPath(args[0])
	if err != nil {
		return err
	}
	category, err := e.category(args[1])
	if err != nil {
		return err
	}
	c, err := e.pipeline.Inspect(path)
	if err != nil {
		return err
	}
	key, err := resolvePort(c, category, args[2], args[3])
	if err != nil {
		return err
	}

	r, err := e.pipeline.DeletePort(path, key)
	if err != nil {
		return err
	}
	printResult(w, r, fmt.Sprintf("Removed %s/%s from %s/%s", key.Port, key.Protocol, category, args[2]))
	return nil
}

func executePortList(w io.Writer, e *env, args []string) error {
	path, err := e.configPath(args[0])
	if err != nil {
		return err
	}
	category, err := e.category(args[1])
	if err != nil {
		return err
	}
	c, err := e.pipeline.Inspect(path)
	if err != nil {
		return err
	}
	entries, err := c.ListPorts(category, args[2])
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintf(w, "No ports in %s/%s\n", category, args[2])
		return nil
	}
	fmt.Fprintf(w, "Ports in %s/%s:\n", category, args[2])
	for i, entry := range entries {
		fmt.Fprintf(w, "  %d. %s%s\n", i+1, entry.Binding.Record(), forwardSuffix(entry.Binding))
	}
	return nil
}

func forwardSuffix(b types.PortBinding) string {
	if b.ForwardTarget == 0 {
		return ""
	}
	return fmt.Sprintf(" -> %d", b.ForwardTarget)
}
