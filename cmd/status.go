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
	"strings"

	"github.com/spf13/cobra"

	"github.com/we-are-mono/ppwm/state"
	"github.com/we-are-mono/ppwm/system"
)

var (
	verboseStatus bool
)

// tunnelInspector is the part of system.Inspector used by status.
type tunnelInspector interface {
	Inspect(names []string) *system.HostStatus
	Close() error
}

// newInspector can be overridden in tests.
var newInspector = func() tunnelInspector {
	return system.NewDefaultInspector()
}

var statusCmd = &cobra.Command{
	Use:   "status [interface...]",
	Short: "Show tunnel and forwarding status",
	Long:  `Displays IP forwarding, link state, peers, autostart and managed port counts for each WireGuard config.`,
	Run: withEnv(func(w io.Writer, e *env, args []string) error {
		return executeStatus(w, e, args, verboseStatus)
	}),
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVarP(&verboseStatus, "verbose", "v", false, "Show detailed status")
}

func executeStatus(w io.Writer, e *env, args []string, verbose bool) error {
	names := args
	if len(names) == 0 {
		files, err := state.ListConfigs(e.config.WireGuardDir)
		if err != nil {
			return err
		}
		for _, file := range files {
			names = append(names, state.InterfaceName(file))
		}
	}

	inspector := newInspector()
	defer inspector.Close()
	status := inspector.Inspect(names)

	ports := make(map[string]int, len(names))
	for _, name := range names {
		ports[name] = -1
		if path, err := e.configPath(name); err == nil {
			if c, err := e.pipeline.Inspect(path); err == nil {
				ports[name] = len(c.Entries())
			}
		}
	}

	if verbose {
		printVerboseStatus(w, status, ports)
	} else {
		printCompactStatus(w, status, ports)
	}
	return nil
}

func printCompactStatus(w io.Writer, status *system.HostStatus, ports map[string]int) {
	fmt.Fprintln(w, "WireGuard Port Forwarding")
	fmt.Fprintln(w, "=========================")
	fmt.Fprintln(w)

	if status.IPForwarding {
		fmt.Fprintln(w, "[OK] IP Forwarding: Enabled")
	} else {
		fmt.Fprintln(w, "[WARN] IP Forwarding: Disabled (forwarded ports will not pass)")
	}
	fmt.Fprintln(w)

	if len(status.Tunnels) == 0 {
		fmt.Fprintln(w, "No WireGuard configs found")
		return
	}

	upCount := 0
	for _, t := range status.Tunnels {
		fmt.Fprintf(w, "  %s %-10s", stateSymbol(t.State), t.Name)
		if t.State == system.StateUp {
			upCount++
			fmt.Fprintf(w, " %d peers", t.Peers)
		}
		fmt.Fprintf(w, " - %s\n", portCount(ports[t.Name]))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Tunnels: %d up", upCount)
	if down := len(status.Tunnels) - upCount; down > 0 {
		fmt.Fprintf(w, ", %d down", down)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Use 'ppwm status -v' for detailed tunnel information")
}

func printVerboseStatus(w io.Writer, status *system.HostStatus, ports map[string]int) {
	fmt.Fprintln(w, "WireGuard Port Forwarding - Detailed Status")
	fmt.Fprintln(w, "===========================================")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "IP FORWARDING")
	fmt.Fprintln(w, "-------------")
	fmt.Fprintf(w, "Status: %s\n", boolToStatus(status.IPForwarding))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "TUNNELS")
	fmt.Fprintln(w, "-------")
	for _, t := range status.Tunnels {
		printTunnel(w, t, ports[t.Name])
	}
}

func printTunnel(w io.Writer, t system.TunnelStatus, ports int) {
	fmt.Fprintf(w, "%s %s\n", stateSymbol(t.State), t.Name)
	fmt.Fprintf(w, "    State:       %s\n", t.State)

	if len(t.Addresses) > 0 {
		fmt.Fprintf(w, "    Address:     %s\n", strings.Join(t.Addresses, ", "))
	} else {
		fmt.Fprintln(w, "    Address:     (none)")
	}
	if t.MTU > 0 {
		fmt.Fprintf(w, "    MTU:         %d\n", t.MTU)
	}
	if t.ListenPort > 0 {
		fmt.Fprintf(w, "    Listen Port: %d\n", t.ListenPort)
	}
	if t.PublicKey != "" {
		fmt.Fprintf(w, "    Public Key:  %s\n", t.PublicKey)
	}
	if t.State != system.StateAbsent {
		fmt.Fprintf(w, "    Peers:       %d\n", t.Peers)
	}
	fmt.Fprintf(w, "    Autostart:   %s\n", t.Autostart)
	fmt.Fprintf(w, "    Ports:       %s\n", portCount(ports))
	for _, msg := range t.Errors {
		fmt.Fprintf(w, "    [WARN] %s\n", msg)
	}
	fmt.Fprintln(w)
}

func stateSymbol(state string) string {
	switch state {
	case system.StateUp:
		return "[UP]"
	case system.StateDown:
		return "[DOWN]"
	default:
		return "[ABSENT]"
	}
}

func portCount(n int) string {
	if n < 0 {
		return "config unreadable"
	}
	return fmt.Sprintf("%d managed ports", n)
}

func boolToStatus(b bool) string {
	if b {
		return "Active"
	}
	return "Inactive"
}
