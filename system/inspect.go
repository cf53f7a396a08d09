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

package system

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/vishvananda/netlink"
)

// HostStatus holds host-wide forwarding state and per-tunnel status
type HostStatus struct {
	IPForwarding bool           `json:"ip_forwarding" yaml:"ip_forwarding"`
	Tunnels      []TunnelStatus `json:"tunnels" yaml:"tunnels"`
}

// TunnelStatus holds status for a single WireGuard interface
type TunnelStatus struct {
	Name       string   `json:"name" yaml:"name"`
	State      string   `json:"state" yaml:"state"` // up, down, absent
	Addresses  []string `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	MTU        int      `json:"mtu,omitempty" yaml:"mtu,omitempty"`
	ListenPort int      `json:"listen_port,omitempty" yaml:"listen_port,omitempty"`
	PublicKey  string   `json:"public_key,omitempty" yaml:"public_key,omitempty"`
	Peers      int      `json:"peers" yaml:"peers"`
	Autostart  string   `json:"autostart" yaml:"autostart"` // enabled, disabled, unknown
	Errors     []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Link states reported in TunnelStatus.State.
const (
	StateUp     = "up"
	StateDown   = "down"
	StateAbsent = "absent"
)

// Inspector gathers tunnel status with dependency injection for testability.
type Inspector struct {
	netlink NetlinkClient
	wg      WireGuardClient
	sysctl  SysctlClient
	cmd     CommandRunner
}

// NewInspector creates an Inspector with the given clients.
func NewInspector(nl NetlinkClient, wg WireGuardClient, sc SysctlClient, cmd CommandRunner) *Inspector {
	return &Inspector{netlink: nl, wg: wg, sysctl: sc, cmd: cmd}
}

// NewDefaultInspector creates an Inspector with real system clients.
func NewDefaultInspector() *Inspector {
	return NewInspector(
		NewDefaultNetlinkClient(),
		NewDefaultWireGuardClient(),
		NewDefaultSysctlClient(NewDefaultFilesystemClient()),
		NewDefaultCommandRunner(),
	)
}

// Close releases the WireGuard client.
func (i *Inspector) Close() error {
	return i.wg.Close()
}

// Inspect reports on the named tunnels. Failures of individual probes are
// recorded on the tunnel instead of aborting the report.
func (i *Inspector) Inspect(names []string) *HostStatus {
	status := &HostStatus{}
	if v, err := i.sysctl.Get("net.ipv4.ip_forward"); err == nil {
		status.IPForwarding = strings.TrimSpace(v) == "1"
	}
	for _, name := range names {
		status.Tunnels = append(status.Tunnels, i.Tunnel(name))
	}
	return status
}

// Tunnel reports on one WireGuard interface.
func (i *Inspector) Tunnel(name string) TunnelStatus {
	ts := TunnelStatus{Name: name, State: StateAbsent}

	link, err := i.netlink.LinkByName(name)
	if err != nil {
		if !isNotFound(err) {
			ts.Errors = append(ts.Errors, fmt.Sprintf("link: %v", err))
		}
	} else {
		attrs := link.Attrs()
		ts.MTU = attrs.MTU
		if attrs.Flags&net.FlagUp != 0 {
			ts.State = StateUp
		} else {
			ts.State = StateDown
		}
		if addrs, err := i.netlink.AddrList(link, netlink.FAMILY_ALL); err == nil {
			for _, addr := range addrs {
				if addr.IPNet != nil {
					ts.Addresses = append(ts.Addresses, addr.IPNet.String())
				}
			}
		}
	}

	if ts.State != StateAbsent {
		device, err := i.wg.Device(name)
		switch {
		case err == nil:
			ts.ListenPort = device.ListenPort
			ts.PublicKey = device.PublicKey.String()
			ts.Peers = len(device.Peers)
		case !isNotFound(err):
			ts.Errors = append(ts.Errors, fmt.Sprintf("device: %v", err))
		}
	}

	ts.Autostart = i.autostart(name)
	return ts
}

// autostart asks systemd whether wg-quick@<name> is enabled.
func (i *Inspector) autostart(name string) string {
	out, err := i.cmd.Run("systemctl", "is-enabled", "wg-quick@"+name)
	state := strings.TrimSpace(string(out))
	switch {
	case state == "enabled":
		return "enabled"
	case state == "disabled" || state == "masked" || state == "static":
		return "disabled"
	case err == nil && state != "":
		return state
	default:
		return "unknown"
	}
}

func isNotFound(err error) bool {
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	var notFound netlink.LinkNotFoundError
	if errors.As(err, &notFound) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such device") || strings.Contains(msg, "not found")
}
