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

// Package system provides the host integration ppwm needs to report on
// WireGuard tunnels: links, devices, sysctls and service units.
package system

import (
	"os"
	"os/exec"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// NetlinkClient abstracts netlink operations for testability.
type NetlinkClient interface {
	LinkByName(name string) (netlink.Link, error)
	AddrList(link netlink.Link, family int) ([]netlink.Addr, error)
}

// WireGuardClient abstracts wgctrl device queries for testability.
type WireGuardClient interface {
	Device(name string) (*wgtypes.Device, error)
	Close() error
}

// SysctlClient abstracts sysctl operations for testability.
type SysctlClient interface {
	// Get reads a sysctl value
	Get(key string) (string, error)
}

// FilesystemClient abstracts filesystem operations for testability.
type FilesystemClient interface {
	// ReadFile reads the entire file content
	ReadFile(filename string) ([]byte, error)
}

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	// Run executes a command and returns its combined output
	Run(name string, args ...string) ([]byte, error)
}

// DefaultNetlinkClient implements NetlinkClient using real netlink calls.
type DefaultNetlinkClient struct{}

// NewDefaultNetlinkClient creates a new DefaultNetlinkClient.
func NewDefaultNetlinkClient() *DefaultNetlinkClient {
	return &DefaultNetlinkClient{}
}

func (c *DefaultNetlinkClient) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (c *DefaultNetlinkClient) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	return netlink.AddrList(link, family)
}

// DefaultWireGuardClient opens a wgctrl client on first use.
type DefaultWireGuardClient struct {
	client *wgctrl.Client
}

// NewDefaultWireGuardClient creates a new DefaultWireGuardClient.
func NewDefaultWireGuardClient() *DefaultWireGuardClient {
	return &DefaultWireGuardClient{}
}

func (c *DefaultWireGuardClient) Device(name string) (*wgtypes.Device, error) {
	if c.client == nil {
		client, err := wgctrl.New()
		if err != nil {
			return nil, err
		}
		c.client = client
	}
	return c.client.Device(name)
}

func (c *DefaultWireGuardClient) Close() error {
	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}

// DefaultSysctlClient implements SysctlClient using /proc/sys.
type DefaultSysctlClient struct {
	fs FilesystemClient
}

// NewDefaultSysctlClient creates a new DefaultSysctlClient.
func NewDefaultSysctlClient(fs FilesystemClient) *DefaultSysctlClient {
	return &DefaultSysctlClient{fs: fs}
}

func (c *DefaultSysctlClient) Get(key string) (string, error) {
	path := "/proc/sys/" + strings.ReplaceAll(key, ".", "/")
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// DefaultFilesystemClient implements FilesystemClient using real filesystem operations.
type DefaultFilesystemClient struct{}

// NewDefaultFilesystemClient creates a new DefaultFilesystemClient.
func NewDefaultFilesystemClient() *DefaultFilesystemClient {
	return &DefaultFilesystemClient{}
}

func (c *DefaultFilesystemClient) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// DefaultCommandRunner implements CommandRunner using real command execution.
type DefaultCommandRunner struct{}

// NewDefaultCommandRunner creates a new DefaultCommandRunner.
func NewDefaultCommandRunner() *DefaultCommandRunner {
	return &DefaultCommandRunner{}
}

func (c *DefaultCommandRunner) Run(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	return cmd.CombinedOutput()
}
