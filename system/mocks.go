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
	"fmt"
	"strings"
	"sync"

	"github.com/vishvananda/netlink"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// MockNetlinkClient is a mock implementation of NetlinkClient for testing.
type MockNetlinkClient struct {
	mu sync.Mutex

	// State
	Links     map[string]netlink.Link
	Addresses map[string][]netlink.Addr

	// Call counters for verification
	LinkByNameCalls int
	AddrListCalls   int

	// Error injection for testing error paths
	LinkByNameError error
	AddrListError   error
}

// NewMockNetlinkClient creates a new MockNetlinkClient.
func NewMockNetlinkClient() *MockNetlinkClient {
	return &MockNetlinkClient{
		Links:     make(map[string]netlink.Link),
		Addresses: make(map[string][]netlink.Addr),
	}
}

func (m *MockNetlinkClient) LinkByName(name string) (netlink.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinkByNameCalls++

	if m.LinkByNameError != nil {
		return nil, m.LinkByNameError
	}

	link, ok := m.Links[name]
	if !ok {
		return nil, fmt.Errorf("Link not found")
	}
	return link, nil
}

func (m *MockNetlinkClient) AddrList(link netlink.Link, family int) ([]netlink.Addr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddrListCalls++

	if m.AddrListError != nil {
		return nil, m.AddrListError
	}
	return m.Addresses[link.Attrs().Name], nil
}

// MockWireGuardClient is a mock implementation of WireGuardClient for testing.
type MockWireGuardClient struct {
	mu sync.Mutex

	Devices     map[string]*wgtypes.Device
	DeviceError error
	DeviceCalls int
	Closed      bool
}

// NewMockWireGuardClient creates a new MockWireGuardClient.
func NewMockWireGuardClient() *MockWireGuardClient {
	return &MockWireGuardClient{Devices: make(map[string]*wgtypes.Device)}
}

func (m *MockWireGuardClient) Device(name string) (*wgtypes.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeviceCalls++

	if m.DeviceError != nil {
		return nil, m.DeviceError
	}
	d, ok := m.Devices[name]
	if !ok {
		return nil, fmt.Errorf("wgctrl: device %q: no such device", name)
	}
	return d, nil
}

func (m *MockWireGuardClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// MockSysctlClient is a mock implementation of SysctlClient for testing.
type MockSysctlClient struct {
	mu     sync.Mutex
	Values map[string]string
}

// NewMockSysctlClient creates a new MockSysctlClient.
func NewMockSysctlClient() *MockSysctlClient {
	return &MockSysctlClient{Values: make(map[string]string)}
}

func (m *MockSysctlClient) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.Values[key]
	if !ok {
		return "", fmt.Errorf("sysctl %s not found", key)
	}
	return v, nil
}

// MockFilesystemClient is a mock implementation of FilesystemClient for testing.
type MockFilesystemClient struct {
	mu    sync.Mutex
	Files map[string][]byte
}

// NewMockFilesystemClient creates a new MockFilesystemClient.
func NewMockFilesystemClient() *MockFilesystemClient {
	return &MockFilesystemClient{Files: make(map[string][]byte)}
}

func (m *MockFilesystemClient) ReadFile(filename string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.Files[filename]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", filename)
	}
	return data, nil
}

// MockCommandRunner is a mock implementation of CommandRunner for testing.
type MockCommandRunner struct {
	mu sync.Mutex

	// State
	CommandOutputs map[string][]byte
	CommandErrors  map[string]error

	// Call tracking
	Commands [][]string
	RunCalls int

	// Error injection
	RunError error
}

// NewMockCommandRunner creates a new MockCommandRunner.
func NewMockCommandRunner() *MockCommandRunner {
	return &MockCommandRunner{
		CommandOutputs: make(map[string][]byte),
		CommandErrors:  make(map[string]error),
		Commands:       make([][]string, 0),
	}
}

func (m *MockCommandRunner) Run(name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunCalls++

	cmd := append([]string{name}, args...)
	m.Commands = append(m.Commands, cmd)

	if m.RunError != nil {
		return nil, m.RunError
	}

	key := strings.Join(cmd, " ")
	return m.CommandOutputs[key], m.CommandErrors[key]
}

// SetOutput sets the output (and optional error) for a specific command.
func (m *MockCommandRunner) SetOutput(name string, args []string, output []byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.Join(append([]string{name}, args...), " ")
	m.CommandOutputs[key] = output
	if err != nil {
		m.CommandErrors[key] = err
	}
}
