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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/ppwm/types"
)

const lobbyConfig = `[Interface]
Address = 10.66.66.1/24
ListenPort = 51820

[Category: Games]
Subsection: Lobby

[Category: Services]
[Category: Miscellaneous]
`

func TestPortAddListDelete(t *testing.T) {
	e, dir := newTestEnv(t, globalOptions{})
	writeConfig(t, dir, "wg0", testTemplate)

	var out bytes.Buffer
	require.NoError(t, executeSubsectionAdd(&out, e, []string{"wg0", "games", "Lobby"}))
	assert.Contains(t, out.String(), "[OK] Subsection Lobby added to Games")

	out.Reset()
	require.NoError(t, executePortAdd(&out, e, []string{"wg0", "games", "Lobby", "667"}, portOptions{proto: "tcp"}))
	assert.Contains(t, out.String(), "+ PostUp = iptables -t nat -A PREROUTING -p tcp --dport 667 -j DNAT --to-destination 10.66.66.2:667")
	assert.Contains(t, out.String(), "Backup: ")
	assert.Contains(t, out.String(), "[OK] Added 1 port(s) to Games/Lobby")
	assert.Contains(t, readConfig(t, dir, "wg0"), "Subsection: Lobby\nPort: 667/tcp\n")

	out.Reset()
	require.NoError(t, executePortList(&out, e, []string{"wg0", "games", "Lobby"}))
	assert.Contains(t, out.String(), "1. 667/tcp\n")

	out.Reset()
	require.NoError(t, executePortDelete(&out, e, []string{"wg0", "games", "Lobby", "1"}))
	assert.Contains(t, out.String(), "- PostDown = iptables -t nat -D PREROUTING -p tcp --dport 667")
	assert.Contains(t, out.String(), "[OK] Removed 667/tcp from Games/Lobby")

	text := readConfig(t, dir, "wg0")
	assert.NotContains(t, text, "667")
	assert.Contains(t, text, "Subsection: Lobby")

	out.Reset()
	require.NoError(t, executePortList(&out, e, []string{"wg0", "games", "Lobby"}))
	assert.Equal(t, "No ports in Games/Lobby\n", out.String())
}

func TestPortAddList(t *testing.T) {
	e, dir := newTestEnv(t, globalOptions{noBackup: true})
	writeConfig(t, dir, "wg0", lobbyConfig)

	var out bytes.Buffer
	require.NoError(t, executePortAdd(&out, e, []string{"wg0", "Games", "Lobby", "667, 669-671"}, portOptions{proto: "both"}))
	assert.Contains(t, out.String(), "[OK] Added 2 port(s)")
	assert.NotContains(t, out.String(), "Backup:")

	text := readConfig(t, dir, "wg0")
	assert.Contains(t, text, "Port: 667/both\n")
	assert.Contains(t, text, "Port: 669-671/both\n")
	assert.Contains(t, text, "-p udp --dport 669:671 -j DNAT --to-destination 10.66.66.2:669-671")

	_, err := os.Stat(filepath.Join(dir, "backups"))
	assert.True(t, os.IsNotExist(err), "no backup directory without backups")
}

func TestPortAddRejected(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		opts    portOptions
		wantErr error
	}{
		{"duplicate in batch", []string{"wg0", "games", "Lobby", "667, 667"}, portOptions{proto: "tcp"}, types.ErrDuplicatePortBinding},
		{"overlaps existing range", []string{"wg0", "games", "Lobby", "27016"}, portOptions{proto: "udp"}, types.ErrDuplicatePortBinding},
		{"range with forward", []string{"wg0", "games", "Lobby", "700-710"}, portOptions{proto: "tcp", forward: 800}, types.ErrUnsupportedRangeForward},
		{"forward with list", []string{"wg0", "games", "Lobby", "700, 701"}, portOptions{proto: "tcp", forward: 800}, types.ErrInvalidBinding},
		{"bad port", []string{"wg0", "games", "Lobby", "70000"}, portOptions{proto: "tcp"}, types.ErrInvalidBinding},
		{"missing subsection", []string{"wg0", "games", "Arena", "700"}, portOptions{proto: "tcp"}, types.ErrSubsectionNotFound},
		{"unknown category", []string{"wg0", "arcade", "Lobby", "700"}, portOptions{proto: "tcp"}, types.ErrCategoryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, dir := newTestEnv(t, globalOptions{noBackup: true})
			writeConfig(t, dir, "wg0", lobbyConfig)
			require.NoError(t, executePortAdd(&bytes.Buffer{}, e, []string{"wg0", "games", "Lobby", "27015-27020"}, portOptions{proto: "udp"}))
			before := readConfig(t, dir, "wg0")

			err := executePortAdd(&bytes.Buffer{}, e, tt.args, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, readConfig(t, dir, "wg0"), "config must not change")
		})
	}
}

func TestPortEdit(t *testing.T) {
	e, dir := newTestEnv(t, globalOptions{noBackup: true})
	writeConfig(t, dir, "wg0", lobbyConfig)
	require.NoError(t, executePortAdd(&bytes.Buffer{}, e, []string{"wg0", "games", "Lobby", "25565"}, portOptions{proto: "tcp"}))

	var out bytes.Buffer
	require.NoError(t, executePortEdit(&out, e, []string{"wg0", "games", "Lobby", "1"}, portOptions{forward: 25566, forwardSet: true}))
	assert.Contains(t, out.String(), "[OK] Changed 25565/tcp to 25565/tcp")
	assert.Contains(t, readConfig(t, dir, "wg0"), "--to-destination 10.66.66.2:25566")

	out.Reset()
	require.NoError(t, executePortEdit(&out, e, []string{"wg0", "games", "Lobby", "25565/tcp"}, portOptions{proto: "both"}))
	text := readConfig(t, dir, "wg0")
	assert.Contains(t, text, "Port: 25565/both\n")
	assert.Contains(t, text, "-p udp --dport 25565 -j DNAT --to-destination 10.66.66.2:25566")

	out.Reset()
	require.NoError(t, executePortEdit(&out, e, []string{"wg0", "games", "Lobby", "1"}, portOptions{proto: "both"}))
	assert.Equal(t, "[OK] Nothing to change\n", out.String())

	err := executePortEdit(&out, e, []string{"wg0", "games", "Lobby", "1"}, portOptions{port: "25565-25570"})
	assert.ErrorIs(t, err, types.ErrUnsupportedRangeForward)
	assert.Equal(t, text, readConfig(t, dir, "wg0"))
}

func TestPortSelectorErrors(t *testing.T) {
	e, dir := newTestEnv(t, globalOptions{noBackup: true})
	writeConfig(t, dir, "wg0", lobbyConfig)
	require.NoError(t, executePortAdd(&bytes.Buffer{}, e, []string{"wg0", "games", "Lobby", "667"}, portOptions{proto: "tcp"}))

	tests := []struct {
		selector string
		wantErr  error
	}{
		{"2", types.ErrPortNotFound},
		{"0", types.ErrPortNotFound},
		{"667/udp", types.ErrPortNotFound},
		{"668/tcp", types.ErrPortNotFound},
		{"667/tcp", nil},
		{"abc", types.ErrInvalidBinding},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			c, err := e.pipeline.Inspect(filepath.Join(dir, "wg0.conf"))
			require.NoError(t, err)
			key, err := resolvePort(c, types.CategoryGames, "Lobby", tt.selector)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "667", key.Port.String())
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPortDryRun(t *testing.T) {
	e, dir := newTestEnv(t, globalOptions{dryRun: true})
	writeConfig(t, dir, "wg0", lobbyConfig)

	var out bytes.Buffer
	require.NoError(t, executePortAdd(&out, e, []string{"wg0", "games", "Lobby", "667"}, portOptions{proto: "tcp"}))
	assert.Contains(t, out.String(), "+Port: 667/tcp\n")
	assert.Contains(t, out.String(), "[DRY RUN] No changes written")
	assert.Equal(t, lobbyConfig, readConfig(t, dir, "wg0"))

	_, err := os.Stat(filepath.Join(dir, "backups"))
	assert.True(t, os.IsNotExist(err), "dry run must not back up")
}

func TestParseBindings(t *testing.T) {
	tests := []struct {
		name    string
		list    string
		proto   string
		forward int
		want    []string
		wantErr bool
	}{
		{"single", "667", "tcp", 0, []string{"667/tcp"}, false},
		{"list with spaces", "667, 669-671", "udp", 0, []string{"667/udp", "669-671/udp"}, false},
		{"forward on single", "8080", "both", 80, []string{"8080/both"}, false},
		{"forward on list", "80,81", "tcp", 8080, nil, true},
		{"bad protocol", "80", "icmp", 0, nil, true},
		{"empty", "", "tcp", 0, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bindings, err := parseBindings(tt.list, tt.proto, tt.forward)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var got []string
			for _, b := range bindings {
				got = append(got, b.Record())
				assert.Equal(t, tt.forward, b.ForwardTarget)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
