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

//go:build integration
// +build integration

package integration

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/ppwm/backup"
	"github.com/we-are-mono/ppwm/pipeline"
	"github.com/we-are-mono/ppwm/types"
)

const serverConfig = `[Interface]
Address = 10.66.66.1/24
ListenPort = 51820
PrivateKey = YCkuRtIvpBglmQx4JQkLgGHqj8yNk9B5N1jzZqhJvAc=
PostUp = iptables -t nat -A POSTROUTING -o eth0 -j MASQUERADE
PostDown = iptables -t nat -D POSTROUTING -o eth0 -j MASQUERADE

[Peer]
PublicKey = QJpJ3Nc4rlVfHTUxNHO2N2qHJlBKDTMBD7OqRJPDJUs=
AllowedIPs = 10.66.66.2/32
`

func single(port int, proto types.Protocol) types.PortBinding {
	return types.PortBinding{Port: types.SinglePort(port), Protocol: proto}
}

// TestPortLifecycleWorkflow runs every mutation against a config on disk
// and checks that undoing them restores the templated file byte for byte.
func TestPortLifecycleWorkflow(t *testing.T) {
	harness := NewTestHarness(t)
	defer harness.Cleanup()

	path := harness.WriteConfig("wg0", serverConfig)
	p := harness.Pipeline(false)

	// Step 1: template
	r, err := p.InitTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultCategories, r.Markers)
	templated := harness.ReadConfig("wg0")
	assert.True(t, strings.HasPrefix(templated, serverConfig), "existing content is kept")

	// Step 2: subsection and ports
	_, err = p.AddSubsection(path, types.CategoryGames, "Minecraft")
	require.NoError(t, err)
	_, err = p.AddPorts(path, types.CategoryGames, "Minecraft", []types.PortBinding{
		single(25565, types.ProtocolTCP),
		{Port: types.PortSpec{Start: 19132, End: 19133}, Protocol: types.ProtocolUDP},
	})
	require.NoError(t, err)

	text := harness.ReadConfig("wg0")
	assert.Contains(t, text, "Port: 25565/tcp\nPostUp = iptables -t nat -A PREROUTING -p tcp --dport 25565 -j DNAT --to-destination 10.66.66.2:25565\n")
	assert.Contains(t, text, "--dport 19132:19133 -j DNAT --to-destination 10.66.66.2:19132-19133")

	// Step 3: conflicting add is rejected and leaves the file alone
	_, err = p.AddPort(path, types.CategoryGames, "Minecraft", single(19133, types.ProtocolBoth))
	assert.ErrorIs(t, err, types.ErrDuplicatePortBinding)
	var perr *pipeline.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, pipeline.StageLoaded, perr.Stage)
	assert.Equal(t, text, harness.ReadConfig("wg0"))

	// Step 4: edit
	key := types.KeyOf(types.CategoryGames, "Minecraft", single(25565, types.ProtocolTCP))
	nb := single(25565, types.ProtocolTCP)
	nb.ForwardTarget = 25566
	_, err = p.EditPort(path, key, nb)
	require.NoError(t, err)
	assert.Contains(t, harness.ReadConfig("wg0"), "--to-destination 10.66.66.2:25566")

	// Step 5: undo everything
	_, err = p.DeletePort(path, key)
	require.NoError(t, err)
	_, err = p.RemoveSubsection(path, types.CategoryGames, "Minecraft")
	require.NoError(t, err)
	assert.Equal(t, templated, harness.ReadConfig("wg0"))

	// Every persisted mutation left a backup of the previous version
	records, err := harness.Backups().List("wg0.conf")
	require.NoError(t, err)
	assert.Len(t, records, 6)
	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.True(t, strings.HasPrefix(rec.Reason, "before "), rec.Reason)
	}
}

// TestDryRunLeavesNoTrace tests that dry runs neither write nor back up
func TestDryRunLeavesNoTrace(t *testing.T) {
	harness := NewTestHarness(t)
	defer harness.Cleanup()

	path := harness.WriteConfig("wg0", serverConfig)
	r, err := harness.Pipeline(true).InitTemplate(path)
	require.NoError(t, err)

	assert.Equal(t, pipeline.StageDocumentRewritten, r.Stage)
	assert.Contains(t, r.Diff, "+[Category: Games]")
	assert.Equal(t, serverConfig, harness.ReadConfig("wg0"))

	records, err := harness.Backups().List("")
	require.NoError(t, err)
	assert.Empty(t, records)
}

// TestRestoreFromLedger tests restoring a config from a recorded backup
func TestRestoreFromLedger(t *testing.T) {
	harness := NewTestHarness(t)
	defer harness.Cleanup()

	path := harness.WriteConfig("wg0", serverConfig)
	_, err := harness.Pipeline(false).InitTemplate(path)
	require.NoError(t, err)

	records, err := harness.Backups().List("wg0.conf")
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Reopen the ledger to check records survive
	harness.ledger.Close()
	harness.ledger = nil

	svc := harness.Backups()
	_, err = svc.Restore(records[0].ID, harness.wgDir, false)
	assert.ErrorIs(t, err, backup.ErrTargetExists)

	restored, err := svc.Restore(records[0].ID, harness.wgDir, true)
	require.NoError(t, err)
	assert.Equal(t, path, restored)
	assert.Equal(t, serverConfig, harness.ReadConfig("wg0"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
