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

package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/ppwm/backup"
	"github.com/we-are-mono/ppwm/types"
)

const confPath = "/etc/wireguard/wg0.conf"

const template = `[Interface]
Address = 10.66.66.1/24
ListenPort = 51820

[Category: Games]
[Category: Services]
[Category: Miscellaneous]
`

// memStore is an in-memory Store that can be told to fail writes
type memStore struct {
	files     map[string]string
	persisted int
	failWrite error
}

func newMemStore(text string) *memStore {
	return &memStore{files: map[string]string{confPath: text}}
}

func (m *memStore) Load(path string) (string, error) {
	text, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("open %s: no such file or directory", path)
	}
	return text, nil
}

func (m *memStore) Persist(path, text string) error {
	if m.failWrite != nil {
		return m.failWrite
	}
	m.files[path] = text
	m.persisted++
	return nil
}

type mockBackuper struct {
	reasons []string
	err     error
}

func (m *mockBackuper) Backup(path, reason string) (*backup.Record, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.reasons = append(m.reasons, reason)
	return &backup.Record{Path: fmt.Sprintf("%s-%d", path, len(m.reasons))}, nil
}

func newPipeline(store *memStore, opts ...func(*Options)) *Pipeline {
	o := Options{Store: store, ClientIP: "10.66.66.2"}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}

func single(port int, proto types.Protocol) types.PortBinding {
	return types.PortBinding{Port: types.SinglePort(port), Protocol: proto}
}

func requireStage(t *testing.T, err error, stage Stage, sentinel error) {
	t.Helper()
	var perr *Error
	require.True(t, errors.As(err, &perr), "expected *pipeline.Error, got %v", err)
	assert.Equal(t, stage, perr.Stage)
	assert.ErrorIs(t, err, sentinel)
}

func TestLobbyScenario(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store)

	r, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, StagePersisted, r.Stage)

	r, err = p.AddPort(confPath, types.CategoryGames, "Lobby", single(667, types.ProtocolTCP))
	require.NoError(t, err)
	assert.Len(t, r.Added, 4)
	assert.Contains(t, store.files[confPath], "PostDown = iptables -D FORWARD -p tcp --dport 667 -j ACCEPT")

	c, err := p.Inspect(confPath)
	require.NoError(t, err)
	entries, err := c.ListPorts(types.CategoryGames, "Lobby")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	r, err = p.DeletePort(confPath, entries[0].Key)
	require.NoError(t, err)
	assert.Equal(t, entries[0].Directives, r.Removed)
	assert.NotContains(t, store.files[confPath], "667")

	c, err = p.Inspect(confPath)
	require.NoError(t, err)
	entries, err = c.ListPorts(types.CategoryGames, "Lobby")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, 3, store.persisted)
}

func TestDuplicateSubsectionLeavesFileUntouched(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store)

	_, err := p.AddSubsection(confPath, types.CategoryMiscellaneous, "Voice")
	require.NoError(t, err)
	_, err = p.AddPort(confPath, types.CategoryMiscellaneous, "Voice",
		types.PortBinding{Port: types.PortSpec{Start: 667, End: 671}, Protocol: types.ProtocolUDP})
	require.NoError(t, err)
	before := store.files[confPath]

	_, err = p.AddSubsection(confPath, types.CategoryMiscellaneous, "Voice")
	requireStage(t, err, StageLoaded, types.ErrDuplicateSubsection)
	assert.Equal(t, before, store.files[confPath])
	assert.Equal(t, 2, store.persisted)
}

func TestIdempotentDelete(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store)
	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	_, err = p.AddPort(confPath, types.CategoryGames, "Lobby", single(667, types.ProtocolTCP))
	require.NoError(t, err)

	key := types.KeyOf(types.CategoryGames, "Lobby", single(667, types.ProtocolTCP))
	_, err = p.DeletePort(confPath, key)
	require.NoError(t, err)
	after := store.files[confPath]

	_, err = p.DeletePort(confPath, key)
	requireStage(t, err, StageLoaded, types.ErrPortNotFound)
	assert.Equal(t, after, store.files[confPath])
}

func TestUniquenessAcrossCategories(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store)
	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	_, err = p.AddSubsection(confPath, types.CategoryServices, "Web")
	require.NoError(t, err)
	_, err = p.AddPort(confPath, types.CategoryGames, "Lobby", single(8080, types.ProtocolTCP))
	require.NoError(t, err)
	before := store.files[confPath]

	_, err = p.AddPort(confPath, types.CategoryServices, "Web", single(8080, types.ProtocolBoth))
	requireStage(t, err, StageLoaded, types.ErrDuplicatePortBinding)
	assert.Equal(t, before, store.files[confPath])
}

func TestAtomicEdit(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store)
	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	_, err = p.AddPorts(confPath, types.CategoryGames, "Lobby", []types.PortBinding{
		single(667, types.ProtocolTCP), single(700, types.ProtocolUDP),
	})
	require.NoError(t, err)
	before := store.files[confPath]

	key := types.KeyOf(types.CategoryGames, "Lobby", single(667, types.ProtocolTCP))
	_, err = p.EditPort(confPath, key, single(700, types.ProtocolBoth))
	requireStage(t, err, StageLoaded, types.ErrDuplicatePortBinding)
	assert.Equal(t, before, store.files[confPath])
	assert.Contains(t, store.files[confPath], "Port: 667/tcp")
}

func TestEditPort(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store)
	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	_, err = p.AddPorts(confPath, types.CategoryGames, "Lobby", []types.PortBinding{
		single(667, types.ProtocolTCP), single(700, types.ProtocolUDP),
	})
	require.NoError(t, err)

	key := types.KeyOf(types.CategoryGames, "Lobby", single(667, types.ProtocolTCP))
	nb := single(667, types.ProtocolBoth)
	nb.ForwardTarget = 7667
	r, err := p.EditPort(confPath, key, nb)
	require.NoError(t, err)
	assert.Len(t, r.Removed, 4)
	assert.Len(t, r.Added, 8)

	text := store.files[confPath]
	assert.NotContains(t, text, "Port: 667/tcp")
	assert.Contains(t, text, "Port: 667/both")
	assert.Contains(t, text, "--to-destination 10.66.66.2:7667")
}

func TestEditPortKeepsItsOwnPort(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store)
	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	_, err = p.AddPort(confPath, types.CategoryGames, "Lobby", single(667, types.ProtocolTCP))
	require.NoError(t, err)

	key := types.KeyOf(types.CategoryGames, "Lobby", single(667, types.ProtocolTCP))
	_, err = p.EditPort(confPath, key, single(667, types.ProtocolBoth))
	assert.NoError(t, err, "widening a binding must not conflict with itself")
}

func TestAddPortsBatchIsAllOrNothing(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store)
	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	before := store.files[confPath]

	tests := []struct {
		name     string
		bindings []types.PortBinding
		sentinel error
		stage    Stage
	}{
		{"overlap inside batch", []types.PortBinding{
			single(667, types.ProtocolTCP),
			{Port: types.PortSpec{Start: 660, End: 670}, Protocol: types.ProtocolTCP},
		}, types.ErrDuplicatePortBinding, StageLoaded},
		{"range forward", []types.PortBinding{
			single(667, types.ProtocolTCP),
			{Port: types.PortSpec{Start: 700, End: 710}, Protocol: types.ProtocolUDP, ForwardTarget: 800},
		}, types.ErrUnsupportedRangeForward, StageValidated},
		{"invalid port", []types.PortBinding{single(0, types.ProtocolTCP)}, types.ErrInvalidBinding, StageLoaded},
		{"empty batch", nil, types.ErrInvalidBinding, StageLoaded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.AddPorts(confPath, types.CategoryGames, "Lobby", tt.bindings)
			requireStage(t, err, tt.stage, tt.sentinel)
			assert.Equal(t, before, store.files[confPath])
		})
	}
}

func TestRemoveSubsection(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store)
	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	_, err = p.AddPort(confPath, types.CategoryGames, "Lobby", single(667, types.ProtocolBoth))
	require.NoError(t, err)

	r, err := p.RemoveSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	assert.Len(t, r.Removed, 8)
	assert.Equal(t, template, store.files[confPath])

	_, err = p.RemoveSubsection(confPath, types.CategoryGames, "Lobby")
	requireStage(t, err, StageLoaded, types.ErrSubsectionNotFound)
}

func TestMalformedDocument(t *testing.T) {
	store := newMemStore("[Category: Games]\nSubsection: Lobby\n")
	p := newPipeline(store)

	_, err := p.AddSubsection(confPath, types.CategoryGames, "Other")
	requireStage(t, err, StageNone, types.ErrMalformedDocument)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "MalformedDocument", perr.Kind())
	assert.False(t, perr.Recoverable())
	assert.Equal(t, 0, store.persisted)
}

func TestRepeatedMarkersRefused(t *testing.T) {
	store := newMemStore(template + "[Category: Games]\n")
	p := newPipeline(store)

	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	requireStage(t, err, StageLoaded, types.ErrDuplicateMarker)
	assert.Equal(t, 0, store.persisted)
}

func TestLoadFailure(t *testing.T) {
	p := newPipeline(newMemStore(template))
	_, err := p.AddSubsection("/etc/wireguard/missing.conf", types.CategoryGames, "Lobby")
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageNone, perr.Stage)
	assert.Contains(t, err.Error(), "no such file")
}

func TestPersistFailure(t *testing.T) {
	store := newMemStore(template)
	store.failWrite = errors.New("disk full")
	p := newPipeline(store)

	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	requireStage(t, err, StageDocumentRewritten, types.ErrPersistenceFailure)
	assert.Equal(t, template, store.files[confPath])
}

func TestDryRun(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store, func(o *Options) { o.DryRun = true })

	r, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, StageDocumentRewritten, r.Stage)
	assert.True(t, r.Changed)
	assert.Contains(t, r.Diff, "+Subsection: Lobby")
	assert.True(t, strings.HasPrefix(r.Diff, "--- "+confPath))
	assert.Equal(t, 0, store.persisted)
	assert.Equal(t, template, store.files[confPath])
}

func TestBackupPolicy(t *testing.T) {
	store := newMemStore(template)
	b := &mockBackuper{}
	p := newPipeline(store, func(o *Options) {
		o.Backups = b
		o.BackupBefore = true
		o.BackupAfter = true
	})

	r, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.NoError(t, err)
	assert.Equal(t, []string{"before add-subsection", "after add-subsection"}, b.reasons)
	assert.Len(t, r.Backups, 2)

	// rejected operations never reach the backup step
	_, err = p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	require.Error(t, err)
	assert.Len(t, b.reasons, 2)
}

func TestBackupBeforeFailureAbortsWrite(t *testing.T) {
	store := newMemStore(template)
	p := newPipeline(store, func(o *Options) {
		o.Backups = &mockBackuper{err: errors.New("read-only filesystem")}
		o.BackupBefore = true
	})

	_, err := p.AddSubsection(confPath, types.CategoryGames, "Lobby")
	requireStage(t, err, StageDocumentRewritten, types.ErrPersistenceFailure)
	assert.Equal(t, 0, store.persisted)
}

func TestInitTemplate(t *testing.T) {
	store := newMemStore("[Interface]\nAddress = 10.66.66.1/24\n")
	p := newPipeline(store)

	r, err := p.InitTemplate(confPath)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultCategories, r.Markers)
	assert.Contains(t, store.files[confPath], "[Category: Games]\n[Category: Services]\n[Category: Miscellaneous]\n")

	r, err = p.InitTemplate(confPath)
	require.NoError(t, err)
	assert.False(t, r.Changed)
	assert.Empty(t, r.Markers)
	assert.Equal(t, 1, store.persisted)
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "RULES_COMPUTED", StageRulesComputed.String())
	assert.Equal(t, "NONE", Stage(42).String())
}
