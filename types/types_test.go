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

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseProtocol(t *testing.T) {
	tests := []struct {
		in      string
		want    Protocol
		wantErr bool
	}{
		{"tcp", ProtocolTCP, false},
		{"UDP", ProtocolUDP, false},
		{" both ", ProtocolBoth, false},
		{"", "", true},
		{"icmp", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProtocol(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBinding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProtocolOverlaps(t *testing.T) {
	assert.True(t, ProtocolTCP.Overlaps(ProtocolTCP))
	assert.True(t, ProtocolBoth.Overlaps(ProtocolUDP))
	assert.True(t, ProtocolTCP.Overlaps(ProtocolBoth))
	assert.False(t, ProtocolTCP.Overlaps(ProtocolUDP))
	assert.Equal(t, []Protocol{ProtocolTCP, ProtocolUDP}, ProtocolBoth.Transports())
}

func TestParsePortSpec(t *testing.T) {
	tests := []struct {
		in      string
		want    PortSpec
		wantErr bool
	}{
		{"667", SinglePort(667), false},
		{"667-671", PortSpec{Start: 667, End: 671}, false},
		{" 80 ", SinglePort(80), false},
		{"0", PortSpec{}, true},
		{"65536", PortSpec{}, true},
		{"671-667", PortSpec{}, true},
		{"abc", PortSpec{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePortSpec(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBinding)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.IsRange(), got.End > got.Start)
		})
	}
}

func TestPortSpecString(t *testing.T) {
	assert.Equal(t, "667", SinglePort(667).String())
	assert.Equal(t, "667-671", PortSpec{Start: 667, End: 671}.String())
}

func TestParsePortRecord(t *testing.T) {
	port, proto, err := ParsePortRecord("667-671/udp")
	require.NoError(t, err)
	assert.Equal(t, PortSpec{Start: 667, End: 671}, port)
	assert.Equal(t, ProtocolUDP, proto)

	for _, bad := range []string{"667", "667/", "/tcp", "667/sctp"} {
		_, _, err := ParsePortRecord(bad)
		assert.ErrorIs(t, err, ErrInvalidBinding, bad)
	}
}

func TestPortBindingNormalize(t *testing.T) {
	b := PortBinding{Port: SinglePort(667), Protocol: ProtocolTCP, ForwardTarget: 667}
	assert.Equal(t, 0, b.Normalize().ForwardTarget)

	b.ForwardTarget = 700
	assert.Equal(t, 700, b.Normalize().ForwardTarget)
}

func TestPortBindingValidate(t *testing.T) {
	tests := []struct {
		name    string
		b       PortBinding
		wantErr bool
	}{
		{"valid single", PortBinding{Port: SinglePort(667), Protocol: ProtocolTCP}, false},
		{"valid forward", PortBinding{Port: SinglePort(667), Protocol: ProtocolBoth, ForwardTarget: 7667}, false},
		{"port zero", PortBinding{Port: SinglePort(0), Protocol: ProtocolTCP}, true},
		{"reversed range", PortBinding{Port: PortSpec{Start: 10, End: 5}, Protocol: ProtocolTCP}, true},
		{"bad protocol", PortBinding{Port: SinglePort(80), Protocol: "sctp"}, true},
		{"empty protocol", PortBinding{Port: SinglePort(80)}, true},
		{"bad forward target", PortBinding{Port: SinglePort(80), Protocol: ProtocolTCP, ForwardTarget: 70000}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.b.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidBinding)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPortBindingValidateNamesField(t *testing.T) {
	err := PortBinding{Port: SinglePort(80), Protocol: ProtocolTCP, ForwardTarget: 70000}.Validate()
	assert.ErrorContains(t, err, "80/tcp: forward target: port 70000 out of valid range")

	err = PortBinding{Port: SinglePort(80)}.Validate()
	assert.ErrorContains(t, err, "protocol: protocol cannot be empty")
}

func TestPortBindingConflicts(t *testing.T) {
	tcp80 := PortBinding{Port: SinglePort(80), Protocol: ProtocolTCP}
	tests := []struct {
		name  string
		other PortBinding
		want  bool
	}{
		{"same", PortBinding{Port: SinglePort(80), Protocol: ProtocolTCP}, true},
		{"forward target ignored", PortBinding{Port: SinglePort(80), Protocol: ProtocolTCP, ForwardTarget: 8080}, true},
		{"other transport", PortBinding{Port: SinglePort(80), Protocol: ProtocolUDP}, false},
		{"both", PortBinding{Port: SinglePort(80), Protocol: ProtocolBoth}, true},
		{"covering range", PortBinding{Port: PortSpec{Start: 70, End: 90}, Protocol: ProtocolTCP}, true},
		{"adjacent range", PortBinding{Port: PortSpec{Start: 81, End: 90}, Protocol: ProtocolTCP}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tcp80.Conflicts(tt.other))
			assert.Equal(t, tt.want, tt.other.Conflicts(tcp80))
		})
	}
}

func TestPortKey(t *testing.T) {
	b := PortBinding{Port: SinglePort(667), Protocol: ProtocolTCP, ForwardTarget: 700}
	key := KeyOf(CategoryGames, "Lobby", b)
	assert.True(t, key.Matches(b))
	assert.False(t, key.Matches(PortBinding{Port: SinglePort(667), Protocol: ProtocolUDP}))
	assert.Equal(t, "Games/Lobby/667/tcp", key.String())
}

func TestPortBindingEncoding(t *testing.T) {
	b := PortBinding{Port: PortSpec{Start: 667, End: 671}, Protocol: ProtocolUDP}

	data, err := json.Marshal(b)
	require.NoError(t, err)
	assert.JSONEq(t, `{"port":"667-671","protocol":"udp"}`, string(data))

	out, err := yaml.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, "port: 667-671\nprotocol: udp\n", string(out))

	var decoded PortBinding
	require.NoError(t, json.Unmarshal([]byte(`{"port":"25565","protocol":"tcp","forward_target":25566}`), &decoded))
	assert.Equal(t, PortBinding{Port: SinglePort(25565), Protocol: ProtocolTCP, ForwardTarget: 25566}, decoded)
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err         error
		kind        string
		recoverable bool
	}{
		{nil, "", false},
		{fmt.Errorf("wrap: %w", ErrDuplicateSubsection), "DuplicateSubsection", true},
		{fmt.Errorf("line 3: %w", ErrMalformedDocument), "MalformedDocument", false},
		{ErrPersistenceFailure, "PersistenceFailure", false},
		{ErrUnsupportedRangeForward, "UnsupportedRangeForward", true},
		{errors.New("boom"), "Unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.kind, ErrorKind(tt.err))
			assert.Equal(t, tt.recoverable, IsRecoverable(tt.err))
		})
	}
}
