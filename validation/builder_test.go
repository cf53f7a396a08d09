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

package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorIgnoresNil(t *testing.T) {
	c := NewCollector("667/tcp")
	c.Check(nil)
	c.Field("forward target", nil)

	assert.Zero(t, c.Len())
	assert.NoError(t, c.Err())
}

func TestCollectorPrefixes(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		field   string
		want    string
	}{
		{"subject and field", "667-671/udp", "forward target", "667-671/udp: forward target: port 70000 out of valid range"},
		{"subject only", "667-671/udp", "", "667-671/udp: port 70000 out of valid range"},
		{"field only", "", "forward target", "forward target: port 70000 out of valid range"},
		{"bare", "", "", "port 70000 out of valid range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(tt.subject)
			c.Field(tt.field, ValidatePort(70000))
			require.Error(t, c.Err())
			assert.Contains(t, c.Err().Error(), tt.want)
		})
	}
}

func TestCollectorJoinsOnePerLine(t *testing.T) {
	c := NewCollector("port list")
	for _, spec := range []string{"80", "90-80", "abc"} {
		c.Field("entry "+spec, ValidatePortString(spec))
	}

	assert.Equal(t, 2, c.Len())
	lines := strings.Split(c.Err().Error(), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "port list: entry 90-80: invalid port range")
	assert.Contains(t, lines[1], "port list: entry abc: invalid port number")
}

func TestCollectorKeepsCause(t *testing.T) {
	cause := errors.New("subsection Lobby not found")
	c := NewCollector("667/tcp")
	c.Field("subsection", cause)

	assert.ErrorIs(t, c.Err(), cause)
}
