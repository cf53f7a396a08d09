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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExecuteValidate tests the validate command against good and broken configs.
func TestExecuteValidate(t *testing.T) {
	drifted := strings.Replace(lobbyConfig, "Subsection: Lobby\n", `Subsection: Lobby
Port: 667/tcp
PostUp = iptables -t nat -A PREROUTING -p tcp --dport 667 -j DNAT --to-destination 10.9.9.9:667
PostUp = iptables -A FORWARD -p tcp --dport 667 -j ACCEPT
PostDown = iptables -t nat -D PREROUTING -p tcp --dport 667 -j DNAT --to-destination 10.9.9.9:667
PostDown = iptables -D FORWARD -p tcp --dport 667 -j ACCEPT
`, 1)

	tests := []struct {
		name      string
		configs   map[string]string
		args      []string
		wantErr   bool
		wantLines []string
	}{
		{
			name:      "all valid",
			configs:   map[string]string{"wg0": testTemplate, "wg1": lobbyConfig},
			wantLines: []string{"✓ wg0: valid (0 ports)", "✓ wg1: valid (0 ports)", "✓ All configs are valid"},
		},
		{
			name:      "malformed",
			configs:   map[string]string{"wg0": testTemplate, "wg1": "PostUp = iptables -L\n"},
			wantErr:   true,
			wantLines: []string{"✓ wg0: valid", "❌ wg1: ", "malformed document"},
		},
		{
			name:      "repeated category",
			configs:   map[string]string{"wg0": testTemplate + "[Category: Games]\n"},
			wantErr:   true,
			wantLines: []string{"⚠ wg0: 1 warning(s)", "category Games repeated"},
		},
		{
			name:      "drifted rules only warn",
			configs:   map[string]string{"wg0": drifted},
			wantLines: []string{"⚠ wg0: 1 warning(s)", "directives differ from generated rules", "✓ All configs are valid"},
		},
		{
			name:      "named config missing",
			configs:   map[string]string{"wg0": testTemplate},
			args:      []string{"wg7"},
			wantErr:   true,
			wantLines: []string{"❌ wg7: not found"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, dir := newTestEnv(t, globalOptions{})
			for name, text := range tt.configs {
				writeConfig(t, dir, name, text)
			}

			var out bytes.Buffer
			err := executeValidate(&out, e, tt.args)
			if tt.wantErr {
				assert.ErrorContains(t, err, "validation failed")
			} else {
				require.NoError(t, err)
			}
			for _, line := range tt.wantLines {
				assert.Contains(t, out.String(), line)
			}
		})
	}
}
