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

// Package rules synthesizes the iptables directive lines stored in a
// WireGuard config for each port binding.
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/we-are-mono/ppwm/types"
)

// Action selects whether directives are generated for insertion or removal.
type Action string

const (
	ActionAdd    Action = "add"
	ActionDelete Action = "delete"
)

// Directive keys as they appear in a wg-quick config.
const (
	KeyPostUp   = "PostUp"
	KeyPostDown = "PostDown"
)

// Synthesizer maps port bindings to directive lines. It holds no state
// besides the DNAT destination address.
type Synthesizer struct {
	clientIP string
}

// NewSynthesizer creates a synthesizer that forwards to clientIP.
// An empty address falls back to the <client_ip> placeholder.
func NewSynthesizer(clientIP string) *Synthesizer {
	if clientIP == "" {
		clientIP = types.DefaultClientIP
	}
	return &Synthesizer{clientIP: clientIP}
}

// ClientIP returns the DNAT destination address.
func (s *Synthesizer) ClientIP() string {
	return s.clientIP
}

// Synthesize returns the ordered directive lines for a binding. For
// ActionAdd these are the lines to insert after the Port record; for
// ActionDelete they are the exact lines to remove. Both are the same text:
// deletion is textual, so callers must pass the original binding.
//
// Each transport gets one quadruplet: PostUp DNAT, PostUp FORWARD, then the
// PostDown counterparts in the same order. "both" yields tcp then udp.
func (s *Synthesizer) Synthesize(b types.PortBinding, action Action) ([]string, error) {
	if action != ActionAdd && action != ActionDelete {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	b = b.Normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.Port.IsRange() && b.ForwardTarget != 0 {
		return nil, fmt.Errorf("%w: %s -> %d", types.ErrUnsupportedRangeForward, b.Port, b.ForwardTarget)
	}

	lines := make([]string, 0, 4*len(b.Protocol.Transports()))
	for _, proto := range b.Protocol.Transports() {
		lines = append(lines,
			GeneratePostUp(s.GenerateDNATRule(proto, b, "-A")),
			GeneratePostUp(GenerateForwardRule(proto, b, "-A")),
			GeneratePostDown(s.GenerateDNATRule(proto, b, "-D")),
			GeneratePostDown(GenerateForwardRule(proto, b, "-D")),
		)
	}
	return lines, nil
}

// Delta splits synthesized directives into the commands that would run now:
// PostUp commands when a binding is added, PostDown commands when removed.
func Delta(lines []string, action Action) []string {
	want := KeyPostUp
	if action == ActionDelete {
		want = KeyPostDown
	}
	var cmds []string
	for _, line := range lines {
		if key, cmd, ok := SplitDirective(line); ok && key == want {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// GenerateDNATRule generates the PREROUTING DNAT rule for one transport.
func (s *Synthesizer) GenerateDNATRule(proto types.Protocol, b types.PortBinding, verb string) string {
	return fmt.Sprintf("iptables -t nat %s PREROUTING -p %s --dport %s -j DNAT --to-destination %s:%s",
		verb, proto, dportArg(b.Port), s.clientIP, targetArg(b))
}

// GenerateForwardRule generates the FORWARD accept rule for one transport.
func GenerateForwardRule(proto types.Protocol, b types.PortBinding, verb string) string {
	return fmt.Sprintf("iptables %s FORWARD -p %s --dport %s -j ACCEPT", verb, proto, dportArg(b.Port))
}

// GeneratePostUp wraps a rule as a PostUp directive line.
func GeneratePostUp(rule string) string {
	return KeyPostUp + " = " + rule
}

// GeneratePostDown wraps a rule as a PostDown directive line.
func GeneratePostDown(rule string) string {
	return KeyPostDown + " = " + rule
}

// iptables matches ranges as "start:end" but DNAT targets as "start-end".
func dportArg(p types.PortSpec) string {
	if p.IsRange() {
		return fmt.Sprintf("%d:%d", p.Start, p.End)
	}
	return strconv.Itoa(p.Start)
}

func targetArg(b types.PortBinding) string {
	if b.ForwardTarget != 0 {
		return strconv.Itoa(b.ForwardTarget)
	}
	return b.Port.String()
}

// SplitDirective splits "PostUp = <cmd>" into key and command.
func SplitDirective(line string) (key, cmd string, ok bool) {
	k, v, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return "", "", false
	}
	k = strings.TrimSpace(k)
	if k != KeyPostUp && k != KeyPostDown {
		return "", "", false
	}
	return k, strings.TrimSpace(v), true
}

// IsDirective reports whether the line is a PostUp or PostDown directive.
func IsDirective(line string) bool {
	_, _, ok := SplitDirective(line)
	return ok
}

var dnatPattern = regexp.MustCompile(`PREROUTING -p (tcp|udp) --dport (\S+) -j DNAT --to-destination (\S+):(\d+(?:-\d+)?)$`)

// ForwardTarget recovers the forward target of a binding from its stored
// directive lines. It returns zero when the DNAT target equals the
// external port or no DNAT directive is present.
func ForwardTarget(port types.PortSpec, lines []string) int {
	for _, line := range lines {
		m := dnatPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		target, err := strconv.Atoi(m[4])
		if err != nil {
			// range target, never remapped
			return 0
		}
		if !port.IsRange() && target == port.Start {
			return 0
		}
		return target
	}
	return 0
}

// Counterpart returns the PostDown line that undoes a PostUp line.
func Counterpart(line string) (string, bool) {
	key, cmd, ok := SplitDirective(line)
	if !ok || key != KeyPostUp {
		return "", false
	}
	fields := strings.Fields(cmd)
	for i, f := range fields {
		if f == "-A" {
			fields[i] = "-D"
			return GeneratePostDown(strings.Join(fields, " ")), true
		}
	}
	return "", false
}
