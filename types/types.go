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

// Package types defines the core data structures shared by ppwm packages.
// It includes the port binding model stored inside WireGuard config files,
// the fixed category set, and the tool configuration.
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/we-are-mono/ppwm/validation"
)

// Protocol is the transport a port binding applies to.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolBoth Protocol = "both"
)

// Protocols lists every protocol accepted in a Port record.
var Protocols = []string{string(ProtocolTCP), string(ProtocolUDP), string(ProtocolBoth)}

// ParseProtocol parses a protocol name (case-insensitive).
func ParseProtocol(s string) (Protocol, error) {
	proto := strings.ToLower(strings.TrimSpace(s))
	if proto == "" {
		return "", fmt.Errorf("%w: protocol cannot be empty", ErrInvalidBinding)
	}
	if err := validation.ValidateProtocol(proto, Protocols); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidBinding, err)
	}
	return Protocol(proto), nil
}

// Transports expands a protocol into the concrete transports it covers.
func (p Protocol) Transports() []Protocol {
	if p == ProtocolBoth {
		return []Protocol{ProtocolTCP, ProtocolUDP}
	}
	return []Protocol{p}
}

// Overlaps reports whether two protocols share a transport.
func (p Protocol) Overlaps(other Protocol) bool {
	for _, a := range p.Transports() {
		for _, b := range other.Transports() {
			if a == b {
				return true
			}
		}
	}
	return false
}

// PortSpec is a single port or an inclusive port range.
// For a single port End equals Start.
type PortSpec struct {
	Start int
	End   int
}

// SinglePort returns the PortSpec for one port.
func SinglePort(port int) PortSpec {
	return PortSpec{Start: port, End: port}
}

// ParsePortSpec parses "667" or "667-671".
func ParsePortSpec(s string) (PortSpec, error) {
	s = strings.TrimSpace(s)
	if err := validation.ValidatePortString(s); err != nil {
		return PortSpec{}, fmt.Errorf("%w: %v", ErrInvalidBinding, err)
	}

	start, end, found := strings.Cut(s, "-")
	first, _ := strconv.Atoi(strings.TrimSpace(start))
	if !found {
		return SinglePort(first), nil
	}
	last, _ := strconv.Atoi(strings.TrimSpace(end))
	return PortSpec{Start: first, End: last}, nil
}

// IsRange reports whether the spec covers more than one port.
func (p PortSpec) IsRange() bool {
	return p.End > p.Start
}

// String renders the spec in Port record form.
func (p PortSpec) String() string {
	if p.IsRange() {
		return fmt.Sprintf("%d-%d", p.Start, p.End)
	}
	return strconv.Itoa(p.Start)
}

// MarshalText renders the spec as "667" or "667-671" in JSON and YAML.
func (p PortSpec) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses the form produced by MarshalText.
func (p *PortSpec) UnmarshalText(text []byte) error {
	spec, err := ParsePortSpec(string(text))
	if err != nil {
		return err
	}
	*p = spec
	return nil
}

// Overlaps reports whether the two specs share at least one port.
func (p PortSpec) Overlaps(other PortSpec) bool {
	return p.Start <= other.End && other.Start <= p.End
}

// PortBinding is a declared external port/protocol and its optional
// forwarded client port. ForwardTarget is zero when traffic keeps its port.
type PortBinding struct {
	Port          PortSpec `json:"port" yaml:"port"`
	Protocol      Protocol `json:"protocol" yaml:"protocol"`
	ForwardTarget int      `json:"forward_target,omitempty" yaml:"forward_target,omitempty"`
}

// ParsePortRecord parses the value of a Port record ("667/tcp").
func ParsePortRecord(s string) (PortSpec, Protocol, error) {
	portStr, protoStr, found := strings.Cut(strings.TrimSpace(s), "/")
	if !found {
		return PortSpec{}, "", fmt.Errorf("%w: port record %q missing protocol", ErrInvalidBinding, s)
	}
	port, err := ParsePortSpec(portStr)
	if err != nil {
		return PortSpec{}, "", err
	}
	proto, err := ParseProtocol(protoStr)
	if err != nil {
		return PortSpec{}, "", err
	}
	return port, proto, nil
}

// Record returns the Port record value ("667/tcp").
func (b PortBinding) Record() string {
	return b.Port.String() + "/" + string(b.Protocol)
}

// Normalize drops a forward target that equals the external port.
func (b PortBinding) Normalize() PortBinding {
	if !b.Port.IsRange() && b.ForwardTarget == b.Port.Start {
		b.ForwardTarget = 0
	}
	return b
}

// Validate checks port bounds and the forward target.
func (b PortBinding) Validate() error {
	c := validation.NewCollector(b.Record())
	c.Field("port", validation.ValidatePortString(b.Port.String()))
	if b.Port.End < b.Port.Start {
		c.Field("port", fmt.Errorf("invalid port spec %d-%d", b.Port.Start, b.Port.End))
	}
	if b.Protocol == "" {
		c.Field("protocol", fmt.Errorf("protocol cannot be empty"))
	} else {
		c.Field("protocol", validation.ValidateProtocol(string(b.Protocol), Protocols))
	}
	if b.ForwardTarget != 0 {
		c.Field("forward target", validation.ValidatePort(b.ForwardTarget))
	}
	if err := c.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBinding, err)
	}
	return nil
}

// Conflicts reports whether two bindings claim the same port on the same
// transport. Bindings share one network namespace, so overlap anywhere in
// the document is a conflict.
func (b PortBinding) Conflicts(other PortBinding) bool {
	return b.Port.Overlaps(other.Port) && b.Protocol.Overlaps(other.Protocol)
}

// PortKey identifies a binding inside a document independently of its
// display position.
type PortKey struct {
	Category   string   `json:"category"`
	Subsection string   `json:"subsection"`
	Port       PortSpec `json:"port"`
	Protocol   Protocol `json:"protocol"`
}

// KeyOf builds the PortKey for a binding at the given location.
func KeyOf(category, subsection string, b PortBinding) PortKey {
	return PortKey{Category: category, Subsection: subsection, Port: b.Port, Protocol: b.Protocol}
}

// Matches reports whether the key names this binding's port and protocol.
func (k PortKey) Matches(b PortBinding) bool {
	return k.Port == b.Port && k.Protocol == b.Protocol
}

func (k PortKey) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Category, k.Subsection, k.Port, k.Protocol)
}

// Fixed category names.
const (
	CategoryGames         = "Games"
	CategoryServices      = "Services"
	CategoryMiscellaneous = "Miscellaneous"
)

// DefaultCategories is the category set written by the template.
var DefaultCategories = []string{CategoryGames, CategoryServices, CategoryMiscellaneous}
