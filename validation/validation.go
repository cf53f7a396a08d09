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

// Package validation provides reusable validation helpers for ppwm input and
// config documents.
package validation

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ValidatePort validates that a port number is in the valid range [1, 65535].
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port %d out of valid range [1, 65535]", port)
	}
	return nil
}

// ValidatePortString validates a port number or port range string.
// Valid formats: "80", "8080-8090"
func ValidatePortString(portStr string) error {
	if portStr == "" {
		return fmt.Errorf("port string cannot be empty")
	}

	// Check if it's a port range (contains hyphen)
	if strings.Contains(portStr, "-") {
		parts := strings.Split(portStr, "-")
		if len(parts) != 2 {
			return fmt.Errorf("invalid port range format: %s (expected format: 'start-end')", portStr)
		}

		start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return fmt.Errorf("invalid start port in range %s: %w", portStr, err)
		}

		end, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return fmt.Errorf("invalid end port in range %s: %w", portStr, err)
		}

		if err := ValidatePort(start); err != nil {
			return fmt.Errorf("invalid start port in range %s: %w", portStr, err)
		}

		if err := ValidatePort(end); err != nil {
			return fmt.Errorf("invalid end port in range %s: %w", portStr, err)
		}

		if start >= end {
			return fmt.Errorf("invalid port range %s: start port must be less than end port", portStr)
		}

		return nil
	}

	// Single port number
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return fmt.Errorf("invalid port number %s: %w", portStr, err)
	}

	return ValidatePort(port)
}

// ValidatePortList validates a comma separated list of ports and ranges
// ("667, 669-671") and returns the trimmed entries.
func ValidatePortList(list string) ([]string, error) {
	var entries []string
	c := NewCollector("port list")
	for i, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		c.Field(fmt.Sprintf("entry %d", i+1), ValidatePortString(part))
		entries = append(entries, part)
	}
	if err := c.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("port list cannot be empty")
	}
	return entries, nil
}

// ValidateIP validates that a string is a valid IPv4 or IPv6 address.
func ValidateIP(ip string) error {
	if ip == "" {
		return fmt.Errorf("IP address cannot be empty")
	}

	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid IP address: %s", ip)
	}

	return nil
}

// ValidateClientIP accepts an IP address or a "<placeholder>" token that is
// substituted when the rules are applied.
func ValidateClientIP(ip string) error {
	if strings.HasPrefix(ip, "<") && strings.HasSuffix(ip, ">") && len(ip) > 2 {
		return nil
	}
	return ValidateIP(ip)
}

// ValidateProtocol validates that a protocol string is in the allowed list.
func ValidateProtocol(proto string, allowed []string) error {
	if proto == "" {
		return nil // Empty protocol is often optional
	}

	for _, validProto := range allowed {
		if proto == validProto {
			return nil
		}
	}

	return fmt.Errorf("invalid protocol %s (must be one of: %s)", proto, strings.Join(allowed, ", "))
}

// ValidateSubsectionName validates an operator supplied subsection name.
// Names are stored on a single marker line, so line breaks and surrounding
// whitespace are rejected.
func ValidateSubsectionName(name string) error {
	if name == "" {
		return fmt.Errorf("subsection name cannot be empty")
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("subsection name %q has leading or trailing whitespace", name)
	}
	if strings.ContainsAny(name, "\r\n") {
		return fmt.Errorf("subsection name %q contains a line break", name)
	}
	if len(name) > 64 {
		return fmt.Errorf("subsection name too long: %s (max 64 characters)", name)
	}
	return nil
}
