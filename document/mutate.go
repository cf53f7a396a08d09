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

package document

import (
	"fmt"
	"slices"
	"strings"

	"github.com/we-are-mono/ppwm/types"
)

// InsertSubsectionMarker appends a new, empty subsection to category.
// Blank lines that close the category stay after the new marker.
func (d *Document) InsertSubsectionMarker(category, name string) (*Subsection, error) {
	c := d.Category(category)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrCategoryNotFound, category)
	}
	if c.Subsection(name) != nil {
		return nil, fmt.Errorf("%w: %q already exists in %s", types.ErrDuplicateSubsection, name, category)
	}

	s := &Subsection{Name: name, marker: subsectionPrefix + " " + name}
	if n := len(c.subsections); n > 0 {
		last := c.subsections[n-1]
		cut := trailingBlankItems(last.items)
		s.items = append(s.items, last.items[cut:]...)
		last.items = last.items[:cut]
	} else {
		cut := trailingBlankLines(c.lead)
		for _, line := range c.lead[cut:] {
			s.items = append(s.items, item{raw: line})
		}
		c.lead = c.lead[:cut]
	}
	c.subsections = append(c.subsections, s)
	return s, nil
}

// AppendPortBinding adds a Port record and its directives after the last
// entry of the subsection.
func (d *Document) AppendPortBinding(category, subsection string, b types.PortBinding, directives []string) (*PortEntry, error) {
	s, err := d.lookup(category, subsection)
	if err != nil {
		return nil, err
	}
	if s.Port(b.Port, b.Protocol) != nil {
		return nil, fmt.Errorf("%w: %s already in %s/%s", types.ErrDuplicatePortBinding, b.Record(), category, subsection)
	}

	entry := &PortEntry{
		Binding:    b,
		record:     portPrefix + " " + b.Record(),
		directives: slices.Clone(directives),
	}
	s.items = slices.Insert(s.items, trailingBlankItems(s.items), item{port: entry})
	return entry, nil
}

// RemovePortAndDirectives removes a Port record together with every
// directive line attached to it.
func (d *Document) RemovePortAndDirectives(category, subsection string, port types.PortSpec, proto types.Protocol) (*PortEntry, error) {
	s, err := d.lookup(category, subsection)
	if err != nil {
		return nil, err
	}
	for i, it := range s.items {
		if it.port != nil && it.port.Binding.Port == port && it.port.Binding.Protocol == proto {
			s.items = slices.Delete(s.items, i, i+1)
			return it.port, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s in %s/%s", types.ErrPortNotFound, port, proto, category, subsection)
}

// ReplacePortBinding swaps the entry for port/proto with b and its
// directives, keeping the entry's position in the subsection.
func (d *Document) ReplacePortBinding(category, subsection string, port types.PortSpec, proto types.Protocol, b types.PortBinding, directives []string) (*PortEntry, error) {
	s, err := d.lookup(category, subsection)
	if err != nil {
		return nil, err
	}
	for i, it := range s.items {
		if it.port == nil || it.port.Binding.Port != port || it.port.Binding.Protocol != proto {
			continue
		}
		s.items[i] = item{port: &PortEntry{
			Binding:    b,
			record:     portPrefix + " " + b.Record(),
			directives: slices.Clone(directives),
		}}
		return it.port, nil
	}
	return nil, fmt.Errorf("%w: %s/%s in %s/%s", types.ErrPortNotFound, port, proto, category, subsection)
}

// RemoveSubsectionMarker removes an empty subsection. Its trailing blank
// lines move to the preceding block unless that block already ends with
// blank lines.
func (d *Document) RemoveSubsectionMarker(category, name string) error {
	s, err := d.lookup(category, name)
	if err != nil {
		return err
	}
	if n := len(s.Ports()); n > 0 {
		return fmt.Errorf("subsection %q in %s still has %d port(s)", name, category, n)
	}

	c := d.Category(category)
	idx := slices.Index(c.subsections, s)
	tail := s.items[trailingBlankItems(s.items):]
	if idx > 0 {
		prev := c.subsections[idx-1]
		if trailingBlankItems(prev.items) == len(prev.items) {
			prev.items = append(prev.items, tail...)
		}
	} else if trailingBlankLines(c.lead) == len(c.lead) {
		for _, it := range tail {
			c.lead = append(c.lead, it.raw)
		}
	}
	c.subsections = slices.Delete(c.subsections, idx, idx+1)
	return nil
}

// EnsureCategories appends markers for allowed categories that are
// missing and returns their names.
func (d *Document) EnsureCategories() ([]string, error) {
	var missing []string
	for _, name := range d.allowed {
		if d.Category(name) == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString(d.Render())
	text := b.String()
	if text != "" && !strings.HasSuffix(text, "\n") {
		b.WriteString("\n")
	}
	if !strings.HasSuffix(b.String(), "\n\n") {
		b.WriteString("\n")
	}
	for _, name := range missing {
		fmt.Fprintf(&b, "%s %s]\n", categoryPrefix, name)
	}

	if err := d.Restore(b.String()); err != nil {
		return nil, err
	}
	return missing, nil
}

func (d *Document) lookup(category, subsection string) (*Subsection, error) {
	c := d.Category(category)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrCategoryNotFound, category)
	}
	s := c.Subsection(subsection)
	if s == nil {
		return nil, fmt.Errorf("%w: %q in %s", types.ErrSubsectionNotFound, subsection, category)
	}
	return s, nil
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// trailingBlankItems returns the index where the run of trailing blank raw
// items starts.
func trailingBlankItems(items []item) int {
	i := len(items)
	for i > 0 && items[i-1].port == nil && isBlank(items[i-1].raw) {
		i--
	}
	return i
}

func trailingBlankLines(lines []string) int {
	i := len(lines)
	for i > 0 && isBlank(lines[i-1]) {
		i--
	}
	return i
}
