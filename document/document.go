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

// Package document parses and renders WireGuard config files that carry
// ppwm category, subsection and port records next to the tunnel settings.
//
// The document keeps every input line. Unrelated content round-trips byte
// for byte; only the records touched by a mutation change.
package document

import (
	"fmt"
	"slices"
	"strings"

	"github.com/we-are-mono/ppwm/rules"
	"github.com/we-are-mono/ppwm/types"
)

const (
	interfaceHeader  = "[Interface]"
	categoryPrefix   = "[Category:"
	subsectionPrefix = "Subsection:"
	portPrefix       = "Port:"
)

// Document is the in-memory tree of a config file.
type Document struct {
	blocks     []*block
	allowed    []string
	iface      map[string]string
	warnings   []error
	categories []*Category
}

// block is either a run of raw lines outside any category or a category.
type block struct {
	raw      []string
	category *Category
}

// Category is a fixed top-level grouping such as Games.
type Category struct {
	Name        string
	marker      string
	lead        []string
	subsections []*Subsection
}

// Subsection is an operator-created group of ports inside a category.
type Subsection struct {
	Name   string
	marker string
	items  []item
}

// item is a port entry or a line the parser does not interpret
// (comments, blank lines).
type item struct {
	raw  string
	port *PortEntry
}

// PortEntry is a Port record and the directive lines that follow it.
type PortEntry struct {
	Binding    types.PortBinding
	record     string
	directives []string
}

// Directives returns a copy of the entry's directive lines.
func (e *PortEntry) Directives() []string {
	return slices.Clone(e.directives)
}

// Parse parses a config using the default category set.
func Parse(text string) (*Document, error) {
	return ParseWithCategories(text, types.DefaultCategories)
}

// ParseWithCategories parses a config whose category markers must come
// from allowed.
func ParseWithCategories(text string, allowed []string) (*Document, error) {
	p := &parser{doc: &Document{
		allowed: slices.Clone(allowed),
		iface:   make(map[string]string),
	}}
	for i, line := range strings.Split(text, "\n") {
		if err := p.line(i+1, line); err != nil {
			return nil, err
		}
	}
	if p.interfaces == 0 {
		return nil, fmt.Errorf("%w: no %s block", types.ErrMalformedDocument, interfaceHeader)
	}
	if p.interfaces > 1 {
		return nil, fmt.Errorf("%w: %d %s blocks, expected exactly one", types.ErrMalformedDocument, p.interfaces, interfaceHeader)
	}

	for _, c := range p.doc.categories {
		for _, s := range c.subsections {
			for _, e := range s.Ports() {
				e.Binding.ForwardTarget = rules.ForwardTarget(e.Binding.Port, e.directives)
			}
		}
	}
	return p.doc, nil
}

type parser struct {
	doc        *Document
	raw        *block
	category   *Category
	subsection *Subsection
	port       *PortEntry
	section    string
	interfaces int
}

func (p *parser) line(n int, line string) error {
	trimmed := strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		return p.header(n, line, trimmed)

	case strings.HasPrefix(trimmed, subsectionPrefix):
		if p.category == nil {
			return fmt.Errorf("%w: line %d: %s marker outside any category", types.ErrMalformedDocument, n, subsectionPrefix)
		}
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, subsectionPrefix))
		if name == "" {
			return fmt.Errorf("%w: line %d: empty subsection name", types.ErrMalformedDocument, n)
		}
		if p.category.Subsection(name) != nil {
			p.doc.warnings = append(p.doc.warnings, fmt.Errorf("%w: line %d: subsection %q repeated in category %s",
				types.ErrDuplicateMarker, n, name, p.category.Name))
		}
		p.subsection = &Subsection{Name: name, marker: line}
		p.category.subsections = append(p.category.subsections, p.subsection)
		p.port = nil
		return nil

	case strings.HasPrefix(trimmed, portPrefix):
		if p.category == nil || p.subsection == nil {
			return fmt.Errorf("%w: line %d: %s record without a preceding subsection", types.ErrMalformedDocument, n, portPrefix)
		}
		port, proto, err := types.ParsePortRecord(strings.TrimPrefix(trimmed, portPrefix))
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", types.ErrMalformedDocument, n, err)
		}
		p.port = &PortEntry{Binding: types.PortBinding{Port: port, Protocol: proto}, record: line}
		p.subsection.items = append(p.subsection.items, item{port: p.port})
		return nil

	case rules.IsDirective(trimmed) && p.category != nil:
		if p.port == nil {
			return fmt.Errorf("%w: line %d: directive without a preceding %s record", types.ErrMalformedDocument, n, portPrefix)
		}
		p.port.directives = append(p.port.directives, line)
		return nil
	}

	if p.category != nil {
		p.port = nil
		if p.subsection != nil {
			p.subsection.items = append(p.subsection.items, item{raw: line})
		} else {
			p.category.lead = append(p.category.lead, line)
		}
		return nil
	}

	if p.section == interfaceHeader {
		if key, value, ok := strings.Cut(trimmed, "="); ok && !rules.IsDirective(trimmed) {
			key = strings.TrimSpace(key)
			if _, seen := p.doc.iface[key]; !seen {
				p.doc.iface[key] = strings.TrimSpace(value)
			}
		}
	}
	p.appendRaw(line)
	return nil
}

func (p *parser) header(n int, line, trimmed string) error {
	p.subsection = nil
	p.port = nil

	if strings.HasPrefix(trimmed, categoryPrefix) {
		name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(trimmed, categoryPrefix), "]"))
		if !slices.Contains(p.doc.allowed, name) {
			return fmt.Errorf("%w: line %d: unknown category %q (must be one of: %s)",
				types.ErrMalformedDocument, n, name, strings.Join(p.doc.allowed, ", "))
		}
		if p.doc.Category(name) != nil {
			p.doc.warnings = append(p.doc.warnings, fmt.Errorf("%w: line %d: category %s repeated", types.ErrDuplicateMarker, n, name))
		}
		p.category = &Category{Name: name, marker: line}
		p.doc.categories = append(p.doc.categories, p.category)
		p.doc.blocks = append(p.doc.blocks, &block{category: p.category})
		p.raw = nil
		p.section = ""
		return nil
	}

	if trimmed == interfaceHeader {
		p.interfaces++
	}
	p.category = nil
	p.section = trimmed
	p.appendRaw(line)
	return nil
}

func (p *parser) appendRaw(line string) {
	if p.raw == nil {
		p.raw = &block{}
		p.doc.blocks = append(p.doc.blocks, p.raw)
	}
	p.raw.raw = append(p.raw.raw, line)
}

// Render serializes the document. Rendering a freshly parsed document
// reproduces the input exactly.
func (d *Document) Render() string {
	var out []string
	for _, b := range d.blocks {
		if b.category == nil {
			out = append(out, b.raw...)
			continue
		}
		c := b.category
		out = append(out, c.marker)
		out = append(out, c.lead...)
		for _, s := range c.subsections {
			out = append(out, s.marker)
			for _, it := range s.items {
				if it.port == nil {
					out = append(out, it.raw)
					continue
				}
				out = append(out, it.port.record)
				out = append(out, it.port.directives...)
			}
		}
	}
	return strings.Join(out, "\n")
}

// Warnings returns non-fatal problems found while parsing, such as
// duplicate markers.
func (d *Document) Warnings() []error {
	return slices.Clone(d.warnings)
}

// Interface returns the first value of key in the [Interface] block.
func (d *Document) Interface(key string) (string, bool) {
	v, ok := d.iface[key]
	return v, ok
}

// AllowedCategories returns the category names the document accepts.
func (d *Document) AllowedCategories() []string {
	return slices.Clone(d.allowed)
}

// Categories returns the categories in document order.
func (d *Document) Categories() []*Category {
	return slices.Clone(d.categories)
}

// Category returns the first category with the given name.
func (d *Document) Category(name string) *Category {
	for _, c := range d.categories {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Subsection returns the first subsection named name in category.
func (d *Document) Subsection(category, name string) *Subsection {
	c := d.Category(category)
	if c == nil {
		return nil
	}
	return c.Subsection(name)
}

// Subsections returns the subsections of the category in document order.
func (c *Category) Subsections() []*Subsection {
	return slices.Clone(c.subsections)
}

// Subsection returns the first subsection with the given name.
func (c *Category) Subsection(name string) *Subsection {
	for _, s := range c.subsections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Ports returns the port entries in document order.
func (s *Subsection) Ports() []*PortEntry {
	var ports []*PortEntry
	for _, it := range s.items {
		if it.port != nil {
			ports = append(ports, it.port)
		}
	}
	return ports
}

// Port returns the entry with the given port and protocol.
func (s *Subsection) Port(port types.PortSpec, proto types.Protocol) *PortEntry {
	for _, e := range s.Ports() {
		if e.Binding.Port == port && e.Binding.Protocol == proto {
			return e
		}
	}
	return nil
}

// Snapshot returns the rendered document for a later Restore.
func (d *Document) Snapshot() string {
	return d.Render()
}

// Restore replaces the document contents with a previous snapshot.
func (d *Document) Restore(snapshot string) error {
	restored, err := ParseWithCategories(snapshot, d.allowed)
	if err != nil {
		return err
	}
	*d = *restored
	return nil
}
