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

// Package catalog provides the category -> subsection -> port view over a
// config document. A catalog is built fresh for every load and writes
// straight through to the document it wraps.
package catalog

import (
	"fmt"
	"slices"
	"strings"

	"github.com/we-are-mono/ppwm/document"
	"github.com/we-are-mono/ppwm/rules"
	"github.com/we-are-mono/ppwm/types"
	"github.com/we-are-mono/ppwm/validation"
)

// Entry is a port binding at a stable location.
type Entry struct {
	Key        types.PortKey
	Binding    types.PortBinding
	Directives []string
}

// Catalog indexes a document's categories, subsections and ports.
type Catalog struct {
	doc   *document.Document
	synth *rules.Synthesizer
}

// New creates a catalog over doc.
func New(doc *document.Document, synth *rules.Synthesizer) *Catalog {
	return &Catalog{doc: doc, synth: synth}
}

// Document returns the wrapped document.
func (c *Catalog) Document() *document.Document {
	return c.doc
}

// Categories returns the category names present in the document.
func (c *Catalog) Categories() []string {
	var names []string
	for _, cat := range c.doc.Categories() {
		if !slices.Contains(names, cat.Name) {
			names = append(names, cat.Name)
		}
	}
	return names
}

// ListSubsections returns the subsection names of a category in order.
func (c *Catalog) ListSubsections(category string) ([]string, error) {
	cat := c.doc.Category(category)
	if cat == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrCategoryNotFound, category)
	}
	var names []string
	for _, s := range cat.Subsections() {
		names = append(names, s.Name)
	}
	return names, nil
}

// AddSubsection creates an empty subsection. Names are unique within a
// category (exact, case-sensitive match).
func (c *Catalog) AddSubsection(category, name string) error {
	if err := validation.ValidateSubsectionName(name); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidName, err)
	}
	_, err := c.doc.InsertSubsectionMarker(category, name)
	return err
}

// RemoveSubsection removes every port of the subsection with its
// directives, then the marker. It returns the removed directive lines.
func (c *Catalog) RemoveSubsection(category, name string) ([]string, error) {
	entries, err := c.ListPorts(category, name)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, e := range entries {
		lines, err := c.RemovePort(e.Key)
		if err != nil {
			return nil, err
		}
		removed = append(removed, lines...)
	}
	if err := c.doc.RemoveSubsectionMarker(category, name); err != nil {
		return nil, err
	}
	return removed, nil
}

// ListPorts returns the subsection's bindings in display order. Position
// i (0-based) is what Resolve returns for index i+1.
func (c *Catalog) ListPorts(category, subsection string) ([]Entry, error) {
	s, err := c.subsection(category, subsection)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, p := range s.Ports() {
		entries = append(entries, entryOf(category, subsection, p))
	}
	return entries, nil
}

// Resolve maps a 1-based menu index to the binding shown at that position.
func (c *Catalog) Resolve(category, subsection string, index int) (Entry, error) {
	entries, err := c.ListPorts(category, subsection)
	if err != nil {
		return Entry{}, err
	}
	if index < 1 || index > len(entries) {
		return Entry{}, fmt.Errorf("%w: index %d out of range [1, %d] in %s/%s",
			types.ErrPortNotFound, index, len(entries), category, subsection)
	}
	return entries[index-1], nil
}

// Entries returns every binding in document order.
func (c *Catalog) Entries() []Entry {
	var entries []Entry
	for _, cat := range c.doc.Categories() {
		for _, s := range cat.Subsections() {
			for _, p := range s.Ports() {
				entries = append(entries, entryOf(cat.Name, s.Name, p))
			}
		}
	}
	return entries
}

// Find returns the first binding that claims a port/transport of b.
func (c *Catalog) Find(b types.PortBinding) (Entry, bool) {
	for _, e := range c.Entries() {
		if e.Binding.Conflicts(b) {
			return e, true
		}
	}
	return Entry{}, false
}

// AddPort validates b, synthesizes its directives and appends both to the
// subsection. It returns the inserted directive lines.
func (c *Catalog) AddPort(category, subsection string, b types.PortBinding) ([]string, error) {
	b = b.Normalize()
	if _, err := c.subsection(category, subsection); err != nil {
		return nil, err
	}
	if existing, ok := c.Find(b); ok {
		return nil, fmt.Errorf("%w: %s conflicts with %s", types.ErrDuplicatePortBinding, b.Record(), existing.Key)
	}

	directives, err := c.synth.Synthesize(b, rules.ActionAdd)
	if err != nil {
		return nil, err
	}
	if _, err := c.doc.AppendPortBinding(category, subsection, b, directives); err != nil {
		return nil, err
	}
	return directives, nil
}

// RemovePort removes the binding named by key and the directive lines
// stored under it, which are the lines emitted when it was added. It
// returns the removed lines.
func (c *Catalog) RemovePort(key types.PortKey) ([]string, error) {
	entry, err := c.doc.RemovePortAndDirectives(key.Category, key.Subsection, key.Port, key.Protocol)
	if err != nil {
		return nil, err
	}
	return entry.Directives(), nil
}

// EditPort replaces the binding named by key with nb at the same position
// in its subsection, so menu indexes stay put. Nothing changes unless nb
// is accepted.
func (c *Catalog) EditPort(key types.PortKey, nb types.PortBinding) (removed, added []string, err error) {
	nb = nb.Normalize()
	s, err := c.subsection(key.Category, key.Subsection)
	if err != nil {
		return nil, nil, err
	}
	if s.Port(key.Port, key.Protocol) == nil {
		return nil, nil, fmt.Errorf("%w: %s/%s in %s/%s", types.ErrPortNotFound, key.Port, key.Protocol, key.Category, key.Subsection)
	}
	for _, e := range c.Entries() {
		if e.Key != key && e.Binding.Conflicts(nb) {
			return nil, nil, fmt.Errorf("%w: %s conflicts with %s", types.ErrDuplicatePortBinding, nb.Record(), e.Key)
		}
	}

	added, err = c.synth.Synthesize(nb, rules.ActionAdd)
	if err != nil {
		return nil, nil, err
	}
	old, err := c.doc.ReplacePortBinding(key.Category, key.Subsection, key.Port, key.Protocol, nb, added)
	if err != nil {
		return nil, nil, err
	}
	return old.Directives(), added, nil
}

// Audit reports bindings whose stored directives no longer match what the
// synthesizer generates, plus any duplicate markers found by the parser.
func (c *Catalog) Audit() []error {
	problems := slices.Clone(c.doc.Warnings())
	for _, e := range c.Entries() {
		want, err := c.synth.Synthesize(e.Binding, rules.ActionAdd)
		if err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", e.Key, err))
			continue
		}
		if !slices.Equal(trimAll(e.Directives), want) {
			problems = append(problems, fmt.Errorf("%s: directives differ from generated rules", e.Key))
		}
	}
	return problems
}

func (c *Catalog) subsection(category, name string) (*document.Subsection, error) {
	cat := c.doc.Category(category)
	if cat == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrCategoryNotFound, category)
	}
	s := cat.Subsection(name)
	if s == nil {
		return nil, fmt.Errorf("%w: %q in %s", types.ErrSubsectionNotFound, name, category)
	}
	return s, nil
}

func entryOf(category, subsection string, p *document.PortEntry) Entry {
	return Entry{
		Key:        types.KeyOf(category, subsection, p.Binding),
		Binding:    p.Binding,
		Directives: p.Directives(),
	}
}

func trimAll(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}
