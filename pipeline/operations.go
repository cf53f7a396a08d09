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
	"fmt"
	"slices"
	"strings"

	"github.com/we-are-mono/ppwm/catalog"
	"github.com/we-are-mono/ppwm/rules"
	"github.com/we-are-mono/ppwm/types"
	"github.com/we-are-mono/ppwm/validation"
)

// AddSubsection creates an empty subsection in category.
func (p *Pipeline) AddSubsection(path, category, name string) (*Result, error) {
	return p.run(path, plan{
		op:     "add-subsection",
		fields: []interface{}{"category", category, "subsection", name},
		validate: func(c *catalog.Catalog) error {
			if err := validation.ValidateSubsectionName(name); err != nil {
				return fmt.Errorf("%w: %v", types.ErrInvalidName, err)
			}
			subs, err := c.ListSubsections(category)
			if err != nil {
				return err
			}
			if slices.Contains(subs, name) {
				return fmt.Errorf("%w: %q already exists in %s", types.ErrDuplicateSubsection, name, category)
			}
			return nil
		},
		rewrite: func(c *catalog.Catalog, r *Result) error {
			return c.AddSubsection(category, name)
		},
	})
}

// RemoveSubsection removes a subsection with all of its ports and their
// directives.
func (p *Pipeline) RemoveSubsection(path, category, name string) (*Result, error) {
	var entries []catalog.Entry
	return p.run(path, plan{
		op:     "remove-subsection",
		fields: []interface{}{"category", category, "subsection", name},
		validate: func(c *catalog.Catalog) error {
			var err error
			entries, err = c.ListPorts(category, name)
			return err
		},
		compute: func(c *catalog.Catalog, r *Result) error {
			for _, e := range entries {
				lines, err := p.deleteLines(e)
				if err != nil {
					return err
				}
				r.Removed = append(r.Removed, lines...)
			}
			return nil
		},
		rewrite: func(c *catalog.Catalog, r *Result) error {
			removed, err := c.RemoveSubsection(category, name)
			r.Removed = removed
			return err
		},
	})
}

// AddPorts adds one or more bindings to a subsection in a single run. If
// any binding is rejected none of them are added.
func (p *Pipeline) AddPorts(path, category, subsection string, bindings []types.PortBinding) (*Result, error) {
	bindings = slices.Clone(bindings)
	records := make([]string, 0, len(bindings))
	for i := range bindings {
		bindings[i] = bindings[i].Normalize()
		records = append(records, bindings[i].Record())
	}

	return p.run(path, plan{
		op:     "add-port",
		fields: []interface{}{"category", category, "subsection", subsection, "port", strings.Join(records, ",")},
		validate: func(c *catalog.Catalog) error {
			if len(bindings) == 0 {
				return fmt.Errorf("%w: no ports given", types.ErrInvalidBinding)
			}
			if _, err := c.ListPorts(category, subsection); err != nil {
				return err
			}
			for i, b := range bindings {
				if err := b.Validate(); err != nil {
					return err
				}
				for _, prev := range bindings[:i] {
					if prev.Conflicts(b) {
						return fmt.Errorf("%w: %s overlaps %s in the same request", types.ErrDuplicatePortBinding, b.Record(), prev.Record())
					}
				}
				if existing, ok := c.Find(b); ok {
					return fmt.Errorf("%w: %s conflicts with %s", types.ErrDuplicatePortBinding, b.Record(), existing.Key)
				}
			}
			return nil
		},
		compute: func(c *catalog.Catalog, r *Result) error {
			for _, b := range bindings {
				lines, err := p.synth.Synthesize(b, rules.ActionAdd)
				if err != nil {
					return err
				}
				r.Added = append(r.Added, lines...)
			}
			return nil
		},
		rewrite: func(c *catalog.Catalog, r *Result) error {
			for _, b := range bindings {
				if _, err := c.AddPort(category, subsection, b); err != nil {
					return err
				}
			}
			return nil
		},
	})
}

// AddPort adds a single binding to a subsection.
func (p *Pipeline) AddPort(path, category, subsection string, b types.PortBinding) (*Result, error) {
	return p.AddPorts(path, category, subsection, []types.PortBinding{b})
}

// EditPort replaces the binding named by key. The old binding and its
// directives are removed and the new one added in memory; the file is only
// written when both halves succeed.
func (p *Pipeline) EditPort(path string, key types.PortKey, nb types.PortBinding) (*Result, error) {
	nb = nb.Normalize()
	var old catalog.Entry
	return p.run(path, plan{
		op:     "edit-port",
		fields: []interface{}{"category", key.Category, "subsection", key.Subsection, "port", key.Port.String() + "/" + string(key.Protocol)},
		validate: func(c *catalog.Catalog) error {
			var err error
			if old, err = findEntry(c, key); err != nil {
				return err
			}
			if err := nb.Validate(); err != nil {
				return err
			}
			for _, e := range c.Entries() {
				if e.Key != old.Key && e.Binding.Conflicts(nb) {
					return fmt.Errorf("%w: %s conflicts with %s", types.ErrDuplicatePortBinding, nb.Record(), e.Key)
				}
			}
			return nil
		},
		compute: func(c *catalog.Catalog, r *Result) error {
			removed, err := p.deleteLines(old)
			if err != nil {
				return err
			}
			added, err := p.synth.Synthesize(nb, rules.ActionAdd)
			if err != nil {
				return err
			}
			r.Removed, r.Added = removed, added
			return nil
		},
		rewrite: func(c *catalog.Catalog, r *Result) error {
			removed, added, err := c.EditPort(key, nb)
			if err != nil {
				return err
			}
			r.Removed, r.Added = removed, added
			return nil
		},
	})
}

// DeletePort removes the binding named by key and its directives.
func (p *Pipeline) DeletePort(path string, key types.PortKey) (*Result, error) {
	var entry catalog.Entry
	return p.run(path, plan{
		op:     "delete-port",
		fields: []interface{}{"category", key.Category, "subsection", key.Subsection, "port", key.Port.String() + "/" + string(key.Protocol)},
		validate: func(c *catalog.Catalog) error {
			var err error
			entry, err = findEntry(c, key)
			return err
		},
		compute: func(c *catalog.Catalog, r *Result) error {
			lines, err := p.deleteLines(entry)
			r.Removed = lines
			return err
		},
		rewrite: func(c *catalog.Catalog, r *Result) error {
			removed, err := c.RemovePort(key)
			r.Removed = removed
			return err
		},
	})
}

// InitTemplate appends the category markers a config is missing.
// Running it on a complete config changes nothing.
func (p *Pipeline) InitTemplate(path string) (*Result, error) {
	return p.run(path, plan{
		op: "init-template",
		rewrite: func(c *catalog.Catalog, r *Result) error {
			added, err := c.Document().EnsureCategories()
			r.Markers = added
			return err
		},
	})
}

// deleteLines recomputes the directives of an existing entry. Stored lines
// that no longer match (hand edits, a changed client address) are still
// removed verbatim; the mismatch is only logged.
func (p *Pipeline) deleteLines(e catalog.Entry) ([]string, error) {
	lines, err := p.synth.Synthesize(e.Binding, rules.ActionDelete)
	if err != nil {
		// entries written by hand may not be synthesizable; remove what is stored
		p.log.Warn("cannot regenerate directives, removing stored lines", "port", e.Key.String(), "error", err)
		return e.Directives, nil
	}
	if !slices.Equal(lines, trimmed(e.Directives)) {
		p.log.Warn("stored directives differ from generated rules, removing stored lines", "port", e.Key.String())
		return e.Directives, nil
	}
	return lines, nil
}

func trimmed(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}
	return out
}
