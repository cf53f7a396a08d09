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

// Package pipeline runs config mutations as a single
// load, validate, compute, rewrite, persist cycle. Nothing is written
// unless every earlier stage succeeded, and the write is one atomic
// replace of the file.
package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hashicorp/go-hclog"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/we-are-mono/ppwm/backup"
	"github.com/we-are-mono/ppwm/catalog"
	"github.com/we-are-mono/ppwm/document"
	"github.com/we-are-mono/ppwm/rules"
	"github.com/we-are-mono/ppwm/types"
)

// Store loads a config and atomically replaces it.
type Store interface {
	Load(path string) (string, error)
	Persist(path, text string) error
}

// Backuper copies a config aside.
type Backuper interface {
	Backup(path, reason string) (*backup.Record, error)
}

// Options configures a Pipeline.
type Options struct {
	Store        Store
	Backups      Backuper // optional
	BackupBefore bool
	BackupAfter  bool
	ClientIP     string
	Categories   []string
	DryRun       bool
	Logger       hclog.Logger
}

// Result describes a completed (or dry-run) mutation.
type Result struct {
	Op      string   `json:"op"`
	Path    string   `json:"path"`
	Stage   Stage    `json:"stage"`
	Before  string   `json:"-"`
	After   string   `json:"-"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Markers []string `json:"markers,omitempty"`
	Backups []string `json:"backups,omitempty"`
	Diff    string   `json:"diff,omitempty"`
	Changed bool     `json:"changed"`
}

// Pipeline applies mutations to config files.
type Pipeline struct {
	opts  Options
	synth *rules.Synthesizer
	log   hclog.Logger
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	if len(opts.Categories) == 0 {
		opts.Categories = types.DefaultCategories
	}
	return &Pipeline{
		opts:  opts,
		synth: rules.NewSynthesizer(opts.ClientIP),
		log:   opts.Logger,
	}
}

// Synthesizer returns the rule synthesizer used for every mutation.
func (p *Pipeline) Synthesizer() *rules.Synthesizer {
	return p.synth
}

// Inspect loads and parses a config without modifying it.
func (p *Pipeline) Inspect(path string) (*catalog.Catalog, error) {
	doc, _, err := p.load(path)
	if err != nil {
		return nil, &Error{Op: "inspect", Path: path, Stage: StageNone, Err: err}
	}
	return catalog.New(doc, p.synth), nil
}

func (p *Pipeline) load(path string) (*document.Document, string, error) {
	text, err := p.opts.Store.Load(path)
	if err != nil {
		return nil, "", err
	}
	doc, err := document.ParseWithCategories(text, p.opts.Categories)
	if err != nil {
		return nil, "", err
	}
	return doc, text, nil
}

// plan is one mutation broken into pipeline stages. validate and compute
// only inspect the catalog; rewrite is the only step that changes it.
type plan struct {
	op       string
	fields   []interface{}
	validate func(c *catalog.Catalog) error
	compute  func(c *catalog.Catalog, r *Result) error
	rewrite  func(c *catalog.Catalog, r *Result) error
}

func (p *Pipeline) run(path string, pl plan) (*Result, error) {
	log := p.log.With(append([]interface{}{"op", pl.op, "path", path}, pl.fields...)...)
	r := &Result{Op: pl.op, Path: path}

	fail := func(err error) (*Result, error) {
		if types.IsRecoverable(err) {
			log.Warn("operation rejected", "stage", r.Stage, "kind", types.ErrorKind(err), "error", err)
		} else {
			log.Error("operation failed", "stage", r.Stage, "kind", types.ErrorKind(err), "error", err)
		}
		return r, &Error{Op: pl.op, Path: path, Stage: r.Stage, Err: err}
	}
	advance := func(s Stage) {
		r.Stage = s
		log.Debug("stage reached", "stage", s)
	}

	doc, text, err := p.load(path)
	if err != nil {
		return fail(err)
	}
	r.Before = text
	advance(StageLoaded)

	if warnings := doc.Warnings(); len(warnings) > 0 {
		return fail(fmt.Errorf("refusing to modify a document with repeated markers: %w", errors.Join(warnings...)))
	}
	c := catalog.New(doc, p.synth)
	if pl.validate != nil {
		if err := pl.validate(c); err != nil {
			return fail(err)
		}
	}
	advance(StageValidated)

	if pl.compute != nil {
		if err := pl.compute(c, r); err != nil {
			return fail(err)
		}
	}
	advance(StageRulesComputed)

	if err := pl.rewrite(c, r); err != nil {
		return fail(err)
	}
	r.After = doc.Render()
	r.Changed = r.After != r.Before
	advance(StageDocumentRewritten)

	if p.opts.DryRun {
		r.Diff = Diff(path, r.Before, r.After)
		log.Info("dry run, document not persisted", "changed", r.Changed)
		return r, nil
	}
	if !r.Changed {
		log.Info("document unchanged, nothing to persist")
		return r, nil
	}

	if p.opts.Backups != nil && p.opts.BackupBefore {
		rec, err := p.opts.Backups.Backup(path, "before "+pl.op)
		if err != nil {
			return fail(fmt.Errorf("%w: backup before write: %v", types.ErrPersistenceFailure, err))
		}
		r.Backups = append(r.Backups, rec.Path)
	}

	if err := p.opts.Store.Persist(path, r.After); err != nil {
		if !errors.Is(err, types.ErrPersistenceFailure) {
			err = fmt.Errorf("%w: %v", types.ErrPersistenceFailure, err)
		}
		return fail(err)
	}
	advance(StagePersisted)

	if p.opts.Backups != nil && p.opts.BackupAfter {
		// the mutation is already on disk, so this only warns
		rec, err := p.opts.Backups.Backup(path, "after "+pl.op)
		if err != nil {
			log.Warn("backup after write failed", "error", err)
		} else {
			r.Backups = append(r.Backups, rec.Path)
		}
	}

	log.Info("mutation persisted", "added", len(r.Added), "removed", len(r.Removed))
	return r, nil
}

// Diff renders a unified diff between two document versions.
func Diff(path, before, after string) string {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: path,
		ToFile:   path + " (proposed)",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	return text
}

func findEntry(c *catalog.Catalog, key types.PortKey) (catalog.Entry, error) {
	entries, err := c.ListPorts(key.Category, key.Subsection)
	if err != nil {
		return catalog.Entry{}, err
	}
	i := slices.IndexFunc(entries, func(e catalog.Entry) bool { return key.Matches(e.Binding) })
	if i < 0 {
		return catalog.Entry{}, fmt.Errorf("%w: %s", types.ErrPortNotFound, key)
	}
	return entries[i], nil
}
