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

	"github.com/we-are-mono/ppwm/types"
)

// Stage is the last step a mutation completed.
type Stage int

const (
	StageNone Stage = iota
	StageLoaded
	StageValidated
	StageRulesComputed
	StageDocumentRewritten
	StagePersisted
)

func (s Stage) String() string {
	switch s {
	case StageLoaded:
		return "LOADED"
	case StageValidated:
		return "VALIDATED"
	case StageRulesComputed:
		return "RULES_COMPUTED"
	case StageDocumentRewritten:
		return "DOCUMENT_REWRITTEN"
	case StagePersisted:
		return "PERSISTED"
	default:
		return "NONE"
	}
}

// Error is returned by every pipeline operation that fails. Stage is the
// last stage reached before the failure; nothing was persisted unless it
// is StagePersisted.
type Error struct {
	Op    string
	Path  string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: failed after %s: %v", e.Op, e.Path, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind returns the error taxonomy name of the underlying failure.
func (e *Error) Kind() string {
	return types.ErrorKind(e.Err)
}

// Recoverable reports whether the operator may retry with different input.
func (e *Error) Recoverable() bool {
	return types.IsRecoverable(e.Err)
}
