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

package validation

import (
	"errors"
	"strings"
)

// Collector gathers every problem found in one subject, such as a port
// binding or a port list, so they are reported together.
type Collector struct {
	subject string
	errs    []error
}

// NewCollector returns a collector whose errors are prefixed with subject.
// An empty subject adds no prefix.
func NewCollector(subject string) *Collector {
	return &Collector{subject: subject}
}

// Check records err. Nil errors are ignored.
func (c *Collector) Check(err error) {
	c.add("", err)
}

// Field records err against a named part of the subject, for example
// "667/tcp: forward target: ...".
func (c *Collector) Field(field string, err error) {
	c.add(field, err)
}

func (c *Collector) add(field string, err error) {
	if err == nil {
		return
	}
	var prefix []string
	if c.subject != "" {
		prefix = append(prefix, c.subject)
	}
	if field != "" {
		prefix = append(prefix, field)
	}
	if len(prefix) > 0 {
		err = &fieldError{prefix: strings.Join(prefix, ": "), err: err}
	}
	c.errs = append(c.errs, err)
}

// Len returns the number of recorded problems.
func (c *Collector) Len() int {
	return len(c.errs)
}

// Err joins the recorded problems, one per line, or returns nil.
func (c *Collector) Err() error {
	return errors.Join(c.errs...)
}

type fieldError struct {
	prefix string
	err    error
}

func (e *fieldError) Error() string { return e.prefix + ": " + e.err.Error() }
func (e *fieldError) Unwrap() error { return e.err }
