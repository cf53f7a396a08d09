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

package types

import "errors"

// Error taxonomy for config document mutations. Callers match with errors.Is.
var (
	ErrMalformedDocument       = errors.New("malformed document")
	ErrDuplicateMarker         = errors.New("duplicate marker")
	ErrDuplicateSubsection     = errors.New("duplicate subsection")
	ErrDuplicatePortBinding    = errors.New("duplicate port binding")
	ErrCategoryNotFound        = errors.New("category not found")
	ErrSubsectionNotFound      = errors.New("subsection not found")
	ErrPortNotFound            = errors.New("port not found")
	ErrUnsupportedRangeForward = errors.New("forwarding a port range to a different client port is not supported")
	ErrInvalidBinding          = errors.New("invalid port binding")
	ErrInvalidName             = errors.New("invalid name")
	ErrPersistenceFailure      = errors.New("persistence failure")
)

var errorKinds = []struct {
	err         error
	name        string
	recoverable bool
}{
	{ErrMalformedDocument, "MalformedDocument", false},
	{ErrDuplicateMarker, "DuplicateMarker", false},
	{ErrDuplicateSubsection, "DuplicateSubsection", true},
	{ErrDuplicatePortBinding, "DuplicatePortBinding", true},
	{ErrCategoryNotFound, "CategoryNotFound", true},
	{ErrSubsectionNotFound, "SubsectionNotFound", true},
	{ErrPortNotFound, "PortNotFound", true},
	{ErrUnsupportedRangeForward, "UnsupportedRangeForward", true},
	{ErrInvalidBinding, "InvalidBinding", true},
	{ErrInvalidName, "InvalidName", true},
	{ErrPersistenceFailure, "PersistenceFailure", false},
}

// ErrorKind returns the taxonomy name of err, or "Unknown".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Unknown"
}

// IsRecoverable reports whether the operator can retry with different input.
// I/O and structural failures are not recoverable.
func IsRecoverable(err error) bool {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.recoverable
		}
	}
	return false
}
