// Package faults defines the stable error taxonomy shared by all Warden
// components. Every user-visible failure maps to a Kind plus a human-readable
// message; underlying causes are wrapped for diagnostics and never exposed to
// external callers directly.
package faults

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindValidation               Kind = "validation_error"
	KindNotFound                 Kind = "not_found"
	KindDuplicateAccount         Kind = "duplicate_account"
	KindRoleAlreadyGranted       Kind = "role_already_granted"
	KindRoleNotGranted           Kind = "role_not_granted"
	KindInvalidFilterCombination Kind = "invalid_filter_combination"
	KindMissingContext           Kind = "missing_context"
	KindPersistence              Kind = "persistence_error"
	KindAuditWriteDegraded       Kind = "audit_write_degraded"
)

// Error is the concrete error type carried across component boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new error of the given kind.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain. Errors that did not originate
// from this package report an empty Kind.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsKind reports whether any error in the chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
