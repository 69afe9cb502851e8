// Package errors re-exports github.com/cockroachdb/errors for discoursehash and
// defines the sentinel errors of the encoder's failure taxonomy.
//
// Store failures are wrapped with context and marked as collaborator failures:
//
//	if err != nil {
//	    return errors.MarkCollaborator(err, "select triplets")
//	}
//
// Callers classify with errors.Is:
//
//	if errors.Is(err, errors.ErrCollaboratorFailure) { ... }
package errors

import (
	"database/sql"
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is            = crdb.Is
	IsAny         = crdb.IsAny
	As            = crdb.As
	Unwrap        = crdb.Unwrap
	UnwrapAll     = crdb.UnwrapAll
	GetAllHints   = crdb.GetAllHints
	FlattenHints  = crdb.FlattenHints
	GetAllDetails = crdb.GetAllDetails
)

// Sentinel errors. Wrap or Mark them to add context while keeping errors.Is working.
var (
	// ErrConsentDenied is returned by every public entry point called without consent.
	// Its message is fixed.
	ErrConsentDenied = New("you must agree to the usage policy to continue")

	// ErrCollaboratorFailure marks a record-store or meaning-grid read/write failure.
	ErrCollaboratorFailure = New("collaborator failure")

	// ErrNotFound marks a missing row.
	ErrNotFound = New("not found")

	// ErrUnresolvableTriplet marks a triplet without a subject, predicate or object focus.
	ErrUnresolvableTriplet = New("unresolvable triplet")

	// ErrDegenerateGeometry marks a zero-length vector or triangle in angle computations.
	ErrDegenerateGeometry = New("degenerate geometry")

	// ErrNoEncoding is returned when a hash is requested for a discourse never encoded.
	ErrNoEncoding = New("discourse has not been encoded")
)

// MarkCollaborator wraps a store error with context and marks it as a collaborator failure.
// sql.ErrNoRows is additionally marked as ErrNotFound.
func MarkCollaborator(err error, context string) error {
	if err == nil {
		return nil
	}
	wrapped := Mark(Wrap(err, context), ErrCollaboratorFailure)
	if Is(err, sql.ErrNoRows) {
		wrapped = Mark(wrapped, ErrNotFound)
	}
	return wrapped
}

// MarkCollaboratorf is MarkCollaborator with a formatted context.
func MarkCollaboratorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return MarkCollaborator(err, fmt.Sprintf(format, args...))
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsCollaboratorFailure reports whether err is or wraps ErrCollaboratorFailure.
func IsCollaboratorFailure(err error) bool {
	return err != nil && Is(err, ErrCollaboratorFailure)
}
