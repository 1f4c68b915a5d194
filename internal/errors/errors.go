// Package errors defines typed errors with categories for user-friendly reporting.
// It provides a structured approach to error handling with machine-readable error kinds
// and human-friendly messages. Pipeline stages use the kinds to tell the coordinator
// why a run halted, and the CLI uses them to decide how to present the outcome.
//
// The package supports wrapping underlying errors while maintaining error kind information,
// so a collaborator failure deep in an adapter still carries its category to the caller.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// CollaboratorUnavailable indicates an external collaborator could not be reached
	// or answered with an error.
	CollaboratorUnavailable Kind = "collaborator-unavailable"
	// CollaboratorTimeout indicates an external collaborator did not answer within its
	// bounded timeout.
	CollaboratorTimeout Kind = "collaborator-timeout"
	// CollaboratorRefused indicates the text-generation collaborator emitted the abort token.
	CollaboratorRefused Kind = "collaborator-refused"
	// MalformedQuery indicates a generated query could not be parsed.
	MalformedQuery Kind = "malformed-query"
	// BannedConstruct indicates a query contains a denylisted construct.
	BannedConstruct Kind = "banned-construct"
	// InsufficientClearance indicates the caller level is below a referenced field's level.
	InsufficientClearance Kind = "insufficient-clearance"
	// UnsafeOptimizationResult indicates an optimizer rewrite failed re-validation.
	UnsafeOptimizationResult Kind = "unsafe-optimization-result"
	// UnroutableQuestion indicates the question maps to no supported query type.
	UnroutableQuestion Kind = "unroutable-question"
	// Cancelled indicates the caller cancelled the run.
	Cancelled Kind = "cancelled"
	// CallerContractViolation indicates a programming error, e.g. a missing schema.
	CallerContractViolation Kind = "caller-contract-violation"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromCall classifies the error of a bounded collaborator call. parent is the
// context the caller was given; a call whose own deadline expired while parent
// was still live is a timeout, a cancelled parent is a cancellation, and anything
// else means the collaborator is unavailable.
func FromCall(parent context.Context, what string, err error) error {
	if err == nil {
		return nil
	}
	if perr := parent.Err(); perr != nil {
		if stderrors.Is(perr, context.DeadlineExceeded) {
			return Wrap(CollaboratorTimeout, what, err)
		}
		return Wrap(Cancelled, what, err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(CollaboratorTimeout, what, err)
	}
	return Wrap(CollaboratorUnavailable, what, err)
}
