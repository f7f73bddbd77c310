package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers.
var (
	ErrInvalidSeed            = errors.New("invalid seed")
	ErrInvalidQuestion        = errors.New("invalid question")
	ErrInvalidAnswer          = errors.New("invalid answer")
	ErrUnauthenticated        = errors.New("owner identity unavailable")
	ErrCreationFailed         = errors.New("question creation failed")
	ErrFetchFailed            = errors.New("account fetch failed")
	ErrSubmissionRejected     = errors.New("answer submission rejected")
	ErrClassificationMismatch = errors.New("account matches no known layout")
	ErrSessionClosed          = errors.New("session closed")
	ErrAccountExists          = errors.New("account already exists")
	ErrAccountNotFound        = errors.New("account not found")
)

// BoundaryError wraps a failed ledger call. It matches both its Kind
// sentinel and the underlying cause with errors.Is.
type BoundaryError struct {
	Kind  error
	Op    string
	Cause error
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
}

func (e *BoundaryError) Unwrap() []error { return []error{e.Kind, e.Cause} }

// CreationFailed wraps a rejected or failed initialize call.
func CreationFailed(cause error) error {
	return &BoundaryError{Kind: ErrCreationFailed, Op: "initialize question", Cause: cause}
}

// FetchFailed wraps a failed account listing.
func FetchFailed(cause error) error {
	return &BoundaryError{Kind: ErrFetchFailed, Op: "fetch accounts", Cause: cause}
}

// SubmissionRejected wraps a rejected or failed answer submission.
func SubmissionRejected(cause error) error {
	return &BoundaryError{Kind: ErrSubmissionRejected, Op: "submit answer", Cause: cause}
}
