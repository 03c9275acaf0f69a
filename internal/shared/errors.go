package shared

import "errors"

// Taxonomy sentinels. Domain packages declare concrete error types that
// unwrap to exactly one of these so transport code can map them uniformly.
var (
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInvariant indicates a business invariant would be violated
	// (unbalanced journal, over-application, negative balance).
	ErrInvariant = errors.New("invariant violation")
	// ErrStateTransition indicates an illegal status change or a
	// conversion attempted from the wrong state.
	ErrStateTransition = errors.New("illegal state transition")
	// ErrConcurrencyConflict indicates serializable-transaction retries
	// were exhausted. Callers may retry the whole request.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)
