package store

import "errors"

// Sentinel errors shared by all store backends. Handlers translate these to
// HTTP status codes; callers test them with errors.Is.
var (
	// ErrNotFound is returned by operations that require an existing record,
	// such as reconciling blocks of a page that does not exist. Plain Get
	// lookups return (nil, nil) for missing records instead.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a request is malformed: a blank or
	// duplicate client ID in a reconcile payload, a reorder entry referencing
	// a page outside the workspace, and similar. The store guarantees nothing
	// was written when it returns ErrValidation.
	ErrValidation = errors.New("validation failed")

	// ErrForbidden is returned when the acting user lacks the role or
	// permission the operation requires.
	ErrForbidden = errors.New("forbidden")

	// ErrReadOnly is returned by write operations while the store is wrapped
	// in read-only mode.
	ErrReadOnly = errors.New("store is read-only")

	// ErrCycle is returned by ReorderPages when a move would make a page an
	// ancestor of itself. It unwraps to ErrValidation.
	ErrCycle = &cycleError{}
)

type cycleError struct{}

func (*cycleError) Error() string { return "page move would create a cycle" }

func (*cycleError) Is(target error) bool { return target == ErrValidation }
