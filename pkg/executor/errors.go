package executor

import "errors"

var (
	// ErrMissingHash is returned when a plan arrives without an integrity hash
	ErrMissingHash = errors.New("plan has no integrity hash")

	// ErrHashMismatch is returned when plan content does not match its hash
	ErrHashMismatch = errors.New("plan hash mismatch")

	// ErrBadSignature is returned when a plan signature fails verification
	ErrBadSignature = errors.New("plan signature invalid")

	// ErrInvalidPlan is returned when strict mode rejects a plan's structure
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrBudgetExceeded marks executions aborted by the whole-plan time budget
	ErrBudgetExceeded = errors.New("plan budget exceeded")
)
