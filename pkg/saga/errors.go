package saga

import "errors"

// Structural errors propagate to the caller of an orchestrator API (spec
// §7); step-level failures never surface this way — they're captured into
// Flow.Errors instead.
var (
	// ErrDuplicateAction is returned by BuildSteps when two steps in the
	// same definition tree share an action name.
	ErrDuplicateAction = errors.New("saga: duplicate action name")

	// ErrUnknownAction is returned when an external-completion call names
	// an action not present in the flow.
	ErrUnknownAction = errors.New("saga: unknown action")

	// ErrIllegalState is returned when an external-completion call targets
	// a WAITING step whose phase does not match the key. A call against a
	// step that is not WAITING is a no-op, not an error.
	ErrIllegalState = errors.New("saga: illegal step state for completion")

	// ErrInvalidTransition is returned when code attempts a state or
	// status change the transition tables forbid. It is a programming
	// error: never retried, never swallowed.
	ErrInvalidTransition = errors.New("saga: invalid state transition")

	// ErrStepNotFound is returned when a step id cannot be resolved within
	// a flow, and by BuildSteps for a definition node with no action name.
	// An unknown action name yields ErrUnknownAction instead.
	ErrStepNotFound = errors.New("saga: step not found")

	// ErrBadIdempotencyKey is returned when a key presented to
	// external completion does not parse as "tx:action:phase".
	ErrBadIdempotencyKey = errors.New("saga: malformed idempotency key")
)
