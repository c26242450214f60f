package saga

import (
	"context"
	"encoding/json"
	"errors"
)

type (
	// StepResult is what a StepHandler returns on success. Async, when
	// true, is the spec's `{async: true}` sentinel: the step stays
	// WAITING until an external registerStepSuccess/registerStepFailure
	// call arrives (spec §6).
	StepResult struct {
		Response Response
		Async    bool
	}

	// Response is a step's opaque output, stored verbatim and optionally
	// forwarded to a child's payload as `_response` (spec §4.4-§4.5).
	Response = json.RawMessage

	// StepHandler is the single function-typed field through which an
	// Orchestrator invokes every action's invoke and compensate phase.
	// Spec §9 rejects per-action class polymorphism in favor of exactly
	// this shape: one dynamic-dispatch function, keyed internally by
	// action name.
	StepHandler func(ctx context.Context, action ActionName, phase Phase, payload TransactionPayload) (StepResult, error)
)

// StepError wraps a handler error with the permanent/transient
// classification spec §7 requires: a permanent error bypasses retry
// immediately, as if failures had already exceeded maxRetries.
type StepError struct {
	Err       error
	Permanent bool
}

func (e *StepError) Error() string { return e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

// PermanentFailure wraps err so the orchestrator treats it as an
// unrecoverable failure (spec §7 PermanentStepFailure), bypassing retry
// regardless of remaining attempts.
func PermanentFailure(err error) error {
	return &StepError{Err: err, Permanent: true}
}

// TransientFailure wraps err as a retryable failure (spec §7
// TransientStepFailure). Handlers may also just return a plain error,
// which the orchestrator treats identically.
func TransientFailure(err error) error {
	return &StepError{Err: err, Permanent: false}
}

// IsPermanent reports whether err was produced by PermanentFailure.
func IsPermanent(err error) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Permanent
	}
	return false
}
