package saga

import "encoding/json"

type (
	// FlowError records one structural or step-level failure surfaced
	// during a transaction's lifetime. Step-level failures accumulate here
	// rather than propagating as Go errors (see errors.go).
	FlowError struct {
		Action    ActionName `json:"action,omitempty"`
		Phase     Phase      `json:"phase,omitempty"`
		Message   string     `json:"message"`
		Permanent bool       `json:"permanent"`
		At        int64      `json:"at"`
	}

	// Flow is the full runtime record of one transaction: its topology,
	// the per-step state, and the terminal flags derived from it once
	// finalize runs (spec §4.3).
	Flow struct {
		ModelID       ModelID          `json:"model_id"`
		TransactionID TransactionID    `json:"transaction_id"`
		State         TransactionState `json:"state"`
		Steps         map[StepID]*Step `json:"steps"`
		RootNext      []StepID         `json:"root_next"`
		Input         json.RawMessage  `json:"input,omitempty"`
		Errors        []FlowError      `json:"errors,omitempty"`
		CancelledAt   *int64           `json:"cancelled_at,omitempty"`
		CreatedAt     int64            `json:"created_at"`
		UpdatedAt     int64            `json:"updated_at"`
		FinishedAt    *int64           `json:"finished_at,omitempty"`

		hasFailedSteps       bool
		hasSkippedSteps      bool
		hasAsyncSteps        bool
		hasRemoteSteps       bool
		isPartiallyCompleted bool
	}
)

// NewFlow builds an empty, NOT_STARTED flow; BuildSteps populates Steps
// and RootNext from a Definition tree.
func NewFlow(model ModelID, tx TransactionID, now int64) *Flow {
	return &Flow{
		ModelID:       model,
		TransactionID: tx,
		State:         TxNotStarted,
		Steps:         map[StepID]*Step{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AddError appends a FlowError and touches UpdatedAt.
func (f *Flow) AddError(action ActionName, phase Phase, msg string, permanent bool, now int64) {
	f.Errors = append(f.Errors, FlowError{
		Action: action, Phase: phase, Message: msg, Permanent: permanent, At: now,
	})
	f.UpdatedAt = now
}

// TransitionState moves the flow's overall state, validating against
// TransactionStateTransitions.
func (f *Flow) TransitionState(next TransactionState, now int64) error {
	if !TransactionStateTransitions.CanTransition(f.State, next) {
		return ErrInvalidTransition
	}
	f.State = next
	f.UpdatedAt = now
	return nil
}

// Step looks up a step by id, returning ErrStepNotFound if absent.
func (f *Flow) Step(id StepID) (*Step, error) {
	s, ok := f.Steps[id]
	if !ok {
		return nil, ErrStepNotFound
	}
	return s, nil
}

// StepByAction looks up a step by its unique action name (invariant:
// BuildSteps rejects duplicate action names within one flow).
func (f *Flow) StepByAction(action ActionName) (*Step, error) {
	for _, s := range f.Steps {
		if s.Action == action {
			return s, nil
		}
	}
	return nil, ErrUnknownAction
}

// HasFailedSteps reports whether any step ever reached a PERMANENT_FAILURE
// status, independent of ContinueOnPermanentFailure.
func (f *Flow) HasFailedSteps() bool { return f.hasFailedSteps }

// HasSkippedSteps reports whether any step reached SKIPPED state.
func (f *Flow) HasSkippedSteps() bool { return f.hasSkippedSteps }

// IsPartiallyCompleted reports whether the flow finalized DONE despite one
// or more steps having permanently failed (the continueOnPermanentFailure
// carve-out, spec §8 scenario 5).
func (f *Flow) IsPartiallyCompleted() bool { return f.isPartiallyCompleted }

// HasAsyncSteps reports whether the flow's definition contains any step
// whose invoke or compensate phase completes out-of-band via
// registerStepSuccess/registerStepFailure (spec §3's Flow attribute).
func (f *Flow) HasAsyncSteps() bool { return f.hasAsyncSteps }

// HasRemoteSteps reports whether the flow's definition contains any step
// flagged for background execution — dispatched to the handler and left
// for a separate worker to drive to completion, the closest analogue this
// module has to the original's remotely-hosted step workers.
func (f *Flow) HasRemoteSteps() bool { return f.hasRemoteSteps }

// deriveFlags scans the freshly built step set for the async/remote flags
// BuildSteps/Rehydrate compute once per topology build, since they depend
// only on Definition policy, not runtime state.
func (f *Flow) deriveFlags() {
	for id, s := range f.Steps {
		if id == RootAction {
			continue
		}
		if s.Definition.Async || s.Definition.CompensateAsync {
			f.hasAsyncSteps = true
		}
		if s.Definition.BackgroundExecution {
			f.hasRemoteSteps = true
		}
	}
}

// Finalize computes the terminal TransactionState and derived flags from
// the current step set, per the resolution of spec §4.3/§3 recorded in
// DESIGN.md: fatal if any non-root step's invoke permanently failed
// without a successful compensation (and wasn't carved out by
// ContinueOnPermanentFailure), or any compensate permanently failed;
// REVERTED if not fatal but some step reverted; DONE otherwise. It does
// not transition f.State itself — callers decide which TxXxx value the
// classification maps to and call TransitionState.
func (f *Flow) Finalize(now int64) (final TransactionState) {
	fatal := false
	revertedAny := false
	f.hasFailedSteps = false
	f.hasSkippedSteps = false

	for id, s := range f.Steps {
		if id == RootAction {
			continue
		}
		if s.Invoke.Status == StatusPermanentFailure {
			f.hasFailedSteps = true
			if !s.Definition.ContinueOnPermanentFailure {
				if s.Definition.NoCompensation || s.Compensate.State != StateReverted {
					fatal = true
				}
			}
		}
		if s.Compensate.Status == StatusPermanentFailure {
			f.hasFailedSteps = true
			fatal = true
		}
		if s.Compensate.State == StateReverted {
			revertedAny = true
		}
		if s.Invoke.State == StateSkipped || s.Compensate.State == StateSkipped {
			f.hasSkippedSteps = true
		}
	}

	switch {
	case fatal:
		final = TxFailed
	case revertedAny:
		final = TxReverted
	default:
		final = TxDone
	}
	f.isPartiallyCompleted = f.hasFailedSteps && final == TxDone
	f.FinishedAt = &now
	f.UpdatedAt = now
	return final
}

// MarshalResponse is a convenience for callers that need a step's opaque
// response re-decoded into a concrete type.
func (s *Step) MarshalResponse(v any) error {
	if len(s.Response) == 0 {
		return nil
	}
	return json.Unmarshal(s.Response, v)
}
