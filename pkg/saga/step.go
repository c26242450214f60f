package saga

import "encoding/json"

type (
	// StepDefinition is the per-action policy carried on a Definition node
	// and copied onto the Step built from it. Field names follow spec §3.
	StepDefinition struct {
		MaxRetries                 int   `json:"max_retries,omitempty"`
		RetryIntervalSeconds       int64 `json:"retry_interval,omitempty"`
		TimeoutSeconds             int64 `json:"timeout,omitempty"`
		Async                      bool  `json:"async,omitempty"`
		CompensateAsync            bool  `json:"compensate_async,omitempty"`
		NoWait                     bool  `json:"no_wait,omitempty"`
		NoCompensation             bool  `json:"no_compensation,omitempty"`
		ContinueOnPermanentFailure bool  `json:"continue_on_permanent_failure,omitempty"`
		ForwardResponse            bool  `json:"forward_response,omitempty"`
		SaveResponse               bool  `json:"save_response"`
		BackgroundExecution        bool  `json:"background_execution,omitempty"`
	}

	// Definition is one node of the caller-supplied step tree: an action
	// plus its ordered children (spec §4.1 input form). Next holds either
	// zero, one, or many children; authoring sugar that accepts a bare
	// Definition for "next" collapses to a one-element slice by the time
	// it reaches BuildSteps.
	Definition struct {
		Action ActionName    `json:"action,omitempty"`
		Next   []*Definition `json:"next,omitempty"`
		StepDefinition
	}

	// PhaseState is the (state, status) pair tracked independently for a
	// step's invoke and compensate phases.
	PhaseState struct {
		State  StepState  `json:"state"`
		Status StepStatus `json:"status"`
	}

	// Step is the runtime state of one action within one Flow.
	Step struct {
		ID          StepID          `json:"id"`
		Action      ActionName      `json:"action"`
		Depth       int             `json:"depth"`
		Next        []StepID        `json:"next"`
		Definition  StepDefinition  `json:"definition"`
		Invoke      PhaseState      `json:"invoke"`
		Compensate  PhaseState      `json:"compensate"`
		Attempts    int             `json:"attempts"`
		Failures    int             `json:"failures"`
		LastAttempt *int64          `json:"last_attempt,omitempty"`
		StartedAt   *int64          `json:"started_at,omitempty"`
		Response    json.RawMessage `json:"response,omitempty"`
		StepFailed  bool            `json:"step_failed"`
	}
)

// DefaultStepDefinition returns the policy defaults spec §3 implies:
// SaveResponse defaults true, every other flag defaults false/zero.
func DefaultStepDefinition() StepDefinition {
	return StepDefinition{SaveResponse: true}
}

// NewStep constructs a fresh, DORMANT->NOT_STARTED step for id/action at
// depth with the given ordered children and policy, as buildSteps does for
// every node it visits (spec §4.1).
func NewStep(
	id StepID, action ActionName, depth int, next []StepID, def StepDefinition,
) *Step {
	return &Step{
		ID:         id,
		Action:     action,
		Depth:      depth,
		Next:       next,
		Definition: def,
		Invoke:     PhaseState{State: StateNotStarted, Status: StatusIdle},
		Compensate: PhaseState{State: StateDormant, Status: StatusIdle},
	}
}

// GetStates selects the active (state, status) pair per spec §3: compensate
// once the step has failed and rollback has begun, invoke otherwise.
func (s *Step) GetStates() *PhaseState {
	if s.StepFailed {
		return &s.Compensate
	}
	return &s.Invoke
}

// TransitionState moves the active phase's state to next, validating
// against StepStateTransitions (invariant 5). Returns ErrInvalidTransition
// on a disallowed move; does not mutate on error.
func (s *Step) TransitionState(next StepState) error {
	st := s.GetStates()
	if !StepStateTransitions.CanTransition(st.State, next) {
		return ErrInvalidTransition
	}
	st.State = next
	return nil
}

// TransitionStatus moves the active phase's status to next, validating
// against CanTransitionStatus (which includes the "Any -> WAITING" carve
// out for rescheduling). Does not mutate on error.
func (s *Step) TransitionStatus(next StepStatus) error {
	st := s.GetStates()
	if !CanTransitionStatus(st.Status, next) {
		return ErrInvalidTransition
	}
	st.Status = next
	return nil
}

// BeginCompensation resets retry bookkeeping and arms the compensate phase
// for scheduling, per §4.3's finalize-to-COMPENSATING step: "resets
// attempts, failures, lastAttempt, clears state to NOT_STARTED on the
// compensate phase". It is called only on steps flagged eligible for
// compensation by the orchestrator (see beginCompensationPass in
// internal/orchestrator/resume.go).
func (s *Step) BeginCompensation() error {
	if err := (&s.Compensate).transitionFrom(StateDormant, StateNotStarted); err != nil {
		return err
	}
	s.Attempts = 0
	s.Failures = 0
	s.LastAttempt = nil
	s.StepFailed = true
	return nil
}

func (ps *PhaseState) transitionFrom(from, to StepState) error {
	if ps.State != from {
		return ErrInvalidTransition
	}
	if !StepStateTransitions.CanTransition(from, to) {
		return ErrInvalidTransition
	}
	ps.State = to
	return nil
}

// Phase reports which phase GetStates is currently selecting.
func (s *Step) Phase() Phase {
	if s.StepFailed {
		return PhaseCompensate
	}
	return PhaseInvoke
}

// IsTerminalPhase reports whether the active phase has reached a state
// with no outgoing transitions.
func (s *Step) IsTerminalPhase() bool {
	return StepStateTransitions.IsTerminal(s.GetStates().State)
}
