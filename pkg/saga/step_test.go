package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStepDefaults(t *testing.T) {
	s := NewStep("_root.a", "a", 0, nil, DefaultStepDefinition())
	assert.Equal(t, StateNotStarted, s.Invoke.State)
	assert.Equal(t, StatusIdle, s.Invoke.Status)
	assert.Equal(t, StateDormant, s.Compensate.State)
	assert.Equal(t, StatusIdle, s.Compensate.Status)
	assert.False(t, s.StepFailed)
	assert.True(t, s.Definition.SaveResponse)
}

func TestGetStatesSelectsPhase(t *testing.T) {
	s := NewStep("_root.a", "a", 0, nil, DefaultStepDefinition())
	assert.Same(t, &s.Invoke, s.GetStates())
	assert.Equal(t, PhaseInvoke, s.Phase())

	s.StepFailed = true
	assert.Same(t, &s.Compensate, s.GetStates())
	assert.Equal(t, PhaseCompensate, s.Phase())
}

func TestTransitionStateValidatesActivePhase(t *testing.T) {
	s := NewStep("_root.a", "a", 0, nil, DefaultStepDefinition())
	require.NoError(t, s.TransitionState(StateInvoking))
	assert.Equal(t, StateInvoking, s.Invoke.State)

	err := s.TransitionState(StateReverted)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateInvoking, s.Invoke.State, "failed transition must not mutate")

	require.NoError(t, s.TransitionState(StateDone))
	assert.Equal(t, StateDone, s.Invoke.State)
}

func TestTransitionStatusRescheduleCarveOut(t *testing.T) {
	s := NewStep("_root.a", "a", 0, nil, DefaultStepDefinition())
	require.NoError(t, s.TransitionStatus(StatusWaiting))
	require.NoError(t, s.TransitionStatus(StatusPermanentFailure))
	// Any -> WAITING is always legal, even from a terminal status.
	require.NoError(t, s.TransitionStatus(StatusWaiting))
}

func TestBeginCompensationResetsBookkeeping(t *testing.T) {
	s := NewStep("_root.a", "a", 0, nil, DefaultStepDefinition())
	require.NoError(t, s.TransitionState(StateInvoking))
	require.NoError(t, s.TransitionState(StateDone))
	s.Attempts = 3
	s.Failures = 2
	last := int64(1000)
	s.LastAttempt = &last

	require.NoError(t, s.BeginCompensation())
	assert.Equal(t, StateNotStarted, s.Compensate.State)
	assert.Equal(t, 0, s.Attempts)
	assert.Equal(t, 0, s.Failures)
	assert.Nil(t, s.LastAttempt)
	assert.True(t, s.StepFailed)
}

func TestBeginCompensationRejectsNonDormant(t *testing.T) {
	s := NewStep("_root.a", "a", 0, nil, DefaultStepDefinition())
	require.NoError(t, s.BeginCompensation())
	assert.ErrorIs(t, s.BeginCompensation(), ErrInvalidTransition)
}

func TestIsTerminalPhase(t *testing.T) {
	s := NewStep("_root.a", "a", 0, nil, DefaultStepDefinition())
	assert.False(t, s.IsTerminalPhase())
	require.NoError(t, s.TransitionState(StateInvoking))
	require.NoError(t, s.TransitionState(StateDone))
	assert.False(t, s.IsTerminalPhase()) // DONE still has an outgoing edge (-> COMPENSATING)

	s2 := NewStep("_root.b", "b", 0, nil, DefaultStepDefinition())
	require.NoError(t, s2.TransitionState(StateFailed))
	assert.True(t, s2.IsTerminalPhase())
}

func TestMarshalResponseEmptyIsNoop(t *testing.T) {
	s := NewStep("_root.a", "a", 0, nil, DefaultStepDefinition())
	var v map[string]any
	require.NoError(t, s.MarshalResponse(&v))
	assert.Nil(t, v)
}

func TestMarshalResponseDecodes(t *testing.T) {
	s := NewStep("_root.a", "a", 0, nil, DefaultStepDefinition())
	s.Response = []byte(`{"x":1}`)
	var v map[string]any
	require.NoError(t, s.MarshalResponse(&v))
	assert.Equal(t, float64(1), v["x"])
}
