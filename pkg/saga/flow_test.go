package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildLinearFlow(t *testing.T) *Flow {
	t.Helper()
	def := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition(), Next: []*Definition{
			{Action: "b", StepDefinition: DefaultStepDefinition()},
		}},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))
	return flow
}

func TestNewFlowInitialState(t *testing.T) {
	flow := NewFlow("model", "tx-1", 1000)
	assert.Equal(t, TxNotStarted, flow.State)
	assert.Empty(t, flow.Steps)
	assert.Equal(t, int64(1000), flow.CreatedAt)
}

func TestFlowStepLookup(t *testing.T) {
	flow := buildLinearFlow(t)
	s, err := flow.Step(ChildID(RootAction, "a"))
	require.NoError(t, err)
	assert.Equal(t, ActionName("a"), s.Action)

	_, err = flow.Step("_root.nope")
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestFlowStepByAction(t *testing.T) {
	flow := buildLinearFlow(t)
	s, err := flow.StepByAction("b")
	require.NoError(t, err)
	assert.Equal(t, ChildID(ChildID(RootAction, "a"), "b"), s.ID)

	_, err = flow.StepByAction("missing")
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestFlowTransitionState(t *testing.T) {
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, flow.TransitionState(TxInvoking, 1001))
	assert.Equal(t, TxInvoking, flow.State)
	assert.Equal(t, int64(1001), flow.UpdatedAt)

	err := flow.TransitionState(TxReverted, 1002)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, TxInvoking, flow.State)
}

func TestFlowAddError(t *testing.T) {
	flow := NewFlow("model", "tx-1", 1000)
	flow.AddError("a", PhaseInvoke, "boom", true, 1002)
	require.Len(t, flow.Errors, 1)
	assert.Equal(t, ActionName("a"), flow.Errors[0].Action)
	assert.True(t, flow.Errors[0].Permanent)
	assert.Equal(t, int64(1002), flow.UpdatedAt)
}

func TestFinalizeAllDone(t *testing.T) {
	flow := buildLinearFlow(t)
	for _, s := range flow.Steps {
		require.NoError(t, s.TransitionState(StateInvoking))
		require.NoError(t, s.TransitionState(StateDone))
	}
	final := flow.Finalize(2000)
	assert.Equal(t, TxDone, final)
	assert.False(t, flow.HasFailedSteps())
	assert.False(t, flow.HasSkippedSteps())
	assert.False(t, flow.IsPartiallyCompleted())
}

func TestFinalizeRevertedWhenCompensated(t *testing.T) {
	flow := buildLinearFlow(t)
	for _, s := range flow.Steps {
		require.NoError(t, s.TransitionState(StateInvoking))
		require.NoError(t, s.TransitionState(StateDone))
		require.NoError(t, s.BeginCompensation())
		require.NoError(t, s.TransitionState(StateCompensating))
		require.NoError(t, s.TransitionState(StateReverted))
	}
	final := flow.Finalize(2000)
	assert.Equal(t, TxReverted, final)
}

func TestFinalizeFatalOnUncompensatedPermanentFailure(t *testing.T) {
	flow := buildLinearFlow(t)
	aID := ChildID(RootAction, "a")
	a := flow.Steps[aID]
	require.NoError(t, a.TransitionState(StateInvoking))
	require.NoError(t, a.TransitionStatus(StatusWaiting))
	require.NoError(t, a.TransitionStatus(StatusPermanentFailure))
	require.NoError(t, a.TransitionState(StateFailed))

	final := flow.Finalize(2000)
	assert.Equal(t, TxFailed, final)
	assert.True(t, flow.HasFailedSteps())
}

func TestFinalizePartiallyCompletedOnContinueOnPermanentFailure(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition()},
		{Action: "b", StepDefinition: StepDefinition{SaveResponse: true, ContinueOnPermanentFailure: true}},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))

	a := flow.Steps[ChildID(RootAction, "a")]
	require.NoError(t, a.TransitionState(StateInvoking))
	require.NoError(t, a.TransitionState(StateDone))

	b := flow.Steps[ChildID(RootAction, "b")]
	require.NoError(t, b.TransitionState(StateInvoking))
	require.NoError(t, b.TransitionStatus(StatusWaiting))
	require.NoError(t, b.TransitionStatus(StatusPermanentFailure))
	require.NoError(t, b.TransitionState(StateFailed))

	final := flow.Finalize(2000)
	assert.Equal(t, TxDone, final)
	assert.True(t, flow.IsPartiallyCompleted())
	assert.True(t, flow.HasFailedSteps())
}

func TestFinalizeFatalOnPermanentCompensationFailure(t *testing.T) {
	flow := buildLinearFlow(t)
	aID := ChildID(RootAction, "a")
	bID := ChildID(aID, "b")
	a, b := flow.Steps[aID], flow.Steps[bID]

	for _, s := range []*Step{a, b} {
		require.NoError(t, s.TransitionState(StateInvoking))
		require.NoError(t, s.TransitionState(StateDone))
		require.NoError(t, s.BeginCompensation())
	}
	require.NoError(t, b.TransitionState(StateCompensating))
	require.NoError(t, b.TransitionState(StateReverted))

	require.NoError(t, a.TransitionState(StateCompensating))
	require.NoError(t, a.TransitionStatus(StatusWaiting))
	require.NoError(t, a.TransitionStatus(StatusPermanentFailure))
	require.NoError(t, a.TransitionState(StateFailed))

	final := flow.Finalize(2000)
	assert.Equal(t, TxFailed, final)
}
