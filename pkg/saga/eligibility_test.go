package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildParallelTree mirrors spec §8 scenario 2: next=[A, B{next:C{next:E}}, D{next:F}].
func buildParallelTree(t *testing.T) *Flow {
	t.Helper()
	def := &Definition{Next: []*Definition{
		{Action: "A", StepDefinition: DefaultStepDefinition()},
		{Action: "B", StepDefinition: DefaultStepDefinition(), Next: []*Definition{
			{Action: "C", StepDefinition: DefaultStepDefinition(), Next: []*Definition{
				{Action: "E", StepDefinition: DefaultStepDefinition()},
			}},
		}},
		{Action: "D", StepDefinition: DefaultStepDefinition(), Next: []*Definition{
			{Action: "F", StepDefinition: DefaultStepDefinition()},
		}},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))
	return flow
}

func actionsOf(flow *Flow, ids []StepID) []ActionName {
	out := make([]ActionName, len(ids))
	for i, id := range ids {
		out[i] = flow.Steps[id].Action
	}
	return out
}

func TestInvokeOrderBreadthFirst(t *testing.T) {
	flow := buildParallelTree(t)
	order := flow.InvokeOrder()
	assert.Equal(t, []ActionName{"A", "B", "D", "C", "F", "E"}, actionsOf(flow, order))
}

func TestCompensateOrderReversesInvokeOrder(t *testing.T) {
	flow := buildParallelTree(t)
	order := flow.CompensateOrder()
	assert.Equal(t, []ActionName{"E", "F", "C", "D", "B", "A"}, actionsOf(flow, order))
}

func TestCanMoveForwardRootChildrenAlwaysEligible(t *testing.T) {
	flow := buildParallelTree(t)
	for _, id := range flow.RootNext {
		assert.True(t, flow.CanMoveForward(id))
	}
}

func TestCanMoveForwardWaitsForSiblings(t *testing.T) {
	flow := buildParallelTree(t)
	aID := ChildID(RootAction, "A")
	bID := ChildID(RootAction, "B")
	dID := ChildID(RootAction, "D")
	cID := ChildID(bID, "C")

	// C's parent is B; B must have finished invoking before C is eligible.
	assert.False(t, flow.CanMoveForward(cID))

	b := flow.Steps[bID]
	require.NoError(t, b.TransitionState(StateInvoking))
	require.NoError(t, b.TransitionState(StateDone))

	// B alone finishing isn't enough: the whole depth-0 generation (A, B,
	// D) must settle before a depth-1 step may dispatch (spec §8
	// scenario 2's generation barrier).
	assert.False(t, flow.CanMoveForward(cID))

	a, d := flow.Steps[aID], flow.Steps[dID]
	require.NoError(t, a.TransitionState(StateInvoking))
	require.NoError(t, a.TransitionState(StateDone))
	require.NoError(t, d.TransitionState(StateInvoking))
	require.NoError(t, d.TransitionState(StateDone))

	assert.True(t, flow.CanMoveForward(cID))
}

func TestCanMoveForwardNoWaitSkipsSiblingGate(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "A", StepDefinition: DefaultStepDefinition()},
		{Action: "B", StepDefinition: StepDefinition{SaveResponse: true, NoWait: true}, Next: []*Definition{
			{Action: "D", StepDefinition: DefaultStepDefinition()},
		}},
		{Action: "C", StepDefinition: DefaultStepDefinition()},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))

	bID := ChildID(RootAction, "B")
	dID := ChildID(bID, "D")
	b := flow.Steps[bID]
	require.NoError(t, b.TransitionState(StateInvoking))
	require.NoError(t, b.TransitionState(StateDone))

	// A and C are still NOT_STARTED, but B is flagged noWait so D may
	// dispatch without waiting on its siblings (spec §8 scenario 8).
	assert.True(t, flow.CanMoveForward(dID))
}

func TestCanMoveBackwardRequiresDescendantsSettled(t *testing.T) {
	flow := buildParallelTree(t)
	bID := ChildID(RootAction, "B")
	cID := ChildID(bID, "C")
	eID := ChildID(cID, "E")

	b, c, e := flow.Steps[bID], flow.Steps[cID], flow.Steps[eID]
	for _, s := range []*Step{b, c, e} {
		require.NoError(t, s.TransitionState(StateInvoking))
		require.NoError(t, s.TransitionState(StateDone))
		require.NoError(t, s.BeginCompensation())
	}

	// C still has E to compensate -- C may not move backward until E
	// settles.
	assert.False(t, flow.CanMoveBackward(cID))

	require.NoError(t, e.TransitionState(StateCompensating))
	require.NoError(t, e.TransitionState(StateReverted))
	assert.True(t, flow.CanMoveBackward(cID))
}

func TestCanMoveBackwardExcludesNoCompensation(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "A", StepDefinition: StepDefinition{SaveResponse: true, NoCompensation: true}},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))
	aID := ChildID(RootAction, "A")
	a := flow.Steps[aID]
	require.NoError(t, a.TransitionState(StateInvoking))
	require.NoError(t, a.TransitionState(StateDone))

	assert.False(t, flow.CanMoveBackward(aID))
}

func TestCanMoveBackwardLeafWithNoChildren(t *testing.T) {
	flow := buildParallelTree(t)
	aID := ChildID(RootAction, "A")
	a := flow.Steps[aID]
	require.NoError(t, a.TransitionState(StateInvoking))
	require.NoError(t, a.TransitionState(StateDone))
	require.NoError(t, a.BeginCompensation())
	assert.True(t, flow.CanMoveBackward(aID))
}

func TestCanContinueFalseWhenNothingEligible(t *testing.T) {
	flow := NewFlow("model", "tx-1", 1000)
	assert.False(t, flow.CanContinue())
}

func TestDescendants(t *testing.T) {
	flow := buildParallelTree(t)
	bID := ChildID(RootAction, "B")
	cID := ChildID(bID, "C")
	eID := ChildID(cID, "E")
	got := flow.Descendants(bID)
	assert.ElementsMatch(t, []StepID{cID, eID}, got)
}

func TestPendingExternal(t *testing.T) {
	flow := buildParallelTree(t)
	aID := ChildID(RootAction, "A")
	a := flow.Steps[aID]
	require.NoError(t, a.TransitionState(StateInvoking))
	require.NoError(t, a.TransitionStatus(StatusWaiting))

	pending := flow.PendingExternal()
	assert.Equal(t, []StepID{aID}, pending)
}
