package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildStepsAssignsPathIDs(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition(), Next: []*Definition{
			{Action: "b", StepDefinition: DefaultStepDefinition()},
		}},
		{Action: "c", StepDefinition: DefaultStepDefinition()},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))

	aID := ChildID(RootAction, "a")
	bID := ChildID(aID, "b")
	cID := ChildID(RootAction, "c")

	require.Contains(t, flow.Steps, aID)
	require.Contains(t, flow.Steps, bID)
	require.Contains(t, flow.Steps, cID)

	assert.Equal(t, StepID("_root.a"), aID)
	assert.Equal(t, StepID("_root.a.b"), bID)
	assert.Equal(t, 0, flow.Steps[aID].Depth)
	assert.Equal(t, 1, flow.Steps[bID].Depth)
	assert.Equal(t, []StepID{aID, cID}, flow.RootNext)
	assert.Equal(t, []StepID{bID}, flow.Steps[aID].Next)
}

func TestBuildStepsRejectsDuplicateActions(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition(), Next: []*Definition{
			{Action: "dup", StepDefinition: DefaultStepDefinition()},
		}},
		{Action: "dup", StepDefinition: DefaultStepDefinition()},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	err := BuildSteps(flow, def)
	assert.ErrorIs(t, err, ErrDuplicateAction)
}

func TestRehydratePreservesRuntimeFields(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition()},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))

	aID := ChildID(RootAction, "a")
	a := flow.Steps[aID]
	require.NoError(t, a.TransitionState(StateInvoking))
	a.Attempts = 5
	a.Response = []byte(`{"r":1}`)

	require.NoError(t, Rehydrate(flow, def))

	got := flow.Steps[aID]
	assert.Equal(t, StateInvoking, got.Invoke.State)
	assert.Equal(t, 5, got.Attempts)
	assert.Equal(t, []byte(`{"r":1}`), []byte(got.Response))
}

func TestRehydrateStructuralChangeRecomputesTopology(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition()},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))

	newDef := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition(), Next: []*Definition{
			{Action: "b", StepDefinition: DefaultStepDefinition()},
		}},
	}}
	require.NoError(t, Rehydrate(flow, newDef))
	assert.Contains(t, flow.Steps, ChildID(ChildID(RootAction, "a"), "b"))
}

func TestBuildStepsDerivesAsyncAndRemoteFlags(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition()},
		{Action: "b", StepDefinition: StepDefinition{SaveResponse: true, Async: true}},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))
	assert.True(t, flow.HasAsyncSteps())
	assert.False(t, flow.HasRemoteSteps())

	def2 := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: StepDefinition{SaveResponse: true, BackgroundExecution: true}},
	}}
	flow2 := NewFlow("model", "tx-2", 1000)
	require.NoError(t, BuildSteps(flow2, def2))
	assert.False(t, flow2.HasAsyncSteps())
	assert.True(t, flow2.HasRemoteSteps())
}

func TestRehydrateFailurePreservesOriginalSteps(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition()},
	}}
	flow := NewFlow("model", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))
	before := flow.Steps

	badDef := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: DefaultStepDefinition()},
		{Action: "a", StepDefinition: DefaultStepDefinition()},
	}}
	err := Rehydrate(flow, badDef)
	assert.ErrorIs(t, err, ErrDuplicateAction)
	assert.Equal(t, before, flow.Steps)
}
