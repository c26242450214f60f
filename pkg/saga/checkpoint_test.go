package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	def := &Definition{Next: []*Definition{
		{Action: "a", StepDefinition: StepDefinition{SaveResponse: true, MaxRetries: 2}, Next: []*Definition{
			{Action: "b", StepDefinition: DefaultStepDefinition()},
		}},
	}}
	flow := NewFlow("order", "tx-1", 1000)
	require.NoError(t, BuildSteps(flow, def))
	flow.Input = []byte(`{"amount":9}`)

	aID := ChildID(RootAction, "a")
	a := flow.Steps[aID]
	require.NoError(t, a.TransitionState(StateInvoking))
	require.NoError(t, a.TransitionStatus(StatusWaiting))
	require.NoError(t, a.TransitionStatus(StatusOK))
	require.NoError(t, a.TransitionState(StateDone))
	a.Response = []byte(`{"ok":true}`)
	flow.AddError("a", PhaseInvoke, "transient hiccup", false, 1500)
	require.NoError(t, flow.TransitionState(TxInvoking, 1600))

	cp := &Checkpoint{Flow: flow, Context: []byte(`{"tenant":"acme"}`)}
	data, err := cp.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalCheckpoint(data)
	require.NoError(t, err)

	assert.Equal(t, flow.ModelID, got.Flow.ModelID)
	assert.Equal(t, flow.TransactionID, got.Flow.TransactionID)
	assert.Equal(t, flow.State, got.Flow.State)
	assert.Equal(t, flow.Errors, got.Flow.Errors)
	assert.Equal(t, flow.RootNext, got.Flow.RootNext)
	assert.Equal(t, string(flow.Input), string(got.Flow.Input))
	assert.Equal(t, string(cp.Context), string(got.Context))

	require.Len(t, got.Flow.Steps, len(flow.Steps))
	for id, s := range flow.Steps {
		gs, ok := got.Flow.Steps[id]
		require.True(t, ok, "step %s missing after round-trip", id)
		assert.Equal(t, s.Invoke, gs.Invoke)
		assert.Equal(t, s.Compensate, gs.Compensate)
		assert.Equal(t, s.Attempts, gs.Attempts)
		assert.Equal(t, s.Failures, gs.Failures)
		assert.Equal(t, string(s.Response), string(gs.Response))
		assert.Equal(t, s.StepFailed, gs.StepFailed)
	}
}

func TestUnmarshalCheckpointRejectsGarbage(t *testing.T) {
	_, err := UnmarshalCheckpoint([]byte("not json"))
	assert.Error(t, err)
}
