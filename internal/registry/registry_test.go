package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/txsaga/pkg/saga"
)

func noopHandler(context.Context, saga.ActionName, saga.Phase, saga.TransactionPayload) (saga.StepResult, error) {
	return saga.StepResult{}, nil
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	def := &saga.Definition{Next: []*saga.Definition{{Action: "charge"}}}

	require.NoError(t, r.Register("order", def, noopHandler))

	got, h, err := r.Lookup("order")
	require.NoError(t, err)
	assert.Same(t, def, got)
	assert.NotNil(t, h)
}

func TestLookupUnknownModel(t *testing.T) {
	r := New()
	_, _, err := r.Lookup("nope")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestRegisterTwiceWithEqualDefinitionIsNoop(t *testing.T) {
	r := New()
	def1 := &saga.Definition{Next: []*saga.Definition{{Action: "charge"}}}
	def2 := &saga.Definition{Next: []*saga.Definition{{Action: "charge"}}}

	require.NoError(t, r.Register("order", def1, noopHandler))
	assert.NoError(t, r.Register("order", def2, noopHandler))
}

func TestRegisterTwiceWithDifferentDefinitionErrors(t *testing.T) {
	r := New()
	def1 := &saga.Definition{Next: []*saga.Definition{{Action: "charge"}}}
	def2 := &saga.Definition{Next: []*saga.Definition{{Action: "refund"}}}

	require.NoError(t, r.Register("order", def1, noopHandler))
	assert.ErrorIs(t, r.Register("order", def2, noopHandler), ErrAlreadyRegistered)
}

func TestRegisterDistinctModelsIndependent(t *testing.T) {
	r := New()
	orderDef := &saga.Definition{Next: []*saga.Definition{{Action: "charge"}}}
	shipDef := &saga.Definition{Next: []*saga.Definition{{Action: "dispatch"}}}

	require.NoError(t, r.Register("order", orderDef, noopHandler))
	require.NoError(t, r.Register("shipping", shipDef, noopHandler))

	got, _, err := r.Lookup("shipping")
	require.NoError(t, err)
	assert.Same(t, shipDef, got)
}
