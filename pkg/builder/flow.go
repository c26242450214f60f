package builder

import (
	"context"
	"fmt"

	"github.com/kode4food/txsaga/pkg/saga"
)

// Flow is a builder for a model's step tree and the handler map behind
// it. WithSteps' children become the root Definition's direct children.
type Flow struct {
	model saga.ModelID
	roots []*Step
}

// NewFlow starts a builder for model.
func NewFlow(model saga.ModelID) *Flow {
	return &Flow{model: model}
}

// WithSteps sets the flow's top-level steps, replacing any previously
// set via this or a prior WithSteps call.
func (f *Flow) WithSteps(steps ...*Step) *Flow {
	res := *f
	res.roots = make([]*Step, len(steps))
	copy(res.roots, steps)
	return &res
}

// Build assembles the root saga.Definition and a single dispatching
// saga.StepHandler that looks up each action's attached handler by name,
// satisfying spec §9's "single function-typed field, no per-action class
// polymorphism" while still letting callers author one handler per step.
func (f *Flow) Build() (*saga.Definition, saga.StepHandler, error) {
	root := &saga.Definition{}
	handlers := map[saga.ActionName]saga.StepHandler{}
	for _, s := range f.roots {
		root.Next = append(root.Next, s.toDefinition())
		s.collectHandlers(handlers)
	}

	dispatch := func(ctx context.Context, action saga.ActionName, phase saga.Phase, payload saga.TransactionPayload) (saga.StepResult, error) {
		h, ok := handlers[action]
		if !ok {
			return saga.StepResult{}, fmt.Errorf("builder: %w: %s", saga.ErrUnknownAction, action)
		}
		return h(ctx, action, phase, payload)
	}
	return root, dispatch, nil
}
