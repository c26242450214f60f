package orchestrator

import (
	"context"

	"github.com/kode4food/txsaga/pkg/saga"
)

// RegisterStepSuccess completes an async step's invoke or compensate
// phase from outside the driver (spec §4.6). While the transaction's
// checkpoint is stored, a duplicate call against a step that has already
// settled is a no-op that returns the current Flow rather than an error.
// Once the transaction has finished and its checkpoint has been deleted
// or archived, a duplicate call returns ErrTransactionNotFound; archived
// checkpoints are not read.
func (o *Orchestrator) RegisterStepSuccess(ctx context.Context, idempotencyKey string, response saga.Response) (*saga.Flow, error) {
	return o.registerOutcome(ctx, idempotencyKey, func(flow *saga.Flow, step *saga.Step) error {
		return o.setStepSuccess(ctx, flow, step, response)
	})
}

// RegisterStepFailure is RegisterStepSuccess's failure counterpart.
func (o *Orchestrator) RegisterStepFailure(ctx context.Context, idempotencyKey string, cause error) (*saga.Flow, error) {
	return o.registerOutcome(ctx, idempotencyKey, func(flow *saga.Flow, step *saga.Step) error {
		return o.setStepFailure(ctx, flow, step, cause)
	})
}

func (o *Orchestrator) registerOutcome(
	ctx context.Context, idempotencyKey string, apply func(*saga.Flow, *saga.Step) error,
) (*saga.Flow, error) {
	tx, action, phase, ok := saga.ParseIdempotencyKey(idempotencyKey)
	if !ok {
		return nil, saga.ErrBadIdempotencyKey
	}

	unlock, err := o.store.Lock(ctx, o.model, tx)
	if err != nil {
		return nil, err
	}
	defer unlock(ctx)

	flow, err := o.GetTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := saga.Rehydrate(flow, o.def); err != nil {
		return nil, err
	}

	step, err := flow.StepByAction(action)
	if err != nil {
		return nil, err
	}

	active := step.GetStates()
	if active.Status != saga.StatusWaiting {
		// Already settled: idempotent no-op.
		return flow, nil
	}
	expectedPhase := saga.PhaseInvoke
	if step.StepFailed {
		expectedPhase = saga.PhaseCompensate
	}
	if phase != expectedPhase {
		return nil, saga.ErrIllegalState
	}

	if err := apply(flow, step); err != nil {
		return nil, err
	}
	if err := o.checkpoint(ctx, flow, nil); err != nil {
		return nil, err
	}
	return o.driveToStall(ctx, flow)
}
