package orchestrator

import (
	"context"
	"errors"

	"github.com/kode4food/txsaga/internal/storage"
	"github.com/kode4food/txsaga/pkg/saga"
)

// errStepTimeoutElapsed is the synthetic permanent failure a step timeout
// produces (spec §7 TimeoutElapsed).
var errStepTimeoutElapsed = errors.New("orchestrator: step timeout elapsed")

// HandleTimer reacts to one fired storage.TimerEvent (spec §4.7). Timers
// are at-least-once; every branch re-checks the target's current state
// under the per-transaction lock before acting, so a timer that fires
// after its target already settled is a no-op.
func (o *Orchestrator) HandleTimer(ctx context.Context, ev storage.TimerEvent) (*saga.Flow, error) {
	unlock, err := o.store.Lock(ctx, ev.ModelID, ev.TransactionID)
	if err != nil {
		return nil, err
	}
	defer unlock(ctx)

	flow, err := o.GetTransaction(ctx, ev.TransactionID)
	if err != nil {
		return nil, err
	}
	if err := saga.Rehydrate(flow, o.def); err != nil {
		return nil, err
	}

	switch ev.Kind {
	case storage.TimerTransactionTimeout:
		return o.handleTransactionTimeout(ctx, flow)
	case storage.TimerStepTimeout:
		return o.handleStepTimeout(ctx, flow, ev.StepID)
	case storage.TimerRetry:
		return o.handleRetryTimer(ctx, flow, ev.StepID)
	default:
		return flow, nil
	}
}

func (o *Orchestrator) handleTransactionTimeout(ctx context.Context, flow *saga.Flow) (*saga.Flow, error) {
	if flow.State != saga.TxNotStarted && flow.State != saga.TxInvoking {
		return flow, nil // already past the point a timeout can affect
	}
	now := o.now()
	o.emit(saga.EventTimeout, flow, "", "", "transaction timeout")
	if err := flow.TransitionState(saga.TxWaitingToCompensate, now); err != nil {
		return nil, err
	}
	return o.driveToStall(ctx, flow)
}

func (o *Orchestrator) handleStepTimeout(ctx context.Context, flow *saga.Flow, stepID saga.StepID) (*saga.Flow, error) {
	step, ok := flow.Steps[stepID]
	if !ok {
		return flow, nil
	}
	active := step.GetStates()
	if active.Status != saga.StatusWaiting {
		return flow, nil // already settled; stale timer
	}
	o.emit(saga.EventTimeout, flow, step.Action, step.Phase(), "step timeout")
	if err := o.setStepFailure(ctx, flow, step, saga.PermanentFailure(errStepTimeoutElapsed)); err != nil {
		return nil, err
	}
	if err := o.checkpoint(ctx, flow, nil); err != nil {
		return nil, err
	}
	return o.driveToStall(ctx, flow)
}

func (o *Orchestrator) handleRetryTimer(ctx context.Context, flow *saga.Flow, stepID saga.StepID) (*saga.Flow, error) {
	step, ok := flow.Steps[stepID]
	if !ok {
		return flow, nil
	}
	active := step.GetStates()
	if active.Status != saga.StatusTemporaryFailure {
		return flow, nil // already retried or settled by another path
	}
	if err := transitionStatus(active, saga.StatusIdle); err != nil {
		return nil, err
	}
	return o.driveToStall(ctx, flow)
}
