package orchestrator

import (
	"context"

	"github.com/kode4food/txsaga/pkg/saga"
)

// CancelTransaction marks tx cancelled and begins compensation, if it
// hasn't already finished (spec §4.8). Cancellation is cooperative:
// in-flight handler calls are not aborted, only the eligibility of steps
// not yet dispatched is affected.
func (o *Orchestrator) CancelTransaction(ctx context.Context, tx saga.TransactionID) (*saga.Flow, error) {
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

	if flow.State != saga.TxNotStarted && flow.State != saga.TxInvoking {
		return flow, nil // already compensating/terminal: no-op
	}

	now := o.now()
	flow.CancelledAt = &now
	if err := flow.TransitionState(saga.TxWaitingToCompensate, now); err != nil {
		return nil, err
	}
	return o.driveToStall(ctx, flow)
}
