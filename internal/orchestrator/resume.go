package orchestrator

import (
	"context"

	"github.com/kode4food/txsaga/pkg/saga"
)

// BeginTransaction creates a fresh Flow for tx from the Orchestrator's
// registered Definition, persists its first checkpoint, and drives it
// until it stalls or finishes (spec §2 `beginTransaction`).
func (o *Orchestrator) BeginTransaction(ctx context.Context, tx saga.TransactionID, input []byte) (*saga.Flow, error) {
	now := o.now()
	flow := saga.NewFlow(o.model, tx, now)
	flow.Input = input
	if err := saga.BuildSteps(flow, o.def); err != nil {
		return nil, err
	}
	o.applyStepDefaults(flow)
	if err := flow.TransitionState(saga.TxInvoking, now); err != nil {
		return nil, err
	}
	o.emit(saga.EventBegin, flow, "", "", "")

	if o.opts.Timeout > 0 {
		at := msToTime(addSeconds(now, int64(o.opts.Timeout.Seconds())))
		if err := o.store.ScheduleTransactionTimeout(ctx, o.model, tx, at, o.opts.Timeout); err != nil {
			return nil, err
		}
	}

	return o.driveToStall(ctx, flow)
}

// Resume loads tx's checkpoint and continues driving it, emitting RESUME
// first (spec §2 `resume`).
func (o *Orchestrator) Resume(ctx context.Context, tx saga.TransactionID) (*saga.Flow, error) {
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
	o.emit(saga.EventResume, flow, "", "", "")
	return o.driveToStall(ctx, flow)
}

// driveToStall repeatedly runs checkAllSteps/executeNext until the flow
// either finishes, stalls awaiting external input/timers, or needs to
// flip phases into compensation (spec §4.3).
func (o *Orchestrator) driveToStall(ctx context.Context, flow *saga.Flow) (*saga.Flow, error) {
	for {
		pass := o.checkAllSteps(flow)

		if len(pass.next) > 0 {
			if err := o.executeNext(ctx, flow, pass.next); err != nil {
				return nil, err
			}
			if err := o.checkpoint(ctx, flow, nil); err != nil {
				return nil, err
			}
			continue
		}

		if flow.State == saga.TxWaitingToCompensate && !pass.hasWaiting {
			if err := o.beginCompensationPass(flow); err != nil {
				return nil, err
			}
			if err := flow.TransitionState(saga.TxCompensating, o.now()); err != nil {
				return nil, err
			}
			o.emit(saga.EventCompensateBegin, flow, "", saga.PhaseCompensate, "")
			continue
		}

		if pass.completed >= pass.total && !pass.hasWaiting {
			return o.finish(ctx, flow)
		}

		if err := o.checkpoint(ctx, flow, nil); err != nil {
			return nil, err
		}
		return flow, nil
	}
}

// beginCompensationPass arms every DONE or PERMANENT_FAILURE,
// non-noCompensation step's compensate phase for scheduling (spec §4.3:
// "flag DONE (and PERMANENT_FAILURE) non-noCompensation steps to
// beginCompensation()"). A step skipped entirely — e.g. a
// continueOnPermanentFailure descendant that never ran — has nothing to
// undo and is left DORMANT, which compensateTerminal already treats as
// settled.
func (o *Orchestrator) beginCompensationPass(flow *saga.Flow) error {
	for id, s := range flow.Steps {
		if id == saga.RootAction || s.Definition.NoCompensation {
			continue
		}
		switch s.Invoke.State {
		case saga.StateDone, saga.StateFailed:
		default:
			continue
		}
		if s.Compensate.State != saga.StateDormant {
			continue
		}
		if err := s.BeginCompensation(); err != nil {
			return err
		}
	}
	return nil
}

// finish finalizes flow's terminal state, emits FINISH, and deletes or
// archives its checkpoint (spec §4.3's tail case).
func (o *Orchestrator) finish(ctx context.Context, flow *saga.Flow) (*saga.Flow, error) {
	now := o.now()
	final := flow.Finalize(now)
	if err := flow.TransitionState(final, now); err != nil {
		return nil, err
	}
	o.emit(saga.EventFinish, flow, "", "", string(final))

	if err := o.store.ClearTransactionTimeout(ctx, o.model, flow.TransactionID); err != nil {
		return nil, err
	}
	if err := o.checkpoint(ctx, flow, nil); err != nil {
		return nil, err
	}
	return flow, nil
}
