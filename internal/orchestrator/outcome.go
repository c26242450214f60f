package orchestrator

import (
	"context"

	"github.com/kode4food/txsaga/pkg/saga"
)

// setStepSuccess applies spec §4.5's success rules to step after its
// handler resolved (or an external registerStepSuccess arrived).
func (o *Orchestrator) setStepSuccess(ctx context.Context, flow *saga.Flow, step *saga.Step, response saga.Response) error {
	now := o.now()
	compensating := step.StepFailed

	if !compensating && step.Definition.SaveResponse {
		step.Response = response
	}

	active := &step.Invoke
	if compensating {
		active = &step.Compensate
	}
	if err := transitionStatus(active, saga.StatusOK); err != nil {
		return err
	}

	if compensating {
		if err := transitionState(active, saga.StateReverted); err != nil {
			return err
		}
		o.emit(saga.EventCompensateStepSuccess, flow, step.Action, saga.PhaseCompensate, "")
	} else {
		if err := transitionState(active, saga.StateDone); err != nil {
			return err
		}
		o.emit(saga.EventStepSuccess, flow, step.Action, saga.PhaseInvoke, "")
	}
	step.StartedAt = nil
	flow.UpdatedAt = now
	return nil
}

// setStepFailure applies spec §4.5's failure rules: increments failures,
// decides retry vs permanent failure, and on permanent invoke failure
// either skips descendants (continueOnPermanentFailure) or escalates the
// flow to WAITING_TO_COMPENSATE. Permanent compensate failure is always
// fatal.
func (o *Orchestrator) setStepFailure(ctx context.Context, flow *saga.Flow, step *saga.Step, cause error) error {
	now := o.now()
	compensating := step.StepFailed
	permanent := saga.IsPermanent(cause)

	active := &step.Invoke
	phase := saga.PhaseInvoke
	if compensating {
		active = &step.Compensate
		phase = saga.PhaseCompensate
	}

	step.Failures++
	maxRetries := step.Definition.MaxRetries
	willExceed := permanent || step.Failures > maxRetries

	if err := transitionStatus(active, saga.StatusTemporaryFailure); err != nil {
		return err
	}

	if !willExceed {
		flow.AddError(step.Action, phase, cause.Error(), false, now)
		if step.Definition.RetryIntervalSeconds > 0 {
			at := addSeconds(now, step.Definition.RetryIntervalSeconds)
			return o.store.ScheduleRetry(ctx, o.model, flow.TransactionID, step.ID,
				msToTime(at), secondsToDuration(step.Definition.RetryIntervalSeconds))
		}
		// no interval: status stays TEMPORARY_FAILURE, next pass retries
		// immediately (schedule.go readyToInvoke/readyToCompensate).
		return nil
	}

	if err := transitionStatus(active, saga.StatusPermanentFailure); err != nil {
		return err
	}
	if err := transitionState(active, saga.StateFailed); err != nil {
		return err
	}
	flow.AddError(step.Action, phase, cause.Error(), true, now)

	if compensating {
		o.emit(saga.EventCompensateStepFailure, flow, step.Action, saga.PhaseCompensate, cause.Error())
		// Permanent compensation failure is always fatal; Finalize will
		// pick this up via s.Compensate.Status==PermanentFailure.
		return nil
	}

	o.emit(saga.EventStepFailure, flow, step.Action, saga.PhaseInvoke, cause.Error())
	if step.Definition.ContinueOnPermanentFailure {
		for _, id := range flow.Descendants(step.ID) {
			child := flow.Steps[id]
			if child.Invoke.State == saga.StateNotStarted {
				if err := transitionState(&child.Invoke, saga.StateSkipped); err != nil {
					return err
				}
				o.emit(saga.EventStepSkipped, flow, child.Action, saga.PhaseInvoke, "")
			}
		}
		return nil
	}

	if flow.State == saga.TxInvoking {
		return flow.TransitionState(saga.TxWaitingToCompensate, now)
	}
	return nil
}

func transitionState(ps *saga.PhaseState, next saga.StepState) error {
	if !saga.StepStateTransitions.CanTransition(ps.State, next) {
		return saga.ErrInvalidTransition
	}
	ps.State = next
	return nil
}

func transitionStatus(ps *saga.PhaseState, next saga.StepStatus) error {
	if !saga.CanTransitionStatus(ps.Status, next) {
		return saga.ErrInvalidTransition
	}
	ps.Status = next
	return nil
}

func addSeconds(epochMs int64, seconds int64) int64 { return epochMs + seconds*1000 }
