package orchestrator

import (
	"context"
	"sync"

	"github.com/kode4food/txsaga/pkg/saga"
)

// executeNext dispatches every step in ids in parallel, awaits their
// settlement, and applies the §4.5 outcome rules to each (spec §4.4).
// A step whose handler returns the async sentinel, or whose definition
// marks the current phase Async/CompensateAsync, is left WAITING; its
// outcome arrives later via registerStepSuccess/registerStepFailure.
func (o *Orchestrator) executeNext(ctx context.Context, flow *saga.Flow, ids []saga.StepID) error {
	var wg sync.WaitGroup
	errs := make([]error, len(ids))

	for i, id := range ids {
		step := flow.Steps[id]
		if err := o.dispatchOne(ctx, flow, step); err != nil {
			return err
		}
		wg.Add(1)
		go func(i int, s *saga.Step) {
			defer wg.Done()
			errs[i] = o.runAndSettle(ctx, flow, s)
		}(i, step)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// dispatchOne moves a step into its active INVOKING/COMPENSATING state,
// marks it WAITING, and bumps attempt bookkeeping — the synchronous part
// of spec §4.4 steps 1-3, done before any handler of the pass runs. No
// checkpoint is written here; the next one is saved after the pass settles.
func (o *Orchestrator) dispatchOne(ctx context.Context, flow *saga.Flow, step *saga.Step) error {
	now := o.now()
	step.LastAttempt = &now
	step.Attempts++
	if step.StartedAt == nil {
		step.StartedAt = &now
	}

	active := &step.Invoke
	beginState := saga.StateInvoking
	eventType := saga.EventStepBegin
	phase := saga.PhaseInvoke
	if step.StepFailed {
		active = &step.Compensate
		beginState = saga.StateCompensating
		eventType = saga.EventCompensateBegin
		phase = saga.PhaseCompensate
	}

	if active.State == saga.StateNotStarted {
		if err := transitionState(active, beginState); err != nil {
			return err
		}
	}
	if err := transitionStatus(active, saga.StatusWaiting); err != nil {
		return err
	}
	o.emit(eventType, flow, step.Action, phase, "")
	return o.scheduleStepTimeoutIfSet(ctx, flow, step)
}

func (o *Orchestrator) scheduleStepTimeoutIfSet(ctx context.Context, flow *saga.Flow, step *saga.Step) error {
	if step.Definition.TimeoutSeconds <= 0 {
		return nil
	}
	at := msToTime(addSeconds(o.now(), step.Definition.TimeoutSeconds))
	return o.store.ScheduleStepTimeout(ctx, o.model, flow.TransactionID, step.ID,
		at, secondsToDuration(step.Definition.TimeoutSeconds))
}

// runAndSettle invokes the step handler and applies the resulting
// success/failure/async outcome.
func (o *Orchestrator) runAndSettle(ctx context.Context, flow *saga.Flow, step *saga.Step) error {
	phase := saga.PhaseInvoke
	if step.StepFailed {
		phase = saga.PhaseCompensate
	}
	payload := o.buildPayload(flow, step, phase)

	result, err := o.handler(ctx, step.Action, phase, payload)
	if err != nil {
		return o.setStepFailure(ctx, flow, step, err)
	}
	outOfBand := result.Async ||
		(phase == saga.PhaseInvoke && step.Definition.Async) ||
		(phase == saga.PhaseCompensate && step.Definition.CompensateAsync)
	if outOfBand {
		o.emit(saga.EventStepAwaiting, flow, step.Action, phase, "")
		return o.checkpoint(ctx, flow, nil)
	}
	if err := o.setStepSuccess(ctx, flow, step, result.Response); err != nil {
		return err
	}
	return o.store.ClearStepTimeout(ctx, o.model, flow.TransactionID, step.ID)
}

// buildPayload assembles the TransactionPayload passed to a step's
// handler, injecting the parent's saved response under `_response` when
// forwardResponse is set on the parent (spec §4.4, §8 scenario 6).
func (o *Orchestrator) buildPayload(flow *saga.Flow, step *saga.Step, phase saga.Phase) saga.TransactionPayload {
	meta := saga.NewMetadata(o.model, flow.TransactionID, step.Action, phase, step.Attempts)
	body := flow.Input

	parent := flow.ParentStep(step.ID)
	if parent != nil && parent.Definition.ForwardResponse && len(parent.Response) > 0 {
		body = mergeResponse(body, parent.Response)
	}

	return saga.TransactionPayload{Metadata: meta, Body: body}
}
