package orchestrator

import "github.com/kode4food/txsaga/pkg/saga"

// passResult is the outcome of one checkAllSteps pass (spec §4.3).
type passResult struct {
	next       []saga.StepID
	total      int
	completed  int
	hasWaiting bool
}

// readyToInvoke reports whether step's invoke phase should be dispatched
// this pass: either it is NOT_STARTED and its parent's generation gate
// has cleared, or it is mid-INVOKING with a TEMPORARY_FAILURE status and
// no storage-scheduled retry pending (immediate re-dispatch, spec §4.5's
// "no retryInterval" branch).
func readyToInvoke(flow *saga.Flow, id saga.StepID, s *saga.Step) bool {
	switch {
	case s.Invoke.State == saga.StateNotStarted:
		return flow.CanMoveForward(id)
	case s.Invoke.State == saga.StateInvoking && s.Invoke.Status == saga.StatusIdle:
		// scheduleRetry's timer fired and reset status to IDLE.
		return true
	case s.Invoke.State == saga.StateInvoking && s.Invoke.Status == saga.StatusTemporaryFailure:
		// no retryInterval configured: re-dispatch immediately.
		return s.Definition.RetryIntervalSeconds == 0
	default:
		return false
	}
}

// readyToCompensate is readyToInvoke's mirror for the compensate phase.
func readyToCompensate(flow *saga.Flow, id saga.StepID, s *saga.Step) bool {
	switch {
	case s.Compensate.State == saga.StateNotStarted:
		return flow.CanMoveBackward(id)
	case s.Compensate.State == saga.StateCompensating && s.Compensate.Status == saga.StatusIdle:
		return true
	case s.Compensate.State == saga.StateCompensating && s.Compensate.Status == saga.StatusTemporaryFailure:
		return s.Definition.RetryIntervalSeconds == 0
	default:
		return false
	}
}

// invokeTerminal reports whether a step's invoke phase has reached a
// state that counts it as "completed" for this pass's purposes.
func invokeTerminal(s *saga.Step) bool {
	switch s.Invoke.State {
	case saga.StateDone, saga.StateFailed, saga.StateSkipped:
		return true
	default:
		return false
	}
}

func compensateTerminal(s *saga.Step) bool {
	switch s.Compensate.State {
	case saga.StateReverted, saga.StateFailed, saga.StateDormant:
		return true
	default:
		return false
	}
}

// checkAllSteps runs one scheduling pass over flow and returns the steps
// eligible to dispatch next, per spec §4.3. It does not itself decide
// finalization; its caller (driveToStall) acts on the returned passResult.
func (o *Orchestrator) checkAllSteps(flow *saga.Flow) passResult {
	compensating := flow.State == saga.TxCompensating
	order := flow.InvokeOrder()
	if compensating {
		order = flow.CompensateOrder()
	}

	var res passResult
	for _, id := range order {
		s, ok := flow.Steps[id]
		if !ok {
			continue
		}
		res.total++

		active := s.Invoke
		if compensating && s.StepFailed {
			active = s.Compensate
		}
		if active.Status == saga.StatusWaiting {
			res.hasWaiting = true
			continue
		}

		if compensating {
			if s.StepFailed && readyToCompensate(flow, id, s) {
				res.next = append(res.next, id)
				continue
			}
			if s.StepFailed && compensateTerminal(s) {
				res.completed++
			} else if !s.StepFailed {
				// never invoked (e.g. SKIPPED ancestor's descendant);
				// nothing to compensate, treat as completed.
				res.completed++
			}
			continue
		}

		if !s.StepFailed && readyToInvoke(flow, id, s) {
			res.next = append(res.next, id)
			continue
		}
		if invokeTerminal(s) {
			res.completed++
		}
	}
	return res
}
