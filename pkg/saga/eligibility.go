package saga

// InvokeOrder returns step ids in breadth-first order starting from
// flow.RootNext, matching the order BuildSteps discovered them. The
// scheduler walks this order each pass looking for steps eligible to
// start (spec §4.2): a step's parent (or root) must be DONE, FAILED or
// SKIPPED, or be flagged noWait, before it may begin invoking.
func (f *Flow) InvokeOrder() []StepID {
	order := make([]StepID, 0, len(f.Steps))
	visited := map[StepID]bool{}
	queue := append([]StepID{}, f.RootNext...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		order = append(order, id)
		if s, ok := f.Steps[id]; ok {
			queue = append(queue, s.Next...)
		}
	}
	return order
}

// CompensateOrder returns step ids in reverse of InvokeOrder: compensation
// unwinds leaves first, root-adjacent steps last (spec §4.3).
func (f *Flow) CompensateOrder() []StepID {
	fwd := f.InvokeOrder()
	rev := make([]StepID, len(fwd))
	for i, id := range fwd {
		rev[len(fwd)-1-i] = id
	}
	return rev
}

// parentOf returns the id of the step (or RootAction) whose Next list
// contains id, or "" if id is unknown.
func (f *Flow) parentOf(id StepID) StepID {
	for _, r := range f.RootNext {
		if r == id {
			return RootAction
		}
	}
	for pid, s := range f.Steps {
		for _, n := range s.Next {
			if n == id {
				return pid
			}
		}
	}
	return ""
}

// siblingsOf returns the ids sharing id's parent, id included, in the
// order BuildSteps discovered them (root's children when parent is root).
func (f *Flow) siblingsOf(id StepID) []StepID {
	parent := f.parentOf(id)
	if parent == RootAction || parent == "" {
		return f.RootNext
	}
	if ps, ok := f.Steps[parent]; ok {
		return ps.Next
	}
	return nil
}

// canMoveForwardPast reports whether a generation gate (spec §4.2,
// `canMoveForward(flow, previous)`) has cleared for `previous`: either
// previous is flagged noWait, or every sibling under previous's own
// parent has finished invoking ({DONE, FAILED, SKIPPED}). Root itself is
// always a valid predecessor.
func (f *Flow) canMoveForwardPast(previous StepID) bool {
	if previous == RootAction || previous == "" {
		return true
	}
	ps, ok := f.Steps[previous]
	if !ok {
		return false
	}
	if ps.Definition.NoWait {
		return true
	}
	for _, sibID := range f.siblingsOf(previous) {
		sib, ok := f.Steps[sibID]
		if !ok {
			continue
		}
		switch sib.Invoke.State {
		case StateDone, StateFailed, StateSkipped:
			continue
		default:
			return false
		}
	}
	return true
}

// CanMoveForward reports whether step id's invoke phase may transition
// from NOT_STARTED to INVOKING: its parent must be root, or have reached
// a terminal invoke state, or be flagged noWait; and the parent's own
// generation gate (canMoveForwardPast) must have cleared. A noWait parent
// lets its children dispatch before it and its siblings finish (spec §8
// scenario 8).
func (f *Flow) CanMoveForward(id StepID) bool {
	s, ok := f.Steps[id]
	if !ok || s.Invoke.State != StateNotStarted {
		return false
	}
	parent := f.parentOf(id)
	if parent == RootAction || parent == "" {
		return true
	}
	ps, ok := f.Steps[parent]
	if !ok {
		return false
	}
	switch ps.Invoke.State {
	case StateDone, StateFailed, StateSkipped:
	default:
		if !ps.Definition.NoWait {
			return false
		}
	}
	return f.canMoveForwardPast(parent)
}

// CanMoveBackward reports whether step id is eligible to begin
// compensating (spec §4.2 `canMoveBackward`): its invoke phase must have
// settled DONE or FAILED (spec §4.3 arms both for beginCompensation), it
// must not be flagged NoCompensation, and every child must already be
// terminal from compensation's point of view — REVERTED, FAILED, DONE,
// or still DORMANT (never armed: not invoked, or exempt via
// NoCompensation).
func (f *Flow) CanMoveBackward(id StepID) bool {
	s, ok := f.Steps[id]
	if !ok || s.Definition.NoCompensation {
		return false
	}
	switch s.Invoke.State {
	case StateDone, StateFailed:
	default:
		return false
	}
	if s.Compensate.State != StateNotStarted {
		return false
	}
	for _, childID := range s.Next {
		child, ok := f.Steps[childID]
		if !ok {
			continue
		}
		switch child.Compensate.State {
		case StateDone, StateReverted, StateFailed, StateDormant:
			continue
		default:
			return false
		}
	}
	return true
}

// CanContinue reports whether the flow as a whole still has eligible
// work: some step can move forward or move backward. Steps WAITING on an
// external completion are not counted. The orchestrator's scheduler does
// not call it.
func (f *Flow) CanContinue() bool {
	for id := range f.Steps {
		if f.CanMoveForward(id) || f.CanMoveBackward(id) {
			return true
		}
	}
	return false
}

// ParentStep returns the Step whose Next list contains id, or nil if id
// is a root child or unknown.
func (f *Flow) ParentStep(id StepID) *Step {
	parent := f.parentOf(id)
	if parent == RootAction || parent == "" {
		return nil
	}
	return f.Steps[parent]
}

// Descendants returns every step id reachable from id via Next edges,
// not including id itself.
func (f *Flow) Descendants(id StepID) []StepID {
	var out []StepID
	s, ok := f.Steps[id]
	if !ok {
		return out
	}
	queue := append([]StepID{}, s.Next...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		if cs, ok := f.Steps[cur]; ok {
			queue = append(queue, cs.Next...)
		}
	}
	return out
}

// PendingExternal returns the ids of steps whose active phase is
// WAITING on an external registerStepSuccess/registerStepFailure call.
func (f *Flow) PendingExternal() []StepID {
	var pending []StepID
	for id, s := range f.Steps {
		if s.GetStates().Status == StatusWaiting {
			pending = append(pending, id)
		}
	}
	return pending
}
