package saga

// BuildSteps walks a Definition tree breadth-first, assigning each node a
// StepID via ChildID and collecting it into flow.Steps, exactly as the
// teacher's buildSteps does for its attribute graph (internal/engine
// topology construction) — generalized here to the invoke/compensate
// step model. Root's direct children are recorded in flow.RootNext.
//
// Duplicate action names anywhere in the tree are rejected with
// ErrDuplicateAction: action names must be unique within a flow, since
// external completion addresses steps by action alone.
func BuildSteps(flow *Flow, root *Definition) error {
	seen := map[ActionName]StepID{}
	type queued struct {
		parent StepID
		depth  int
		def    *Definition
	}

	var rootNext []StepID
	queue := make([]queued, 0, len(root.Next))
	for _, child := range root.Next {
		queue = append(queue, queued{parent: RootAction, depth: 0, def: child})
	}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		def := item.def
		if def.Action == "" {
			return ErrStepNotFound
		}
		if _, dup := seen[def.Action]; dup {
			return ErrDuplicateAction
		}

		id := ChildID(item.parent, def.Action)
		seen[def.Action] = id

		policy := def.StepDefinition
		step := NewStep(id, def.Action, item.depth, nil, policy)
		flow.Steps[id] = step

		if item.parent == RootAction {
			rootNext = append(rootNext, id)
		} else {
			parentStep := flow.Steps[item.parent]
			parentStep.Next = append(parentStep.Next, id)
		}

		for _, child := range def.Next {
			queue = append(queue, queued{parent: id, depth: item.depth + 1, def: child})
		}
	}

	flow.RootNext = rootNext
	flow.deriveFlags()
	return nil
}

// Rehydrate rebuilds a Flow's topology from its original Definition while
// preserving the runtime fields (state, attempts, response, ...) already
// recorded on matching steps. Used when resuming a checkpointed
// transaction whose Definition is re-supplied by the caller rather than
// persisted verbatim (spec §6: checkpoints store the flow, not the
// original authoring tree).
func Rehydrate(flow *Flow, root *Definition) error {
	prior := flow.Steps
	flow.Steps = map[StepID]*Step{}
	if err := BuildSteps(flow, root); err != nil {
		flow.Steps = prior
		return err
	}
	for id, fresh := range flow.Steps {
		if old, ok := prior[id]; ok {
			fresh.Invoke = old.Invoke
			fresh.Compensate = old.Compensate
			fresh.Attempts = old.Attempts
			fresh.Failures = old.Failures
			fresh.LastAttempt = old.LastAttempt
			fresh.StartedAt = old.StartedAt
			fresh.Response = old.Response
			fresh.StepFailed = old.StepFailed
		}
	}
	return nil
}
