// Package builder is a deliberately thin authoring layer over pkg/saga:
// copy-on-write Step builders that assemble a saga.Definition tree plus a
// saga.StepHandler map, ready to hand to a Registry. It adds no behavior
// the core doesn't already define (spec.md §9: the DSL is authoring-time
// sugar, out of CORE scope, except as the saga.Definition/StepHandler
// interface the core exposes).
package builder

import "github.com/kode4food/txsaga/pkg/saga"

// Step is a builder for one node of a Definition tree. Every With* method
// returns a modified copy, leaving the receiver untouched, matching the
// teacher's `res := *f; ...; return &res` builder idiom.
type Step struct {
	action  saga.ActionName
	next    []*Step
	policy  saga.StepDefinition
	handler saga.StepHandler
}

// NewStep starts a builder for action, defaulting its policy (SaveResponse
// true, everything else off).
func NewStep(action saga.ActionName) *Step {
	return &Step{action: action, policy: saga.DefaultStepDefinition()}
}

// Then appends children, executed after this step completes.
func (s *Step) Then(children ...*Step) *Step {
	res := *s
	res.next = make([]*Step, len(s.next)+len(children))
	copy(res.next, s.next)
	copy(res.next[len(s.next):], children)
	return &res
}

// WithHandler attaches the function invoked for this action's invoke and
// compensate phases.
func (s *Step) WithHandler(h saga.StepHandler) *Step {
	res := *s
	res.handler = h
	return &res
}

// WithMaxRetries sets the step's retry budget.
func (s *Step) WithMaxRetries(n int) *Step {
	res := *s
	res.policy.MaxRetries = n
	return &res
}

// WithRetryInterval sets the delay, in seconds, storage.ScheduleRetry
// waits before re-dispatching after a temporary failure.
func (s *Step) WithRetryInterval(seconds int64) *Step {
	res := *s
	res.policy.RetryIntervalSeconds = seconds
	return &res
}

// WithTimeout sets the step's handler timeout, in seconds.
func (s *Step) WithTimeout(seconds int64) *Step {
	res := *s
	res.policy.TimeoutSeconds = seconds
	return &res
}

// Async marks the step's invoke phase as completing out-of-band via
// registerStepSuccess/registerStepFailure.
func (s *Step) Async() *Step {
	res := *s
	res.policy.Async = true
	return &res
}

// CompensateAsync marks the compensate phase as completing out-of-band.
func (s *Step) CompensateAsync() *Step {
	res := *s
	res.policy.CompensateAsync = true
	return &res
}

// NoWait lets this step's children dispatch without waiting for its
// siblings to settle (spec §4.2, §8 scenario 8).
func (s *Step) NoWait() *Step {
	res := *s
	res.policy.NoWait = true
	return &res
}

// NoCompensation exempts this step from rollback.
func (s *Step) NoCompensation() *Step {
	res := *s
	res.policy.NoCompensation = true
	return &res
}

// ContinueOnPermanentFailure lets the flow proceed (skipping descendants)
// instead of rolling back when this step permanently fails.
func (s *Step) ContinueOnPermanentFailure() *Step {
	res := *s
	res.policy.ContinueOnPermanentFailure = true
	return &res
}

// ForwardResponse injects this step's saved response as `_response` into
// its children's payloads.
func (s *Step) ForwardResponse() *Step {
	res := *s
	res.policy.ForwardResponse = true
	return &res
}

// DontSaveResponse opts out of the (default-on) response retention.
func (s *Step) DontSaveResponse() *Step {
	res := *s
	res.policy.SaveResponse = false
	return &res
}

func (s *Step) toDefinition() *saga.Definition {
	d := &saga.Definition{Action: s.action, StepDefinition: s.policy}
	for _, c := range s.next {
		d.Next = append(d.Next, c.toDefinition())
	}
	return d
}

func (s *Step) collectHandlers(into map[saga.ActionName]saga.StepHandler) {
	if s.handler != nil {
		into[s.action] = s.handler
	}
	for _, c := range s.next {
		c.collectHandlers(into)
	}
}
