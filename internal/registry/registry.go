// Package registry holds the write-once model-id -> step-definition
// mapping an Orchestrator binds to, adapted from the teacher's workflow
// registry (replacing its process-wide global with an explicit value
// threaded through construction, per spec.md §9's design note on global
// singletons).
package registry

import (
	"errors"
	"reflect"
	"sync"

	"github.com/kode4food/txsaga/pkg/saga"
)

var (
	// ErrAlreadyRegistered is returned when Register is called twice for
	// the same model id with a structurally different definition.
	ErrAlreadyRegistered = errors.New("registry: model already registered with a different definition")
	ErrUnknownModel      = errors.New("registry: unknown model id")
)

// Registry maps a ModelID to the Definition tree and handler it was
// registered with. One Registry is safe to share across many concurrent
// Orchestrators and transactions (spec §5's "Shared resources").
type Registry struct {
	entries sync.Map // saga.ModelID -> *entry
}

type entry struct {
	def     *saga.Definition
	handler saga.StepHandler
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Register binds model to def/handler. A second call for the same model
// id succeeds as a no-op only if def is structurally equal to what was
// registered first (reflect.DeepEqual, mirroring the teacher's Equal()
// deep-equality helper pattern); otherwise it returns
// ErrAlreadyRegistered.
func (r *Registry) Register(model saga.ModelID, def *saga.Definition, handler saga.StepHandler) error {
	e := &entry{def: def, handler: handler}
	actual, loaded := r.entries.LoadOrStore(model, e)
	if !loaded {
		return nil
	}
	existing := actual.(*entry)
	if !reflect.DeepEqual(existing.def, def) {
		return ErrAlreadyRegistered
	}
	return nil
}

// Lookup returns the definition and handler registered for model.
func (r *Registry) Lookup(model saga.ModelID) (*saga.Definition, saga.StepHandler, error) {
	actual, ok := r.entries.Load(model)
	if !ok {
		return nil, nil, ErrUnknownModel
	}
	e := actual.(*entry)
	return e.def, e.handler, nil
}
