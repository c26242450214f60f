package orchestrator

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kode4food/txsaga/internal/storage"
	"github.com/kode4food/txsaga/pkg/saga"
	"github.com/kode4food/txsaga/pkg/slogx"
)

// Runner fans a single Storage's fired-timer stream out to the
// Orchestrator registered for each event's ModelID, since one storage
// backend (and its timer sorted sets) is shared across every model a
// service hosts.
type Runner struct {
	store storage.Storage
	log   *slog.Logger

	mu            sync.RWMutex
	orchestrators map[saga.ModelID]*Orchestrator
}

// NewRunner constructs a Runner over store.
func NewRunner(store storage.Storage, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		store:         store,
		log:           log,
		orchestrators: map[saga.ModelID]*Orchestrator{},
	}
}

// Register binds model's Orchestrator so timers addressed to it are
// routed correctly.
func (r *Runner) Register(model saga.ModelID, o *Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orchestrators[model] = o
}

// Get returns the Orchestrator registered for model, if any, letting an
// HTTP surface share the same model-to-Orchestrator binding the Runner
// uses to route fired timers.
func (r *Runner) Get(model saga.ModelID) (*Orchestrator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orchestrators[model]
	return o, ok
}

// Run drains Storage.Timers() until ctx is cancelled or the channel
// closes, dispatching each event to its model's Orchestrator.
func (r *Runner) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.store.Timers():
			if !ok {
				return
			}
			r.dispatch(ctx, ev)
		}
	}
}

func (r *Runner) dispatch(ctx context.Context, ev storage.TimerEvent) {
	r.mu.RLock()
	o, ok := r.orchestrators[ev.ModelID]
	r.mu.RUnlock()
	if !ok {
		r.log.Warn("timer fired for unregistered model", slogx.ModelID(ev.ModelID))
		return
	}
	if _, err := o.HandleTimer(ctx, ev); err != nil {
		r.log.Error("timer handling failed",
			slogx.ModelID(ev.ModelID), slogx.TxID(ev.TransactionID), slogx.Error(err))
	}
}
