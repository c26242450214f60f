// Package orchestrator drives one registered model's transactions
// through the scheduling/execution/outcome/timer/cancellation machinery
// spec.md §4 describes, against the pluggable storage.Storage contract.
// It holds no per-transaction mutable state of its own; every mutation
// lives on the *saga.Flow loaded for the duration of one call (spec §3
// "Ownership", §5 "Shared resources").
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kode4food/txsaga/internal/eventbus"
	"github.com/kode4food/txsaga/internal/storage"
	"github.com/kode4food/txsaga/pkg/saga"
	"github.com/kode4food/txsaga/pkg/slogx"
)

// ModelOptions configures one Orchestrator's transactions, matching spec
// §6 "Model options".
type ModelOptions struct {
	Timeout        time.Duration
	StoreExecution bool // zero value false = fire-and-forget, no checkpoints
	RetentionTime  time.Duration
	Idempotent     bool

	DefaultMaxRetries    int
	DefaultRetryInterval time.Duration
}

// Orchestrator is bound to exactly one model id; one value is safe to
// share across many concurrent transactions of that model.
type Orchestrator struct {
	model   saga.ModelID
	def     *saga.Definition
	handler saga.StepHandler
	store   storage.Storage
	bus     *eventbus.Bus
	opts    ModelOptions
	log     *slog.Logger
}

// New constructs an Orchestrator for model, validating that async steps
// are only used when checkpoints are enabled.
func New(
	model saga.ModelID, def *saga.Definition, handler saga.StepHandler,
	store storage.Storage, bus *eventbus.Bus, opts ModelOptions, log *slog.Logger,
) (*Orchestrator, error) {
	if !opts.StoreExecution && hasAsyncStep(def) {
		return nil, ErrAsyncWithoutStorage
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		model: model, def: def, handler: handler,
		store: store, bus: bus, opts: opts, log: log,
	}, nil
}

// applyStepDefaults fills in a freshly built flow's per-step MaxRetries/
// RetryIntervalSeconds from the model's defaults wherever a step
// definition left them at the zero value, matching the teacher's
// config.go doc comment ("applied when a step definition omits them").
// A step that explicitly wants zero retries has no way to distinguish
// itself from "omitted" under this scheme; spec §3 treats 0 as a valid
// explicit choice only when the model itself defaults to 0.
func (o *Orchestrator) applyStepDefaults(flow *saga.Flow) {
	for id, s := range flow.Steps {
		if id == saga.RootAction {
			continue
		}
		if s.Definition.MaxRetries == 0 && o.opts.DefaultMaxRetries > 0 {
			s.Definition.MaxRetries = o.opts.DefaultMaxRetries
		}
		if s.Definition.RetryIntervalSeconds == 0 && o.opts.DefaultRetryInterval > 0 {
			s.Definition.RetryIntervalSeconds = int64(o.opts.DefaultRetryInterval.Seconds())
		}
	}
}

func hasAsyncStep(def *saga.Definition) bool {
	if def.Async || def.CompensateAsync {
		return true
	}
	for _, child := range def.Next {
		if hasAsyncStep(child) {
			return true
		}
	}
	return false
}

// GetTransaction loads the current Flow for tx without advancing it.
func (o *Orchestrator) GetTransaction(ctx context.Context, tx saga.TransactionID) (*saga.Flow, error) {
	cp, err := o.store.Get(ctx, o.model, tx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return cp.Flow, nil
}

func (o *Orchestrator) now() int64 { return time.Now().UnixMilli() }

// checkpoint persists flow's current state, or deletes/archives it when
// terminal, per spec §6's delete-unless-retained rule.
func (o *Orchestrator) checkpoint(ctx context.Context, flow *saga.Flow, flowCtx json.RawMessage) error {
	if !o.opts.StoreExecution {
		return nil
	}
	if saga.TransactionStateTransitions.IsTerminal(flow.State) {
		if o.opts.RetentionTime > 0 {
			return o.store.Archive(ctx, o.model, flow.TransactionID,
				&saga.Checkpoint{Flow: flow, Context: flowCtx},
				storage.ArchiveOptions{RetentionTime: o.opts.RetentionTime})
		}
		return o.store.Delete(ctx, o.model, flow.TransactionID)
	}
	return o.store.Save(ctx, o.model, flow.TransactionID,
		&saga.Checkpoint{Flow: flow, Context: flowCtx}, 0)
}

func (o *Orchestrator) emit(typ saga.EventType, flow *saga.Flow, action saga.ActionName, phase saga.Phase, msg string) {
	if o.bus == nil {
		return
	}
	o.bus.Emit(saga.Event{
		Type: typ, ModelID: o.model, TransactionID: flow.TransactionID,
		Action: action, Phase: phase, State: string(flow.State),
		Message: msg, At: o.now(),
	})
}

func (o *Orchestrator) logStep(msg string, tx saga.TransactionID, step *saga.Step, extra ...slog.Attr) {
	attrs := append([]slog.Attr{
		slogx.TxID(tx), slogx.StepID(step.ID), slogx.Action(step.Action),
	}, extra...)
	o.log.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}

func wrapf(format string, err error) error {
	return fmt.Errorf(format+": %w", err)
}
