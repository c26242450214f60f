// Package storage implements the durable Storage contract checkpoints and
// timers are built on: get/list/save/delete/archive the current
// Checkpoint for a transaction, and schedule/clear the three timer kinds
// the orchestrator never tracks itself (retry, step timeout, transaction
// timeout).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/kode4food/txsaga/pkg/saga"
)

// TimerKind distinguishes the three timer families a Storage schedules.
type TimerKind string

const (
	TimerRetry              TimerKind = "retry"
	TimerStepTimeout        TimerKind = "step_timeout"
	TimerTransactionTimeout TimerKind = "transaction_timeout"
)

// TimerEvent is delivered on Storage.Timers() when a previously scheduled
// timer fires. The orchestrator reacts per spec §4.7: reload the
// transaction, check the target is still in the state the timer assumed,
// and act (resume, force a permanent failure, or flip to IDLE).
type TimerEvent struct {
	Kind          TimerKind
	ModelID       saga.ModelID
	TransactionID saga.TransactionID
	StepID        saga.StepID // empty for TimerTransactionTimeout
}

// ArchiveOptions configures how a terminal checkpoint is retained instead
// of deleted, per spec §6 model option retentionTime.
type ArchiveOptions struct {
	RetentionTime time.Duration
}

var (
	ErrNotFound    = errors.New("storage: checkpoint not found")
	ErrLockHeld    = errors.New("storage: lock already held")
	ErrLockExpired = errors.New("storage: lock token expired or not owned")
)

// Unlock releases a per-(modelID, transactionID) lock acquired by Lock.
type Unlock func(ctx context.Context) error

// Storage is the pluggable durability contract the Orchestrator drives
// every transaction through. Implementations must provide per-key mutual
// exclusion for the load -> mutate -> checkpoint -> release sequence used
// by external completion and timer callbacks (spec §5).
type Storage interface {
	Get(ctx context.Context, model saga.ModelID, tx saga.TransactionID) (*saga.Checkpoint, error)
	List(ctx context.Context, model saga.ModelID) ([]*saga.Checkpoint, error)
	Save(ctx context.Context, model saga.ModelID, tx saga.TransactionID, cp *saga.Checkpoint, ttl time.Duration) error
	Delete(ctx context.Context, model saga.ModelID, tx saga.TransactionID) error
	Archive(ctx context.Context, model saga.ModelID, tx saga.TransactionID, cp *saga.Checkpoint, opts ArchiveOptions) error

	ScheduleRetry(ctx context.Context, model saga.ModelID, tx saga.TransactionID, step saga.StepID, at time.Time, interval time.Duration) error
	ScheduleStepTimeout(ctx context.Context, model saga.ModelID, tx saga.TransactionID, step saga.StepID, at time.Time, interval time.Duration) error
	ScheduleTransactionTimeout(ctx context.Context, model saga.ModelID, tx saga.TransactionID, at time.Time, interval time.Duration) error

	ClearRetry(ctx context.Context, model saga.ModelID, tx saga.TransactionID, step saga.StepID) error
	ClearStepTimeout(ctx context.Context, model saga.ModelID, tx saga.TransactionID, step saga.StepID) error
	ClearTransactionTimeout(ctx context.Context, model saga.ModelID, tx saga.TransactionID) error

	// Lock serializes concurrent load/mutate/save sequences for one
	// (modelID, transactionID). Callers must invoke the returned Unlock
	// exactly once.
	Lock(ctx context.Context, model saga.ModelID, tx saga.TransactionID) (Unlock, error)

	// Timers delivers fired timer events. Implementations close it on
	// Close.
	Timers() <-chan TimerEvent

	Close() error
}
