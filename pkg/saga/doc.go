// Package saga defines the step/flow data model of the distributed
// transaction orchestrator: the DAG of named actions, their per-transaction
// runtime state, and the state machines that constrain how that state may
// change. It has no knowledge of storage, transport, or scheduling — those
// live in internal/orchestrator and internal/storage, built on top of the
// types here.
package saga
