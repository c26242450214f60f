package orchestrator

import "errors"

var (
	// ErrAsyncWithoutStorage is returned by New when a model's definition
	// tree contains an async/compensateAsync step but StoreExecution is
	// false (spec §6: fire-and-forget mode rejects async at registration).
	ErrAsyncWithoutStorage = errors.New("orchestrator: async steps require storeExecution")

	// ErrTransactionNotFound is returned when no checkpoint exists for a
	// requested transaction id.
	ErrTransactionNotFound = errors.New("orchestrator: transaction not found")
)
