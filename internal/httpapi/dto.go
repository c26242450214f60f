package httpapi

import "github.com/kode4food/txsaga/pkg/saga"

// ErrorResponse is the JSON body returned for every non-2xx response,
// matching the teacher's api.ErrorResponse shape.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// BeginTransactionRequest is the body of POST /models/:model/transactions.
type BeginTransactionRequest struct {
	TransactionID saga.TransactionID `json:"transaction_id" binding:"required"`
	Input         any                `json:"input"`
}

// TransactionStartedResponse is returned on a successful begin.
type TransactionStartedResponse struct {
	TransactionID saga.TransactionID    `json:"transaction_id"`
	State         saga.TransactionState `json:"state"`
}

// StepOutcomeRequest is the body of the success/failure registration
// endpoints.
type StepOutcomeRequest struct {
	Response  any    `json:"response,omitempty"`
	Error     string `json:"error,omitempty"`
	Permanent bool   `json:"permanent,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
