package saga

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

type (
	// Metadata rides alongside a step's request/response body and carries
	// the routing and idempotency information an external step handler
	// needs to reply correctly (spec §6).
	Metadata struct {
		ModelID        ModelID       `json:"model_id"`
		TransactionID  TransactionID `json:"transaction_id"`
		Action         ActionName    `json:"action"`
		Phase          Phase         `json:"phase"`
		IdempotencyKey string        `json:"idempotency_key"`
		ReplyToTopic   string        `json:"reply_to_topic"`
		Attempt        int           `json:"attempt"`
	}

	// TransactionPayload is the envelope sent to a step's invoke or
	// compensate handler. Body is left as raw JSON
	// (matching the teacher's use of gjson for loosely-typed payload
	// access instead of a fixed schema) so callers can query arbitrary
	// paths without a generated type per action.
	TransactionPayload struct {
		Metadata Metadata        `json:"metadata"`
		Body     json.RawMessage `json:"body,omitempty"`
	}
)

// NewMetadata builds the Metadata envelope for one invocation attempt.
func NewMetadata(model ModelID, tx TransactionID, action ActionName, phase Phase, attempt int) Metadata {
	return Metadata{
		ModelID:        model,
		TransactionID:  tx,
		Action:         action,
		Phase:          phase,
		IdempotencyKey: IdempotencyKey(tx, action, phase),
		ReplyToTopic:   ReplyTopic(model),
		Attempt:        attempt,
	}
}

// Get queries the payload body with a gjson path, matching the teacher's
// use of tidwall/gjson for ad hoc, schema-less payload access rather than
// unmarshalling into a concrete struct per call site.
func (p TransactionPayload) Get(path string) gjson.Result {
	return gjson.GetBytes(p.Body, path)
}

// GetFrom queries an arbitrary JSON document by path, such as a step's
// saved Response.
func GetFrom(doc json.RawMessage, path string) gjson.Result {
	return gjson.GetBytes(doc, path)
}
