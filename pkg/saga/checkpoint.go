package saga

import "encoding/json"

// Checkpoint is the unit of durable state a Storage implementation
// persists per spec §6: the flow itself plus bookkeeping needed to
// resume after a crash without replaying handler side effects. Context
// carries caller-supplied opaque data threaded through the whole
// transaction (e.g. a tenant id), distinct from any one step's Response.
type Checkpoint struct {
	Flow    *Flow           `json:"flow"`
	Context json.RawMessage `json:"context,omitempty"`
}

// Marshal encodes a Checkpoint for storage. Kept as a named method
// (rather than calling json.Marshal directly at call sites) so Storage
// implementations share one encoding decision point.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// UnmarshalCheckpoint decodes a Checkpoint previously produced by
// Marshal. Round-trips byte-for-byte equal Flow/Context on any value
// Marshal can produce.
func UnmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
