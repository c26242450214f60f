package saga

import "strings"

type (
	// ModelID identifies a registered step-definition topology
	ModelID string

	// TransactionID identifies one saga execution of a model
	TransactionID string

	// ActionName is the user-assigned name of a step, unique within a flow
	ActionName string

	// StepID is a step's path within the flow, e.g. "_root.reserve.charge"
	StepID string

	// Phase is either invoke (forward) or compensate (rollback)
	Phase string
)

const (
	PhaseInvoke     Phase = "invoke"
	PhaseCompensate Phase = "compensate"

	// RootAction is the synthetic root of every step tree; it has no action
	// name of its own and is never scheduled for execution.
	RootAction StepID = "_root"

	idSeparator = "."
)

// ChildID computes the id of action under parent:
// id == "<parent.id>.<action>".
func ChildID(parent StepID, action ActionName) StepID {
	return StepID(string(parent) + idSeparator + string(action))
}

// IdempotencyKey builds the key embedded in a TransactionPayload's metadata
// and later presented back to registerStepSuccess/registerStepFailure.
func IdempotencyKey(tx TransactionID, action ActionName, phase Phase) string {
	return string(tx) + ":" + string(action) + ":" + string(phase)
}

// ParseIdempotencyKey splits a key produced by IdempotencyKey. The
// separator is ':' per spec §6; action names must not contain it.
func ParseIdempotencyKey(key string) (TransactionID, ActionName, Phase, bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		return "", "", "", false
	}
	phase := Phase(parts[2])
	if phase != PhaseInvoke && phase != PhaseCompensate {
		return "", "", "", false
	}
	return TransactionID(parts[0]), ActionName(parts[1]), phase, true
}

// ReplyTopic is the metadata.reply_to_topic value for a given model.
func ReplyTopic(model ModelID) string {
	return "trans:" + string(model)
}
