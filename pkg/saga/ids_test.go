package saga

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChildID(t *testing.T) {
	assert.Equal(t, StepID("_root.a"), ChildID(RootAction, "a"))
	assert.Equal(t, StepID("_root.a.b"), ChildID("_root.a", "b"))
}

func TestIdempotencyKeyRoundTrip(t *testing.T) {
	key := IdempotencyKey("tx-1", "charge", PhaseInvoke)
	assert.Equal(t, "tx-1:charge:invoke", key)

	tx, action, phase, ok := ParseIdempotencyKey(key)
	assert.True(t, ok)
	assert.Equal(t, TransactionID("tx-1"), tx)
	assert.Equal(t, ActionName("charge"), action)
	assert.Equal(t, PhaseInvoke, phase)
}

func TestParseIdempotencyKeyRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"tx-1:charge",
		"tx-1:charge:invoke:extra",
		"tx-1:charge:sideways",
	}
	for _, c := range cases {
		_, _, _, ok := ParseIdempotencyKey(c)
		assert.False(t, ok, c)
	}
}

func TestReplyTopic(t *testing.T) {
	assert.Equal(t, "trans:order", ReplyTopic("order"))
}
