package storage

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// NewTestStorage spins up a miniredis instance and returns a RedisStorage
// backed by it, plus a cleanup func, exactly as the teacher's
// internal/assert/helpers.NewTestEngine wires an in-memory Redis for
// engine tests without a live server.
func NewTestStorage(t *testing.T) (*RedisStorage, func()) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	store := NewRedisStorage(client, "test-txsaga")

	cleanup := func() {
		_ = store.Close()
		server.Close()
	}
	return store, cleanup
}
