package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newIntegrationStore connects to the Redis instance named by REDIS_ADDR
// (default localhost:6379) and skips the test when none is reachable, so
// the suite stays green on machines without a local Redis.
func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := New(ctx, Config{Addr: addr, DialTimeout: time.Second})
	if err != nil {
		t.Skipf("no reachable Redis at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newIntegrationStore(t)

	key := "test:" + t.Name()
	defer s.Delete(ctx, key)

	require.NoError(t, s.Set(ctx, key, []byte("value1")))

	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value1"), got)

	require.NoError(t, s.Delete(ctx, key))

	_, ok, err = s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMissingKey(t *testing.T) {
	s := newIntegrationStore(t)
	val, ok, err := s.Get(context.Background(), "test:never-written")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestTTLExpiresEntries(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	s, err := New(ctx, Config{Addr: addr, DialTimeout: time.Second, TTL: time.Second})
	if err != nil {
		t.Skipf("no reachable Redis at %s: %v", addr, err)
	}
	defer s.Close()

	key := "test:" + t.Name()
	require.NoError(t, s.Set(context.Background(), key, []byte("ephemeral")))

	time.Sleep(1500 * time.Millisecond)

	_, ok, err := s.Get(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok, "entry should have expired via TTL")
}

func TestConfigRequiresAddr(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}
