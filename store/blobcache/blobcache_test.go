package blobcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })
	return NewWithBucket(bucket, "", time.Second)
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Set(ctx, "key1", []byte("value1")))

	got, ok, err := s.Get(ctx, "key1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value1"), got)

	require.NoError(t, s.Delete(ctx, "key1"))

	_, ok, err = s.Get(ctx, "key1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetMissingKey(t *testing.T) {
	s := newTestStore(t)
	val, ok, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestDeleteMissingKeyIsNoOp(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Delete(context.Background(), "never-existed"))
}

func TestAwkwardKeysAreBlobSafe(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := "GET http://example.test:8080/a/b?q=1"
	require.NoError(t, s.Set(ctx, key, []byte("payload")))

	got, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), got)
}

func TestNewRequiresBucketOrURL(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestNewAdoptsProvidedBucket(t *testing.T) {
	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	s, err := New(context.Background(), Config{Bucket: bucket})
	require.NoError(t, err)

	// The Store did not open the bucket, so Close must leave it usable.
	require.NoError(t, s.Close())
	require.NoError(t, s.Set(context.Background(), "k", []byte("v")))
}
