package kvclient

import (
	"context"
	"testing"
	"time"

	"oidcop/pkg/logger"
	"oidcop/pkg/model"
	"oidcop/pkg/trace"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := &model.Cfg{}
	cfg.Common.KeyValue = model.KeyValue{Addr: mr.Addr()}

	client, err := New(context.Background(), cfg, trace.NewNoop(), logger.NewSimple("test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })

	return client, mr
}

func TestSetAndTake(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k1", []byte("v1"), time.Minute))

	value, err := client.Take(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)

	// GETDEL removed the key: the second take misses.
	value, err = client.Take(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestTakeMiss(t *testing.T) {
	client, _ := newTestClient(t)

	value, err := client.Take(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestSetHonorsTTL(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k1", []byte("v1"), time.Minute))

	mr.FastForward(2 * time.Minute)

	value, err := client.Take(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, value)
}
