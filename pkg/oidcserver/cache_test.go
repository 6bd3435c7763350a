package oidcserver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheTakeIsOneShot(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Stop()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "k1", []byte("v1"), time.Minute))

	value, err := cache.Take(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)

	value, err = cache.Take(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryCacheTakeMiss(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Stop()

	value, err := cache.Take(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMemoryCacheConcurrentTake(t *testing.T) {
	cache := NewMemoryCache()
	defer cache.Stop()

	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "k1", []byte("v1"), time.Minute))

	const redeemers = 32

	var wg sync.WaitGroup
	winners := make(chan []byte, redeemers)

	for range redeemers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := cache.Take(ctx, "k1")
			assert.NoError(t, err)
			if value != nil {
				winners <- value
			}
		}()
	}

	wg.Wait()
	close(winners)

	// Exactly one redeemer observes the value.
	assert.Len(t, winners, 1)
}
