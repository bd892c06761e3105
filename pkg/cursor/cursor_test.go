package cursor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSyncCursor_Uninitialized(t *testing.T) {
	c := NewSyncCursor()

	assert.Equal(t, Uninitialized, c.LatestNonce)
	assert.Equal(t, Uninitialized, c.LatestFillTimestamp)
	assert.Equal(t, Uninitialized, c.ProviderNonce)
	assert.Equal(t, Uninitialized, c.ProviderTargetNonce)
	assert.Equal(t, 0, c.Skip)
	assert.False(t, c.Syncing())
}

func TestSyncCursor_Guard(t *testing.T) {
	c := NewSyncCursor()

	require.True(t, c.BeginSync())
	assert.False(t, c.BeginSync(), "guard must reject reentry")
	assert.True(t, c.Syncing())

	c.EndSync()
	assert.True(t, c.BeginSync())
	c.EndSync()
}

func TestSyncCursor_GuardConcurrent(t *testing.T) {
	c := NewSyncCursor()

	var wg sync.WaitGroup
	acquired := make(chan struct{}, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.BeginSync() {
				acquired <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(acquired)

	count := 0
	for range acquired {
		count++
	}
	assert.Equal(t, 1, count, "exactly one goroutine may hold the guard")
}

func TestStore_Get(t *testing.T) {
	s := NewStore([]string{"arbitrum-polygon-lnv3", "polygon-arbitrum-lnv3"})

	require.NotNil(t, s.Get("arbitrum-polygon-lnv3"))
	require.NotNil(t, s.Get("polygon-arbitrum-lnv3"))
	assert.NotSame(t, s.Get("arbitrum-polygon-lnv3"), s.Get("polygon-arbitrum-lnv3"))
	assert.Nil(t, s.Get("unknown"))
}
