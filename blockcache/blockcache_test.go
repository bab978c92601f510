package blockcache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvsfs/vvsfs/blockio"
	"github.com/vvsfs/vvsfs/internal/vvsfstest"
)

const (
	testBytesPerBlock = 16
	testTotalBlocks   = 4
)

func TestRead__FetchesOnFirstTouchOnly(t *testing.T) {
	backing := vvsfstest.CreateRandomImage(testBytesPerBlock, testTotalBlocks, t)
	cache := vvsfstest.CreateDefaultCache(testBytesPerBlock, testTotalBlocks, true, backing, t)

	buf := make([]byte, testBytesPerBlock)
	require.NoError(t, cache.Read(1, buf))
	assert.Equal(t, backing[testBytesPerBlock:2*testBytesPerBlock], buf)

	// Change the backing store; a second read must come from the cache.
	first := append([]byte(nil), buf...)
	backing[testBytesPerBlock] ^= 0xFF
	require.NoError(t, cache.Read(1, buf))
	assert.Equal(t, first, buf)
}

func TestWrite__MarksBlockDirtyAndFlushPersists(t *testing.T) {
	backing := vvsfstest.CreateRandomImage(testBytesPerBlock, testTotalBlocks, t)
	cache := vvsfstest.CreateDefaultCache(testBytesPerBlock, testTotalBlocks, true, backing, t)

	payload := make([]byte, testBytesPerBlock)
	for i := range payload {
		payload[i] = 0xAB
	}
	require.NoError(t, cache.Write(2, payload))

	// Not yet persisted to the backing store until flushed.
	assert.NotEqual(t, payload, backing[2*testBytesPerBlock:3*testBytesPerBlock])

	require.NoError(t, cache.FlushAll())
	assert.Equal(t, payload, backing[2*testBytesPerBlock:3*testBytesPerBlock])
}

func TestRead__OutOfBoundsFails(t *testing.T) {
	cache := vvsfstest.CreateDefaultCache(testBytesPerBlock, testTotalBlocks, true, nil, t)

	buf := make([]byte, testBytesPerBlock)
	err := cache.Read(blockio.LogicalBlock(testTotalBlocks), buf)
	assert.Error(t, err)
}

func TestRead__WorksOnReadOnlyCache(t *testing.T) {
	backing := vvsfstest.CreateRandomImage(testBytesPerBlock, testTotalBlocks, t)
	cache := vvsfstest.CreateDefaultCache(testBytesPerBlock, testTotalBlocks, false, backing, t)

	buf := make([]byte, testBytesPerBlock)
	require.NoError(t, cache.Read(0, buf))
	assert.Equal(t, backing[:testBytesPerBlock], buf)
}

func TestResize__GrowsWithoutDisturbingExistingData(t *testing.T) {
	backing := vvsfstest.CreateRandomImage(testBytesPerBlock, testTotalBlocks, t)
	cache := vvsfstest.CreateDefaultCache(testBytesPerBlock, testTotalBlocks, true, backing, t)

	buf := make([]byte, testBytesPerBlock)
	require.NoError(t, cache.Read(0, buf))

	cache.Resize(testTotalBlocks + 1)
	assert.EqualValues(t, testTotalBlocks+1, cache.TotalBlocks())

	again := make([]byte, testBytesPerBlock)
	require.NoError(t, cache.Read(0, again))
	assert.Equal(t, buf, again)
}
