package vvsfstest

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/blockcache"
	"github.com/vvsfs/vvsfs/blockio"
)

// CreateRandomImage builds totalBlocks blocks of bytesPerBlock random bytes.
// It is guaranteed to either return a valid slice or fail the test.
func CreateRandomImage(bytesPerBlock, totalBlocks uint, t *testing.T) []byte {
	backingData := make([]byte, bytesPerBlock*totalBlocks)

	_, err := rand.Read(backingData)
	require.NoErrorf(
		t,
		err,
		"failed to initialize %d blocks of size %d with random bytes",
		totalBlocks,
		bytesPerBlock,
	)
	return backingData
}

// CreateDefaultCache builds a blockcache.Cache backed by an in-memory byte
// slice, with fetch/flush callbacks that bounds-check and, for read-only
// caches, fail the test on any write attempt.
//
// backingData may be nil, in which case it is filled with random bytes via
// CreateRandomImage.
func CreateDefaultCache(
	bytesPerBlock,
	totalBlocks uint,
	writable bool,
	backingData []byte,
	t *testing.T,
) *blockcache.Cache {
	if backingData == nil {
		backingData = CreateRandomImage(bytesPerBlock, totalBlocks, t)
	}

	fetchCallback := func(blockIndex blockio.LogicalBlock, buffer []byte) error {
		if uint(blockIndex) >= totalBlocks {
			message := fmt.Sprintf(
				"attempted to read outside bounds: block %d not in [0, %d)",
				blockIndex,
				totalBlocks,
			)
			t.Error(message)
			return vvsfs.ErrIOFailed.WithMessage(message)
		}

		start := uint(blockIndex) * bytesPerBlock
		copy(buffer, backingData[start:start+bytesPerBlock])
		return nil
	}

	var flushCallback blockcache.FlushBlockCallback
	if writable {
		flushCallback = func(blockIndex blockio.LogicalBlock, buffer []byte) error {
			if uint(blockIndex) >= totalBlocks {
				message := fmt.Sprintf(
					"attempted to write outside bounds: %d not in [0, %d)",
					blockIndex,
					totalBlocks,
				)
				t.Error(message)
				return vvsfs.ErrIOFailed.WithMessage(message)
			}

			start := uint(blockIndex) * bytesPerBlock
			copy(backingData[start:start+bytesPerBlock], buffer)
			return nil
		}
	} else {
		flushCallback = func(blockIndex blockio.LogicalBlock, buffer []byte) error {
			message := fmt.Sprintf(
				"attempted to write %d bytes to block %d of read-only image",
				len(buffer),
				blockIndex,
			)
			t.Error(message)
			return vvsfs.ErrReadOnlyFileSystem.WithMessage(message)
		}
	}

	cache := blockcache.New(bytesPerBlock, totalBlocks, fetchCallback, flushCallback)
	assert.EqualValues(t, bytesPerBlock, cache.BytesPerBlock(), "wrong bytes per block")
	assert.EqualValues(t, totalBlocks, cache.TotalBlocks(), "wrong total blocks")
	assert.EqualValues(t, bytesPerBlock*totalBlocks, cache.Size(), "total size is wrong")
	return cache
}
