// Package blockcache provides a block-oriented cache that gives a
// contiguous, in-memory view of a file system object whose blocks are
// scattered across the volume. The namespace package's open file handles
// sit on top of a Cache, fetching a block from the volume only on first
// touch and flushing only the blocks a write actually dirtied.
//
// All block indexes begin at 0.
package blockcache

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/vvsfs/vvsfs/blockio"
)

// FetchBlockCallback writes the contents of a single block from the
// underlying storage into buffer. buffer is guaranteed to be exactly one
// block long.
type FetchBlockCallback func(blockIndex blockio.LogicalBlock, buffer []byte) error

// FlushBlockCallback writes the contents of buffer to a block in the
// backing storage. buffer is guaranteed to be exactly one block long.
type FlushBlockCallback func(blockIndex blockio.LogicalBlock, buffer []byte) error

// Cache holds a full copy of an object's blocks in memory, tracking which
// ones have been loaded from storage and which ones have pending writes.
// The dirty/loaded bookkeeping uses go-bitmap: it's purely an in-memory
// accounting structure, so its bit ordering doesn't need to match the
// on-disk bitmaps the bitmap package maintains.
type Cache struct {
	loadedBlocks  bitmap.Bitmap
	dirtyBlocks   bitmap.Bitmap
	fetch         FetchBlockCallback
	flush         FlushBlockCallback
	bytesPerBlock uint
	totalBlocks   uint
	data          []byte
}

// New creates a new Cache with room for totalBlocks blocks of
// bytesPerBlock bytes each.
func New(
	bytesPerBlock uint,
	totalBlocks uint,
	fetchCb FetchBlockCallback,
	flushCb FlushBlockCallback,
) *Cache {
	return &Cache{
		loadedBlocks:  bitmap.NewSlice(int(totalBlocks)),
		dirtyBlocks:   bitmap.NewSlice(int(totalBlocks)),
		data:          make([]byte, int(bytesPerBlock*totalBlocks)),
		fetch:         fetchCb,
		flush:         flushCb,
		bytesPerBlock: bytesPerBlock,
		totalBlocks:   totalBlocks,
	}
}

// BytesPerBlock returns the size of a single block, in bytes.
func (cache *Cache) BytesPerBlock() uint {
	return cache.bytesPerBlock
}

// TotalBlocks returns the size of the cache, in blocks.
func (cache *Cache) TotalBlocks() uint {
	return cache.totalBlocks
}

// Size returns the total capacity of the cache, in bytes.
func (cache *Cache) Size() int64 {
	return int64(cache.totalBlocks) * int64(cache.bytesPerBlock)
}

// LengthToNumBlocks rounds a byte length up to the number of whole blocks
// needed to hold it.
func (cache *Cache) LengthToNumBlocks(length uint) uint {
	return cache.sizeToNumBlocks(length)
}

func (cache *Cache) sizeToNumBlocks(size uint) uint {
	return (size + cache.bytesPerBlock - 1) / cache.bytesPerBlock
}

// checkBounds verifies that bufferSize bytes can be accessed in the cache
// starting from block start.
func (cache *Cache) checkBounds(start blockio.LogicalBlock, bufferSize uint) error {
	numBlocks := cache.sizeToNumBlocks(bufferSize)
	if uint(start)+numBlocks > cache.totalBlocks {
		return fmt.Errorf(
			"can't access %d bytes (%d blocks) from block %d; range not in [0, %d)",
			bufferSize, numBlocks, start, cache.totalBlocks)
	}
	return nil
}

// GetSlice returns a slice pointing to the cache's storage, beginning at
// block start and continuing for count blocks.
func (cache *Cache) GetSlice(start blockio.LogicalBlock, count uint) ([]byte, error) {
	if err := cache.checkBounds(start, count*cache.bytesPerBlock); err != nil {
		return nil, err
	}
	startOffset := uint(start) * cache.bytesPerBlock
	endOffset := startOffset + (count * cache.bytesPerBlock)
	return cache.data[startOffset:endOffset], nil
}

// loadBlockRange ensures every block in [start, start+count) is present in
// the cache, fetching any missing ones from storage.
func (cache *Cache) loadBlockRange(start blockio.LogicalBlock, count uint) error {
	if err := cache.checkBounds(start, count*cache.bytesPerBlock); err != nil {
		return err
	}

	for blockIndex := int(start); uint(blockIndex) < uint(start)+count; blockIndex++ {
		if cache.loadedBlocks.Get(blockIndex) {
			continue
		}

		buffer, err := cache.GetSlice(blockio.LogicalBlock(blockIndex), 1)
		if err != nil {
			return err
		}

		if err := cache.fetch(blockio.LogicalBlock(blockIndex), buffer); err != nil {
			return fmt.Errorf("failed to load block %d from source: %w", blockIndex, err)
		}

		cache.loadedBlocks.Set(blockIndex, true)
		cache.dirtyBlocks.Set(blockIndex, false)
	}
	return nil
}

// flushBlockRange writes out every dirty block (and only dirty blocks) in
// [start, start+count) and marks them clean.
func (cache *Cache) flushBlockRange(start blockio.LogicalBlock, count uint) error {
	if err := cache.checkBounds(start, count*cache.bytesPerBlock); err != nil {
		return err
	}

	for blockIndex := int(start); uint(blockIndex) < uint(start)+count; blockIndex++ {
		if !cache.dirtyBlocks.Get(blockIndex) {
			continue
		}

		buffer, err := cache.GetSlice(blockio.LogicalBlock(blockIndex), 1)
		if err != nil {
			return err
		}

		if err := cache.flush(blockio.LogicalBlock(blockIndex), buffer); err != nil {
			return fmt.Errorf("failed to flush block %d to storage: %w", blockIndex, err)
		}

		cache.dirtyBlocks.Set(blockIndex, false)
	}
	return nil
}

// LoadAll ensures all missing blocks are loaded from storage into the
// cache.
func (cache *Cache) LoadAll() error {
	return cache.loadBlockRange(0, cache.totalBlocks)
}

// FlushAll writes every dirty block in the cache out to storage.
func (cache *Cache) FlushAll() error {
	return cache.flushBlockRange(0, cache.totalBlocks)
}

// Read fills buffer with data beginning at block start, loading any
// missing blocks first. buffer does not need to be an exact multiple of
// the block size.
func (cache *Cache) Read(start blockio.LogicalBlock, buffer []byte) error {
	bufLen := uint(len(buffer))
	if err := cache.checkBounds(start, bufLen); err != nil {
		return err
	}

	numBlocks := cache.sizeToNumBlocks(bufLen)
	if err := cache.loadBlockRange(start, numBlocks); err != nil {
		return err
	}

	sourceData, err := cache.GetSlice(start, numBlocks)
	if err != nil {
		return err
	}

	copy(buffer, sourceData)
	return nil
}

// Write copies buffer into the cache beginning at block start, marking
// every block it touches dirty. buffer does not need to be an exact
// multiple of the block size.
func (cache *Cache) Write(start blockio.LogicalBlock, buffer []byte) error {
	bufLen := uint(len(buffer))
	if err := cache.checkBounds(start, bufLen); err != nil {
		return err
	}

	totalBlocks := cache.sizeToNumBlocks(bufLen)
	targetByteSlice, err := cache.GetSlice(start, totalBlocks)
	if err != nil {
		return err
	}

	copy(targetByteSlice, buffer)

	for i := uint(0); i < totalBlocks; i++ {
		currentBlockIndex := int(blockio.LogicalBlock(i) + start)
		cache.loadedBlocks.Set(currentBlockIndex, true)
		cache.dirtyBlocks.Set(currentBlockIndex, true)
	}
	return nil
}

// Resize changes the number of blocks in the cache, adding or removing
// blocks at the end. Newly added blocks are treated as missing and clean.
func (cache *Cache) Resize(newTotalBlocks uint) {
	newCacheData := make([]byte, newTotalBlocks*cache.bytesPerBlock)
	copy(newCacheData, cache.data)

	newDirtyBlocks := bitmap.NewSlice(int(newTotalBlocks))
	newLoadedBlocks := bitmap.NewSlice(int(newTotalBlocks))
	copy(newDirtyBlocks, cache.dirtyBlocks)
	copy(newLoadedBlocks, cache.loadedBlocks)

	cache.data = newCacheData
	cache.dirtyBlocks = newDirtyBlocks
	cache.loadedBlocks = newLoadedBlocks
	cache.totalBlocks = newTotalBlocks
}
