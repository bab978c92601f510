package basicstream_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/basicstream"
	"github.com/vvsfs/vvsfs/internal/vvsfstest"
)

const (
	testBytesPerBlock = 16
	testTotalBlocks   = 4
)

func newTestStream(t *testing.T, size int64, flags vvsfs.IOFlags) *basicstream.Stream {
	t.Helper()
	backing := vvsfstest.CreateRandomImage(testBytesPerBlock, testTotalBlocks, t)
	cache := vvsfstest.CreateDefaultCache(testBytesPerBlock, testTotalBlocks, true, backing, t)
	stream, err := basicstream.New(size, cache, flags)
	require.NoError(t, err)
	return stream
}

func TestReadWrite__RoundTrips(t *testing.T) {
	stream := newTestStream(t, int64(testBytesPerBlock*testTotalBlocks), vvsfs.O_RDWR)

	n, err := stream.Write([]byte("hello, vvsfs"))
	require.NoError(t, err)
	require.Equal(t, len("hello, vvsfs"), n)

	buf := make([]byte, len("hello, vvsfs"))
	_, err = stream.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello, vvsfs", string(buf))
}

func TestWrite__RejectedOnReadOnlyStream(t *testing.T) {
	stream := newTestStream(t, int64(testBytesPerBlock*testTotalBlocks), vvsfs.O_RDONLY)

	_, err := stream.Write([]byte("nope"))
	assert.Equal(t, vvsfs.ErrNotPermitted, err)
}

func TestSeek__EachOriginComputesCorrectOffset(t *testing.T) {
	size := int64(testBytesPerBlock * testTotalBlocks)
	stream := newTestStream(t, size, vvsfs.O_RDWR)

	pos, err := stream.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 5, pos)

	pos, err = stream.Seek(3, io.SeekCurrent)
	require.NoError(t, err)
	assert.EqualValues(t, 8, pos)

	pos, err = stream.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, size-2, pos)
}

func TestTruncate__ShrinksSizeWithoutMovingPosition(t *testing.T) {
	stream := newTestStream(t, int64(testBytesPerBlock*testTotalBlocks), vvsfs.O_RDWR)

	_, err := stream.Seek(10, io.SeekStart)
	require.NoError(t, err)

	require.NoError(t, stream.Truncate(testBytesPerBlock))
	assert.EqualValues(t, testBytesPerBlock, stream.Size())
	assert.EqualValues(t, 10, stream.Tell())
}
