package inode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/inode"
	"github.com/vvsfs/vvsfs/layout"
	"github.com/vvsfs/vvsfs/volume"
)

func newTestVolume(t *testing.T) *volume.Volume {
	t.Helper()
	backing := bytesextra.NewReadWriteSeeker(make([]byte, layout.TotalBlocks*layout.BlockSize))
	v, err := volume.Format(backing)
	require.NoError(t, err)
	return v
}

func TestAllocate__FirstDynamicInodeIsTwo(t *testing.T) {
	v := newTestVolume(t)
	root, err := inode.Load(v, 1)
	require.Nil(t, err)

	child, err := inode.Allocate(v, root, vvsfs.S_IFREG|0o644, 0)
	require.Nil(t, err)
	assert.Equal(t, uint32(2), child.Ino)
	assert.Equal(t, uint32(1), child.NLinks)
	assert.Equal(t, uint32(1), child.IDBCount)
	assert.NotZero(t, child.IData[0])
}

func TestWriteBackLoad__RoundTrips(t *testing.T) {
	v := newTestVolume(t)
	root, err := inode.Load(v, 1)
	require.Nil(t, err)

	child, err := inode.Allocate(v, root, vvsfs.S_IFREG|0o644, 0)
	require.Nil(t, err)
	child.Size = 4096
	require.Nil(t, inode.WriteBack(v, child))
	assert.False(t, child.Dirty())

	reloaded, err := inode.Load(v, child.Ino)
	require.Nil(t, err)
	assert.Equal(t, child.Size, reloaded.Size)
	assert.Equal(t, child.Mode, reloaded.Mode)
	assert.Equal(t, child.IData[0], reloaded.IData[0])
}

func TestDropLink__FreesInodeAtZeroLinks(t *testing.T) {
	v := newTestVolume(t)
	root, err := inode.Load(v, 1)
	require.Nil(t, err)

	child, err := inode.Allocate(v, root, vvsfs.S_IFREG|0o644, 0)
	require.Nil(t, err)
	require.Nil(t, inode.WriteBack(v, child))

	require.Nil(t, inode.DropLink(v, child))
	assert.Zero(t, child.NLinks)
	assert.False(t, v.InodeBitmap.IsInodeSet(child.Ino))
}
