package namespace_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vvsfs/vvsfs"
	"github.com/vvsfs/vvsfs/namespace"
)

func TestHandleOpen__WriteThenReadBackThroughStream(t *testing.T) {
	d := newTestDriver(t)
	root, err := d.Root()
	require.Nil(t, err)

	child, cerr := d.Create(root, "greeting", vvsfs.S_IFREG|0o644, 0)
	require.Nil(t, cerr)

	handle := namespace.NewHandle(d.Volume, child, "greeting")

	writeFile, err := handle.Open(vvsfs.O_RDWR)
	require.NoError(t, err)

	n, err := writeFile.Write([]byte("hello, vvsfs"))
	require.NoError(t, err)
	require.Equal(t, len("hello, vvsfs"), n)
	require.NoError(t, writeFile.Close())

	readFile, err := handle.Open(vvsfs.O_RDWR)
	require.NoError(t, err)
	defer readFile.Close()

	buf := make([]byte, len("hello, vvsfs"))
	_, err = readFile.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		require.NoError(t, err)
	}
	require.Equal(t, "hello, vvsfs", string(buf))
	require.Equal(t, "greeting", readFile.Name())
}
