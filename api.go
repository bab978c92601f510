package vvsfs

import (
	"io"
	"math"
	"os"
	"time"

	"github.com/vvsfs/vvsfs/blockio"
)

// FileStat is a platform-independent form of [syscall.Stat_t].
type FileStat struct {
	DeviceID     uint64
	InodeNumber  uint64
	Nlinks       uint64
	ModeFlags    os.FileMode
	Uid          uint32
	Gid          uint32
	Rdev         uint64
	Size         int64
	BlockSize    int64
	NumBlocks    int64
	CreatedAt    time.Time
	LastChanged  time.Time
	LastAccessed time.Time
	LastModified time.Time
}

func (stat *FileStat) IsDir() bool {
	return stat.ModeFlags.IsDir()
}

func (stat *FileStat) IsFile() bool {
	return stat.ModeFlags.IsRegular()
}

func (stat *FileStat) IsSymlink() bool {
	return stat.ModeFlags&os.ModeType == os.ModeSymlink
}

// FSStat is a platform-independent form of [syscall.Statfs_t].
type FSStat struct {
	// BlockSize is the size of a logical block on the file system, in bytes.
	BlockSize int64
	// TotalBlocks is the total number of blocks on the disk image.
	TotalBlocks uint64
	// BlocksFree is the number of unallocated blocks on the image.
	BlocksFree uint64
	// Files is the total number of used inodes on the file system.
	Files uint64
	// FilesFree is the number of remaining inodes available for use.
	FilesFree uint64
	// FileSystemID is the magic number for the disk image.
	FileSystemID uint64
	// MaxNameLength is the longest possible name for a directory entry, in
	// bytes.
	MaxNameLength int64
	// Label is the volume label, if available.
	Label string
}

// UndefinedTimestamp is a timestamp that should be used as an invalid value,
// like `nil` for pointers.
var UndefinedTimestamp = time.UnixMicro(math.MaxInt64)

// FSFeatures indicates the features available for the file system. If a file
// system supports a feature, driver implementations MUST declare it as
// available even if the driver hasn't implemented it yet.
type FSFeatures interface {
	HasDirectories() bool
	HasSymbolicLinks() bool
	HasHardLinks() bool
	HasCreatedTime() bool
	HasAccessedTime() bool
	HasModifiedTime() bool
	HasChangedTime() bool
	HasUnixPermissions() bool
	HasUserID() bool
	HasGroupID() bool

	// TimestampEpoch returns the earliest representable timestamp on this
	// file system.
	TimestampEpoch() time.Time
	// DefaultNameEncoding gives the name of the text encoding natively used
	// by the file system, in lowercase with no symbols (e.g. "utf8").
	DefaultNameEncoding() string
	// DefaultBlockSize gives the size of a single block, in bytes.
	DefaultBlockSize() int
}

// Truncator is an interface for objects that support a Truncate() method.
// This method must behave just like [os.File.Truncate].
type Truncator interface {
	Truncate(size int64) error
}

// ObjectHandle is an interface for a way to interact with on-disk file
// system objects: regular files, directories, symlinks, and device nodes.
type ObjectHandle interface {
	// Stat returns information on the status of the file as it appears on
	// disk.
	Stat() FileStat

	// Resize changes the size of the object, in bytes. Drivers are
	// responsible for ensuring the needed number of blocks are allocated
	// or freed.
	Resize(newSize uint64) DriverError

	// ReadBlocks fills `buffer` with data from a sequence of logical blocks
	// beginning at `index`. `buffer` is guaranteed to be a nonzero multiple
	// of the block size, and the read range is guaranteed to be within the
	// current boundaries of the object.
	ReadBlocks(index blockio.LogicalBlock, buffer []byte) DriverError

	// WriteBlocks writes bytes from `buffer` into a sequence of logical
	// blocks beginning at `index`, under the same guarantees as
	// ReadBlocks.
	WriteBlocks(index blockio.LogicalBlock, data []byte) DriverError

	// Unlink deletes the file system object. For directories, this is
	// guaranteed to not be called unless ListDir returns an empty slice
	// (ignoring "." and ".." if present).
	Unlink() DriverError

	// Chmod changes the permission bits of this file system object. Only
	// the permissions bits will be set.
	Chmod(mode os.FileMode) DriverError
	Chown(uid, gid int) DriverError
	Chtimes(createdAt, lastAccessed, lastModified, lastChanged time.Time) error

	// ListDir returns a list of the directory entries this object
	// contains. "." and ".." are never returned; they are synthesized at
	// the host readdir boundary, never stored on disk.
	ListDir() ([]string, DriverError)

	// Name returns the name of the object itself without any path
	// component. The root directory, which technically has no name, must
	// return "/".
	Name() string
}

// File is the expected interface for file handles obtained from an
// ObjectHandle. It's intended to be more or less a drop-in replacement for
// [os.File], but not all methods need be implemented by every driver.
type File interface {
	io.ReadWriteCloser
	io.Seeker
	io.ReaderAt
	io.ReaderFrom
	io.WriterAt
	io.StringWriter
	Truncator

	Name() string
	Stat() (os.FileInfo, error)
	Sync() error
}

////////////////////////////////////////////////////////////////////////////////
// Directory Entries

// DirectoryEntry represents a file, directory, device, or other entity
// encountered on the file system. It must implement the os.DirEntry
// interface but only needs to fill values in Stat for the features it
// supports.
type DirectoryEntry interface {
	os.DirEntry
	Stat() FileStat
}
