// Package blockio provides the low-level block-addressed I/O primitives
// every other package in this module builds on: the logical/physical block
// ID types, and a stream abstraction that turns an arbitrary
// io.ReadWriteSeeker into something that can only be read or written in
// whole multiples of the volume's block size.
package blockio

// LogicalBlock is a block index as seen by a file: block 0 is the first
// block of the file's contents, regardless of where it actually lives on
// the volume.
type LogicalBlock uint

// PhysicalBlock is a block index as it appears on the volume itself,
// counting from block 0 of the image (the superblock).
type PhysicalBlock uint32
