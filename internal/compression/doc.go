// Package compression provides tools to compress and decompress volume
// images; cmd/unzipimage uses it to expand a compressed image by hand.
//
// A formatted VVSFS image is mostly zero bytes: the bitmaps are sparse and
// most data blocks are never allocated. Run-length encoding the raw image
// before gzipping it gets a far better ratio than gzip alone, since gzip's
// window doesn't always catch long runs of identical bytes efficiently.
//
// This package refers strictly to the run-length encoding used by the
// Microsoft BMP file format, also known as RLE8. A brief explanation: if a
// byte B occurs N times where N >= 2, B is written twice, followed by a
// third (unsigned) byte indicating how many additional times B occurred.
// For example:
//
//		WXXXXXXXXXXXXXXXYZZ
//		W XX 13 Y ZZ 0
//
// This scheme lets us represent runs of up to 257 bytes with three bytes.
// For runs longer than 257 bytes, they are treated as separate runs. For
// example, a run of 300 "X" is represented as `XX 255 XX 41`. Unfortunately,
// using a byte as its own escape sequence means that occurrences of the same
// byte exactly twice are stored as three bytes: the two bytes followed by a
// null byte indicating no further repetition.
package compression
