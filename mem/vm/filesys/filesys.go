// Package filesys defines the file handles the virtual memory system reads
// and writes pages through, along with in-memory and OS-backed handles.
package filesys

import (
	"io"
)

// A File is an open handle on a file. Every handle has its own position.
type File interface {
	io.Reader
	io.Seeker
	io.ReaderAt
	io.WriterAt
	io.Closer

	// Length returns the size of the file in bytes.
	Length() int64

	// Reopen returns a new handle on the same file with an independent
	// position.
	Reopen() (File, error)

	// IsConsole tells whether the handle is a terminal stream, which cannot be
	// memory mapped.
	IsConsole() bool
}
