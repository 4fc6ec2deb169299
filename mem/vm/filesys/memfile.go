package filesys

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned when a closed handle is used.
var ErrClosed = errors.New("filesys: file already closed")

// inode is the content shared by every handle on a MemFile.
type inode struct {
	lock       sync.RWMutex
	data       []byte
	writeCount atomic.Int64
	openCount  atomic.Int64
}

// MemFile is a File whose content lives in memory. Handles obtained with
// Reopen share the content but not the position.
type MemFile struct {
	inode   *inode
	pos     int64
	closed  bool
	console bool
}

// NewMemFile creates a file holding a copy of data.
func NewMemFile(data []byte) *MemFile {
	n := &inode{data: append([]byte(nil), data...)}
	n.openCount.Add(1)

	return &MemFile{inode: n}
}

// NewConsole creates a handle that reports itself as a terminal stream.
func NewConsole() *MemFile {
	f := NewMemFile(nil)
	f.console = true

	return f
}

// Bytes returns a copy of the current file content.
func (f *MemFile) Bytes() []byte {
	f.inode.lock.RLock()
	defer f.inode.lock.RUnlock()

	return append([]byte(nil), f.inode.data...)
}

// WriteCount returns how many WriteAt calls reached the file through any
// handle.
func (f *MemFile) WriteCount() int64 {
	return f.inode.writeCount.Load()
}

// OpenCount returns how many handles on the file are still open.
func (f *MemFile) OpenCount() int64 {
	return f.inode.openCount.Load()
}

// Read implements io.Reader.
func (f *MemFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)

	if err == io.EOF && n > 0 {
		err = nil
	}

	return n, err
}

// Seek implements io.Seeker.
func (f *MemFile) Seek(offset int64, whence int) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	var abs int64

	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = f.pos + offset
	case io.SeekEnd:
		abs = f.Length() + offset
	default:
		return 0, errors.New("filesys: invalid whence")
	}

	if abs < 0 {
		return 0, errors.New("filesys: negative position")
	}

	f.pos = abs

	return abs, nil
}

// ReadAt implements io.ReaderAt.
func (f *MemFile) ReadAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}

	f.inode.lock.RLock()
	defer f.inode.lock.RUnlock()

	if off >= int64(len(f.inode.data)) {
		return 0, io.EOF
	}

	n := copy(p, f.inode.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt implements io.WriterAt. Writing past the end grows the file.
func (f *MemFile) WriteAt(p []byte, off int64) (int, error) {
	if f.closed {
		return 0, ErrClosed
	}

	f.inode.lock.Lock()
	defer f.inode.lock.Unlock()

	end := off + int64(len(p))
	if end > int64(len(f.inode.data)) {
		grown := make([]byte, end)
		copy(grown, f.inode.data)
		f.inode.data = grown
	}

	f.inode.writeCount.Add(1)

	return copy(f.inode.data[off:], p), nil
}

// Length returns the size of the file.
func (f *MemFile) Length() int64 {
	f.inode.lock.RLock()
	defer f.inode.lock.RUnlock()

	return int64(len(f.inode.data))
}

// Reopen returns a new handle on the same content.
func (f *MemFile) Reopen() (File, error) {
	if f.closed {
		return nil, ErrClosed
	}

	f.inode.openCount.Add(1)

	return &MemFile{inode: f.inode, console: f.console}, nil
}

// IsConsole tells whether the handle is a terminal stream.
func (f *MemFile) IsConsole() bool {
	return f.console
}

// Close implements io.Closer.
func (f *MemFile) Close() error {
	if f.closed {
		return ErrClosed
	}

	f.closed = true
	f.inode.openCount.Add(-1)

	return nil
}
