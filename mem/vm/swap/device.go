package swap

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// A Device is the disk region that holds swap slots.
type Device interface {
	io.ReaderAt
	io.WriterAt
}

// MemDevice is a Device kept entirely in memory.
type MemDevice struct {
	lock sync.RWMutex
	data []byte
}

// NewMemDevice creates a zeroed in-memory device of the given size.
func NewMemDevice(size int) *MemDevice {
	return &MemDevice{data: make([]byte, size)}
}

// ReadAt implements io.ReaderAt.
func (d *MemDevice) ReadAt(p []byte, off int64) (int, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if off < 0 || off >= int64(len(d.data)) {
		return 0, io.EOF
	}

	n := copy(p, d.data[off:])
	if n < len(p) {
		return n, io.EOF
	}

	return n, nil
}

// WriteAt implements io.WriterAt.
func (d *MemDevice) WriteAt(p []byte, off int64) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if off < 0 || off+int64(len(p)) > int64(len(d.data)) {
		return 0, fmt.Errorf("write of %d bytes at %d beyond device end %d",
			len(p), off, len(d.data))
	}

	return copy(d.data[off:], p), nil
}

// NewFileDevice opens the swap file at path, discarding whatever it held
// before, and sizes it to size bytes.
func NewFileDevice(path string, size int64) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open swap file: %w", err)
	}

	err = f.Truncate(size)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("size swap file: %w", err)
	}

	return f, nil
}
