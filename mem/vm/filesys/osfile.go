package filesys

import (
	"fmt"
	"os"
)

// OSFile is a File backed by a file of the host operating system.
type OSFile struct {
	*os.File
	flag int
}

// Open opens the named host file for reading and writing.
func Open(name string) (*OSFile, error) {
	return openWithFlag(name, os.O_RDWR)
}

// OpenReadOnly opens the named host file for reading only.
func OpenReadOnly(name string) (*OSFile, error) {
	return openWithFlag(name, os.O_RDONLY)
}

func openWithFlag(name string, flag int) (*OSFile, error) {
	f, err := os.OpenFile(name, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	return &OSFile{File: f, flag: flag}, nil
}

// Length returns the current size of the file, or 0 if it cannot be stat'ed.
func (f *OSFile) Length() int64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}

	return info.Size()
}

// Reopen opens the same path again so that the new handle has its own offset.
func (f *OSFile) Reopen() (File, error) {
	return openWithFlag(f.Name(), f.flag)
}

// IsConsole tells whether the handle refers to a character device.
func (f *OSFile) IsConsole() bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}
