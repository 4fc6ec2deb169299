package vm

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/sarchlab/vmsim/mem/vm/filesys"
)

// A Mapping is the run of file-backed pages created by one mmap call. All the
// pages of a run share it, including the copies made by fork.
type Mapping struct {
	// File is the handle reopened for the mapping.
	File filesys.File

	// Base is the address of the first page of the run.
	Base uint64

	// RunLength is the number of pages in the run.
	RunLength int

	// ioLock keeps a seek and the following read together.
	ioLock sync.Mutex
	refs   atomic.Int64
}

func (m *Mapping) retain() {
	m.refs.Add(1)
}

// release drops the reference held by one page. The file is closed when the
// last page of the run, in any address space, is gone.
func (m *Mapping) release() error {
	n := m.refs.Add(-1)
	if n < 0 {
		panic("mapping released more often than retained")
	}

	if n > 0 {
		return nil
	}

	err := m.File.Close()
	if err != nil {
		return fmt.Errorf("close mapping at 0x%x: %w", m.Base, err)
	}

	return nil
}

// FileAux describes where the content of a file-backed page comes from.
type FileAux struct {
	Mapping     *Mapping
	Offset      int64
	ValidLength int
}

// loadMappedPage is the loader of lazily created file-backed pages.
func loadMappedPage(_ *Page, content []byte, aux any) error {
	a := aux.(*FileAux)
	return readMapping(a.Mapping, a.Offset, a.ValidLength, content)
}

func readMapping(m *Mapping, offset int64, validLength int, content []byte) error {
	if validLength == 0 {
		clear(content)
		return nil
	}

	m.ioLock.Lock()
	defer m.ioLock.Unlock()

	_, err := m.File.Seek(offset, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek to %d: %w", offset, err)
	}

	n, err := io.ReadFull(m.File, content[:validLength])
	if n != validLength {
		return shortRead(n, validLength, offset, err)
	}

	clear(content[validLength:])

	return nil
}

// shortRead reports a read that returned fewer bytes than the page needs,
// along with the I/O error if there was one other than end of file.
func shortRead(n, want int, offset int64, err error) error {
	short := fmt.Errorf("read %d of %d bytes at %d: %w",
		n, want, offset, ErrShortRead)

	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return short
	}

	return errors.Join(short, err)
}

// readFilePage fills the frame of a file-backed page from its file.
func (s *System) readFilePage(p *Page, f *filePage, content []byte) error {
	err := readMapping(f.mapping, f.offset, f.validLength, content)
	if err != nil {
		return fmt.Errorf("load %s: %w", p, err)
	}

	return nil
}

// writeBack stores the valid part of a resident file-backed page.
func (s *System) writeBack(p *Page, f *filePage) error {
	if f.validLength == 0 {
		return nil
	}

	content := s.frames.Content(p.frame)[:f.validLength]

	n, err := f.mapping.File.WriteAt(content, f.offset)
	if err == nil && n != f.validLength {
		err = fmt.Errorf("write %d of %d bytes at %d: %w",
			n, f.validLength, f.offset, ErrShortWrite)
	}

	evt := pageEvent(p)
	evt.Length = uint64(f.validLength)
	evt.Err = err
	s.report(HookPosWriteBack, p, evt)

	if err != nil {
		return fmt.Errorf("write back %s: %w", p, err)
	}

	return nil
}

// dropFilePage evicts a file-backed page, writing it back only if it was
// modified.
func (s *System) dropFilePage(p *Page, f *filePage) error {
	if p.owner.isDirty(p.vAddr) {
		err := s.writeBack(p, f)
		if err != nil {
			return err
		}
	}

	s.unmapAndUnbind(p)

	return nil
}

// destroyFilePage flushes a dirty resident page and drops its reference to
// the mapping.
func (s *System) destroyFilePage(p *Page, f *filePage) error {
	var err error

	if p.frame != NoFrame && p.owner.isDirty(p.vAddr) {
		err = s.writeBack(p, f)
	}

	relErr := f.mapping.release()
	if err == nil {
		err = relErr
	}

	return err
}
