package vm

import (
	"errors"
	"fmt"

	"github.com/sarchlab/vmsim/mem/vm/filesys"
)

// Mmap maps length bytes of file, starting at offset, at addr. Every page is
// loaded lazily. It returns addr on success.
func (s *System) Mmap(
	as *AddressSpace,
	addr, length uint64,
	writable bool,
	file filesys.File,
	offset int64,
) (uint64, error) {
	err := s.checkMmap(as, addr, length, file, offset)
	if err != nil {
		return 0, err
	}

	fileLength := file.Length()
	if fileLength == 0 {
		return 0, fmt.Errorf("mmap at 0x%x: %w", addr, ErrEmptyFile)
	}

	reopened, err := file.Reopen()
	if err != nil {
		return 0, fmt.Errorf("mmap at 0x%x: reopen: %w", addr, err)
	}

	runLength := int(PageRoundUp(length) / PageSize)
	m := &Mapping{File: reopened, Base: addr, RunLength: runLength}

	// Held until every page has been added, so that a rollback closes the
	// file exactly once.
	m.retain()

	for i := 0; i < runLength; i++ {
		pageOffset := int64(i) * int64(PageSize)
		aux := &FileAux{
			Mapping: m,
			Offset:  offset + pageOffset,
			ValidLength: int(min(
				max(fileLength-offset-pageOffset, 0),
				int64(length)-pageOffset,
				int64(PageSize),
			)),
		}

		m.retain()

		_, err = s.allocateLazyPage(as, addr+uint64(pageOffset), writable,
			PageTypeFile, loadMappedPage, aux)
		if err != nil {
			return 0, s.rollbackMmap(as, m, i, err)
		}
	}

	err = m.release()
	if err != nil {
		return 0, err
	}

	s.report(HookPosMmap, nil, Event{
		ASID:   as.id,
		VAddr:  addr,
		Frame:  NoFrame,
		Length: length,
	})

	return addr, nil
}

func (s *System) checkMmap(
	as *AddressSpace,
	addr, length uint64,
	file filesys.File,
	offset int64,
) error {
	switch {
	case addr == 0:
		return fmt.Errorf("mmap at null address: %w", ErrBadMmap)
	case PageOffset(addr) != 0:
		return fmt.Errorf("mmap at unaligned 0x%x: %w", addr, ErrBadMmap)
	case length == 0:
		return fmt.Errorf("mmap of zero bytes: %w", ErrBadMmap)
	case offset < 0 || PageOffset(uint64(offset)) != 0:
		return fmt.Errorf("mmap at unaligned offset %d: %w", offset, ErrBadMmap)
	case file == nil || file.IsConsole():
		return fmt.Errorf("mmap of unmappable file: %w", ErrBadMmap)
	case addr+length < addr || !IsUserAddress(addr+length-1):
		return fmt.Errorf("mmap at 0x%x reaches kernel space: %w",
			addr, ErrBadMmap)
	}

	for va := addr; va < addr+length; va += PageSize {
		if inStackRegion(va) {
			return fmt.Errorf("mmap over stack at 0x%x: %w", va, ErrBadMmap)
		}

		if _, found := as.spt.Find(va); found {
			return fmt.Errorf("mmap over existing page 0x%x: %w",
				va, ErrBadMmap)
		}
	}

	return nil
}

// rollbackMmap destroys the first n pages of a failed mapping and drops the
// references held for the page that could not be added and for the run.
func (s *System) rollbackMmap(
	as *AddressSpace,
	m *Mapping,
	n int,
	cause error,
) error {
	errs := []error{fmt.Errorf("mmap at 0x%x: %w", m.Base, cause)}

	for i := 0; i < n; i++ {
		err := as.spt.RemoveAndDestroy(m.Base + uint64(i)*PageSize)
		if err != nil {
			errs = append(errs, err)
		}
	}

	errs = append(errs, m.release(), m.release())

	return errors.Join(errs...)
}

// Munmap removes the mapping that starts at addr, writing dirty pages back to
// the file.
func (s *System) Munmap(as *AddressSpace, addr uint64) error {
	p, found := as.spt.Find(addr)
	if !found {
		return fmt.Errorf("munmap 0x%x: %w", addr, ErrNotMapped)
	}

	m, ok := p.Mapping()
	if !ok || m.Base != addr {
		return fmt.Errorf("munmap 0x%x: %w", addr, ErrNotMmapBase)
	}

	var errs []error

	for i := 0; i < m.RunLength; i++ {
		va := addr + uint64(i)*PageSize

		p, found := as.spt.Find(va)
		if !found {
			continue
		}

		if pm, ok := p.Mapping(); !ok || pm != m {
			continue
		}

		err := as.spt.RemoveAndDestroy(va)
		if err != nil {
			errs = append(errs, err)
		}
	}

	err := errors.Join(errs...)

	s.report(HookPosMunmap, nil, Event{
		ASID:   as.id,
		VAddr:  addr,
		Frame:  NoFrame,
		Length: uint64(m.RunLength) * PageSize,
		Err:    err,
	})

	return err
}
