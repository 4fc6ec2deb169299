package vm

import (
	"fmt"
	"io"
)

// SegmentAux locates the part of an executable that fills one page.
type SegmentAux struct {
	File      io.ReaderAt
	Offset    int64
	ReadBytes int
}

// loadSegmentPage is the loader of lazily created executable pages.
func loadSegmentPage(_ *Page, content []byte, aux any) error {
	a := aux.(*SegmentAux)
	if a.ReadBytes == 0 {
		return nil
	}

	n, err := a.File.ReadAt(content[:a.ReadBytes], a.Offset)
	if n != a.ReadBytes {
		return shortRead(n, a.ReadBytes, a.Offset, err)
	}

	return nil
}

// LoadSegment registers the pages of an executable segment starting at upage.
// readBytes bytes are read from file at offset and the following zeroBytes
// bytes are zero. Nothing is read until the pages are touched.
func (s *System) LoadSegment(
	as *AddressSpace,
	file io.ReaderAt,
	offset int64,
	upage uint64,
	readBytes, zeroBytes uint64,
	writable bool,
) error {
	if PageOffset(upage) != 0 || PageOffset(uint64(offset)) != 0 ||
		PageOffset(readBytes+zeroBytes) != 0 {
		return fmt.Errorf("load segment at 0x%x: %w", upage, ErrBadAddress)
	}

	for readBytes > 0 || zeroBytes > 0 {
		pageReadBytes := min(readBytes, PageSize)

		aux := &SegmentAux{
			File:      file,
			Offset:    offset,
			ReadBytes: int(pageReadBytes),
		}

		err := s.AllocateLazyPage(
			as, upage, writable, PageTypeAnon, loadSegmentPage, aux)
		if err != nil {
			return fmt.Errorf("load segment: %w", err)
		}

		readBytes -= pageReadBytes
		zeroBytes -= PageSize - pageReadBytes
		offset += int64(pageReadBytes)
		upage += PageSize
	}

	return nil
}

// SetupStack creates the first stack page, right below UserStackTop, and
// returns the initial stack pointer.
func (s *System) SetupStack(as *AddressSpace) (uint64, error) {
	bottom := UserStackTop - PageSize

	p := newPage(as, bottom, true, &uninitPage{target: PageTypeAnon})
	p.stack = true

	if !as.spt.Insert(p) {
		return 0, fmt.Errorf("set up stack: %w", ErrPageExists)
	}

	err := s.claim(p)
	if err != nil {
		return 0, fmt.Errorf("set up stack: %w", err)
	}

	return UserStackTop, nil
}
