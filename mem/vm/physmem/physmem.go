// Package physmem models the physical memory that backs user pages.
package physmem

import (
	"errors"
	"fmt"
)

// ErrOutOfMemory is returned by Alloc when every frame is in use.
var ErrOutOfMemory = errors.New("physmem: out of memory")

// Memory is a fixed number of page-sized frames carved out of one byte arena.
// Memory is not safe for concurrent use; callers serialize Alloc and Free.
type Memory struct {
	base      uint64
	pageSize  uint64
	data      []byte
	freeList  []uint64
	allocated []bool
}

// New creates a Memory with numPages frames starting at physical address base.
func New(base uint64, numPages int, pageSize uint64) *Memory {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		panic(fmt.Sprintf("page size %d is not a power of two", pageSize))
	}

	if base%pageSize != 0 {
		panic(fmt.Sprintf("base 0x%x is not page aligned", base))
	}

	m := &Memory{
		base:      base,
		pageSize:  pageSize,
		data:      make([]byte, uint64(numPages)*pageSize),
		freeList:  make([]uint64, 0, numPages),
		allocated: make([]bool, numPages),
	}

	// Push in reverse so that the lowest address is handed out first.
	for i := numPages - 1; i >= 0; i-- {
		m.freeList = append(m.freeList, base+uint64(i)*pageSize)
	}

	return m
}

// PageSize returns the size of a frame in bytes.
func (m *Memory) PageSize() uint64 {
	return m.pageSize
}

// PAddr returns the physical address of the i-th frame.
func (m *Memory) PAddr(i int) uint64 {
	if i < 0 || i >= len(m.allocated) {
		panic(fmt.Sprintf("frame index %d out of range", i))
	}

	return m.base + uint64(i)*m.pageSize
}

// NumPages returns the total number of frames.
func (m *Memory) NumPages() int {
	return len(m.allocated)
}

// NumFree returns the number of frames that can still be allocated.
func (m *Memory) NumFree() int {
	return len(m.freeList)
}

// Alloc hands out one frame and returns its physical address.
func (m *Memory) Alloc() (uint64, error) {
	if len(m.freeList) == 0 {
		return 0, ErrOutOfMemory
	}

	paddr := m.freeList[len(m.freeList)-1]
	m.freeList = m.freeList[:len(m.freeList)-1]
	m.allocated[m.index(paddr)] = true

	return paddr, nil
}

// Free returns a frame to the free list.
func (m *Memory) Free(paddr uint64) {
	i := m.index(paddr)
	if !m.allocated[i] {
		panic(fmt.Sprintf("double free of frame 0x%x", paddr))
	}

	m.allocated[i] = false
	m.freeList = append(m.freeList, paddr)
}

// Page returns the bytes of the frame at paddr. The slice aliases the arena.
func (m *Memory) Page(paddr uint64) []byte {
	i := uint64(m.index(paddr))
	return m.data[i*m.pageSize : (i+1)*m.pageSize : (i+1)*m.pageSize]
}

func (m *Memory) index(paddr uint64) int {
	if paddr%m.pageSize != 0 || paddr < m.base {
		panic(fmt.Sprintf("bad physical address 0x%x", paddr))
	}

	i := (paddr - m.base) / m.pageSize
	if i >= uint64(len(m.allocated)) {
		panic(fmt.Sprintf("physical address 0x%x out of range", paddr))
	}

	return int(i)
}
