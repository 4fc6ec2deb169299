// Package vm implements demand-paged virtual memory: per-process supplemental
// page tables, a frame pool that evicts pages to swap or back to their files,
// page-fault resolution with stack growth, memory-mapped files, and copying
// of address spaces on fork.
package vm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sarchlab/vmsim/mem/vm/physmem"
	"github.com/sarchlab/vmsim/mem/vm/swap"
	"github.com/sarchlab/vmsim/sim"
)

// ExitStatusKilled is the status of a process terminated by a fatal fault.
const ExitStatusKilled = -1

// A Scheduler tells the virtual memory system which execution context is
// running.
type Scheduler interface {
	CurrentAddressSpace() *AddressSpace
	CurrentStackPointer() uint64
	TerminateCurrent(status int)
}

// System is the virtual memory system of one machine.
type System struct {
	*sim.HookableBase
	sim.NamedBase

	// lock guards the frame pool order and the swap bitmap. It is never held
	// across I/O.
	lock sync.Mutex

	mem       *physmem.Memory
	pageTable PageTable
	frames    *FramePool
	swap      *swap.Store
	scheduler Scheduler

	spacesLock sync.Mutex
	spaces     map[ASID]*AddressSpace
	nextASID   ASID
}

// Frames returns the frame pool.
func (s *System) Frames() *FramePool {
	return s.frames
}

// Swap returns the swap store.
func (s *System) Swap() *swap.Store {
	return s.swap
}

// PageTable returns the hardware page table.
func (s *System) PageTable() PageTable {
	return s.pageTable
}

// SetScheduler sets the scheduler consulted by HandleFault.
func (s *System) SetScheduler(sched Scheduler) {
	s.scheduler = sched
}

// NewAddressSpace creates an empty address space.
func (s *System) NewAddressSpace() *AddressSpace {
	s.spacesLock.Lock()
	defer s.spacesLock.Unlock()

	s.nextASID++
	as := &AddressSpace{id: s.nextASID, system: s}
	as.spt = newSupplementalPageTable(as)
	s.spaces[as.id] = as

	return as
}

// AddressSpace returns the live address space with the given ID.
func (s *System) AddressSpace(id ASID) (*AddressSpace, bool) {
	s.spacesLock.Lock()
	defer s.spacesLock.Unlock()

	as, found := s.spaces[id]

	return as, found
}

// AddressSpaces returns the live address spaces ordered by ID.
func (s *System) AddressSpaces() []*AddressSpace {
	s.spacesLock.Lock()
	defer s.spacesLock.Unlock()

	list := make([]*AddressSpace, 0, len(s.spaces))
	for _, as := range s.spaces {
		list = append(list, as)
	}

	sort.Slice(list, func(i, j int) bool { return list[i].id < list[j].id })

	return list
}

// DestroyAddressSpace destroys every page of the address space, writing dirty
// file-backed pages back, and forgets the address space. Every page is
// destroyed even if some write-backs fail; the failures are returned together.
func (s *System) DestroyAddressSpace(as *AddressSpace) error {
	var errs []error

	for _, p := range as.spt.Pages() {
		err := as.spt.RemoveAndDestroy(p.vAddr)
		if err != nil {
			errs = append(errs, err)
		}
	}

	s.pageTable.RemoveAll(as.id)

	s.spacesLock.Lock()
	delete(s.spaces, as.id)
	s.spacesLock.Unlock()

	return errors.Join(errs...)
}

// AllocateLazyPage registers a page at addr that is filled by load the first
// time it is claimed. typ is the type the page takes once claimed.
func (s *System) AllocateLazyPage(
	as *AddressSpace,
	addr uint64,
	writable bool,
	typ PageType,
	load LoadFunc,
	aux any,
) error {
	_, err := s.allocateLazyPage(as, addr, writable, typ, load, aux)
	return err
}

func (s *System) allocateLazyPage(
	as *AddressSpace,
	addr uint64,
	writable bool,
	typ PageType,
	load LoadFunc,
	aux any,
) (*Page, error) {
	if typ == PageTypeUninit {
		panic("lazy page must have a target type")
	}

	if typ == PageTypeFile {
		if _, ok := aux.(*FileAux); !ok {
			panic("file-backed page requires a *FileAux")
		}
	}

	if PageOffset(addr) != 0 {
		return nil, fmt.Errorf("allocate 0x%x: %w", addr, ErrBadAddress)
	}

	if !IsUserAddress(addr) {
		return nil, fmt.Errorf("allocate 0x%x: %w", addr, ErrKernelAddress)
	}

	p := newPage(as, addr, writable, &uninitPage{
		load:   load,
		aux:    aux,
		target: typ,
	})

	if !as.spt.Insert(p) {
		return nil, fmt.Errorf("allocate 0x%x: %w", addr, ErrPageExists)
	}

	return p, nil
}

// ClaimPage makes the page at addr resident right away.
func (s *System) ClaimPage(as *AddressSpace, addr uint64) error {
	p, found := as.spt.Find(addr)
	if !found {
		return fmt.Errorf("claim 0x%x: %w", addr, ErrNotMapped)
	}

	return s.claim(p)
}
