// Package swap provides the swap store, a disk region divided into page-sized
// slots that holds anonymous pages while they are evicted.
package swap

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrFull is returned when every slot holds live content.
	ErrFull = errors.New("swap: no free slot")

	// ErrSlotNotInUse is returned when a page claims a slot whose bit is
	// clear. It indicates corrupted bookkeeping.
	ErrSlotNotInUse = errors.New("swap: slot not in use")
)

// Slot is the index of a page-sized region of the swap device.
type Slot int

// Store allocates swap slots and moves page contents in and out of them.
type Store struct {
	lock     sync.Locker
	dev      Device
	pageSize int
	used     bitmap
}

// NumSlots returns the capacity of the store.
func (s *Store) NumSlots() int {
	return s.used.size
}

// NumUsed returns the number of slots holding live content.
func (s *Store) NumUsed() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.used.count()
}

// InUse tells whether the slot holds live content.
func (s *Store) InUse(slot Slot) bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.used.test(int(slot))
}

// Allocate reserves the first free slot.
func (s *Store) Allocate() (Slot, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	i := s.used.scanAndFlip()
	if i < 0 {
		return 0, ErrFull
	}

	return Slot(i), nil
}

// Release marks the slot as free.
func (s *Store) Release(slot Slot) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.slotMustBeValid(slot)
	s.used.clear(int(slot))
}

// SwapOut stores one page of content in a newly allocated slot.
func (s *Store) SwapOut(page []byte) (Slot, error) {
	s.pageMustFit(page)

	slot, err := s.Allocate()
	if err != nil {
		return 0, err
	}

	n, err := s.dev.WriteAt(page, s.offset(slot))
	if err == nil && n != s.pageSize {
		err = fmt.Errorf("short write: %d of %d bytes", n, s.pageSize)
	}

	if err != nil {
		s.Release(slot)
		return 0, fmt.Errorf("swap out to slot %d: %w", slot, err)
	}

	return slot, nil
}

// SwapIn reads the content of the slot into page and frees the slot.
func (s *Store) SwapIn(slot Slot, page []byte) error {
	s.pageMustFit(page)

	if !s.InUse(slot) {
		return fmt.Errorf("swap in from slot %d: %w", slot, ErrSlotNotInUse)
	}

	n, err := s.dev.ReadAt(page, s.offset(slot))
	if err == nil && n != s.pageSize {
		err = fmt.Errorf("short read: %d of %d bytes", n, s.pageSize)
	}

	if err != nil {
		return fmt.Errorf("swap in from slot %d: %w", slot, err)
	}

	s.Release(slot)

	return nil
}

func (s *Store) offset(slot Slot) int64 {
	return int64(slot) * int64(s.pageSize)
}

func (s *Store) slotMustBeValid(slot Slot) {
	if slot < 0 || int(slot) >= s.used.size {
		panic(fmt.Sprintf("swap slot %d out of range", slot))
	}
}

func (s *Store) pageMustFit(page []byte) {
	if len(page) != s.pageSize {
		panic(fmt.Sprintf("page of %d bytes, want %d", len(page), s.pageSize))
	}
}
