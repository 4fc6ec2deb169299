package vm

import "errors"

// Errors reported to the system-call layer and to the fault handler.
var (
	// ErrPageExists is returned when the address already has a page.
	ErrPageExists = errors.New("vm: page already exists")

	// ErrNotMapped is returned when nothing is mapped at the address.
	ErrNotMapped = errors.New("vm: address not mapped")

	// ErrKernelAddress is returned for user accesses to kernel space.
	ErrKernelAddress = errors.New("vm: kernel address")

	// ErrProtection is returned for writes to read-only pages.
	ErrProtection = errors.New("vm: write to read-only page")

	// ErrNoVictim is returned when memory is full and no frame can be evicted.
	ErrNoVictim = errors.New("vm: no frame to evict")

	// ErrShortRead is returned when a file yields fewer bytes than the page
	// expects.
	ErrShortRead = errors.New("vm: short read from backing file")

	// ErrShortWrite is returned when a write-back stores fewer bytes than the
	// page holds.
	ErrShortWrite = errors.New("vm: short write to backing file")

	// ErrBadMmap is returned when mmap arguments are invalid or collide with
	// existing mappings.
	ErrBadMmap = errors.New("vm: invalid mmap request")

	// ErrEmptyFile is returned when mapping a file of length zero.
	ErrEmptyFile = errors.New("vm: cannot map empty file")

	// ErrNotMmapBase is returned when munmap is given an address that is not
	// the start of a mapping.
	ErrNotMmapBase = errors.New("vm: address is not the base of a mapping")

	// ErrBadAddress is returned for addresses that are not page aligned.
	ErrBadAddress = errors.New("vm: address not page aligned")

	// ErrNoContext is returned for a fault taken while no address space is
	// running.
	ErrNoContext = errors.New("vm: no running address space")

	// ErrPageTableFull is returned when the hardware page table cannot hold
	// another entry.
	ErrPageTableFull = errors.New("vm: page table full")
)
