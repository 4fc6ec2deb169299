package vm

import "fmt"

// Read copies len(buf) bytes of user memory starting at addr into buf, the way
// a user load would: missing translations raise page faults.
func (s *System) Read(as *AddressSpace, addr uint64, buf []byte) error {
	return s.access(as, addr, buf, false)
}

// Write copies data into user memory starting at addr, the way a user store
// would. It sets the dirty bit of every page it touches.
func (s *System) Write(as *AddressSpace, addr uint64, data []byte) error {
	return s.access(as, addr, data, true)
}

func (s *System) access(
	as *AddressSpace,
	addr uint64,
	buf []byte,
	write bool,
) error {
	if addr+uint64(len(buf)) < addr {
		return fmt.Errorf("access at 0x%x: %w", addr, ErrKernelAddress)
	}

	for len(buf) > 0 {
		n := min(uint64(len(buf)), PageSize-PageOffset(addr))

		err := s.accessPage(as, addr, buf[:n], write)
		if err != nil {
			return err
		}

		addr += n
		buf = buf[n:]
	}

	return nil
}

// accessPage copies between buf and the page that holds addr. buf does not
// cross a page boundary.
func (s *System) accessPage(
	as *AddressSpace,
	addr uint64,
	buf []byte,
	write bool,
) error {
	for {
		pte, found := s.pageTable.Find(as.id, addr)
		if !found || (write && !pte.Writable) {
			err := s.resolveFault(as, addr, write, true, s.stackPointer(as))
			if err != nil {
				return err
			}

			continue
		}

		p, found := as.spt.Find(addr)
		if !found {
			return fmt.Errorf("access at 0x%x: %w", addr, ErrNotMapped)
		}

		if s.copyResident(p, addr, buf, write) {
			return nil
		}
	}
}

// copyResident performs the copy if the page is still resident.
func (s *System) copyResident(p *Page, addr uint64, buf []byte, write bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frame == NoFrame {
		return false
	}

	content := s.frames.Content(p.frame)[PageOffset(addr):]
	if write {
		copy(content, buf)
	} else {
		copy(buf, content)
	}

	s.pageTable.Touch(p.owner.id, p.vAddr, write)

	return true
}

// stackPointer returns the stack pointer to use when as faults. Only the
// running context has one; other accesses may only grow the stack by a word.
func (s *System) stackPointer(as *AddressSpace) uint64 {
	if s.scheduler != nil && s.scheduler.CurrentAddressSpace() == as {
		return s.scheduler.CurrentStackPointer()
	}

	return UserStackTop
}

// CheckUserBuffer validates a buffer passed to a system call. Every page of
// [addr, addr+size) must be user memory that is mapped, or a valid stack
// growth, and must be writable if the kernel is going to write it.
func (s *System) CheckUserBuffer(
	as *AddressSpace,
	addr, size uint64,
	write bool,
) error {
	if size == 0 {
		return nil
	}

	end := addr + size
	if end < addr || !IsUserAddress(addr) || !IsUserAddress(end-1) {
		return fmt.Errorf("buffer at 0x%x: %w", addr, ErrKernelAddress)
	}

	for va := PageRoundDown(addr); va < end; va += PageSize {
		p, found := as.spt.Find(va)
		if !found {
			err := s.resolveFault(as, max(va, addr), write, false,
				s.stackPointer(as))
			if err != nil {
				return err
			}

			continue
		}

		if write && !p.writable {
			return fmt.Errorf("buffer at 0x%x: %w", va, ErrProtection)
		}
	}

	return nil
}
