package vm

import "fmt"

// HandleFault resolves a page fault of the running execution context at addr.
// write tells whether the access was a write and user whether it came from
// user code. A nil error means the access can be retried.
//
// The stack pointer used for stack growth is the one the scheduler reports,
// which is the user stack pointer saved when the context entered the kernel.
// A fault raised in kernel mode on behalf of a system call therefore grows
// the stack the same way a user fault does.
func (s *System) HandleFault(addr uint64, write, user bool) error {
	if s.scheduler == nil {
		return fmt.Errorf("fault at 0x%x: %w", addr, ErrNoContext)
	}

	as := s.scheduler.CurrentAddressSpace()
	if as == nil {
		return fmt.Errorf("fault at 0x%x: %w", addr, ErrNoContext)
	}

	sp := s.scheduler.CurrentStackPointer()

	return s.resolveFault(as, addr, write, user, sp)
}

// OnPageFault is the entry point of the page-fault trap. If the fault cannot
// be resolved, the running execution context is terminated with
// ExitStatusKilled and false is returned.
func (s *System) OnPageFault(addr uint64, write, user bool) bool {
	err := s.HandleFault(addr, write, user)
	if err == nil {
		return true
	}

	if s.scheduler != nil {
		s.scheduler.TerminateCurrent(ExitStatusKilled)
	}

	return false
}

func (s *System) resolveFault(
	as *AddressSpace,
	addr uint64,
	write, user bool,
	sp uint64,
) (err error) {
	evt := Event{
		ASID:  as.id,
		VAddr: addr,
		Frame: NoFrame,
		Write: write,
		User:  user,
	}
	s.report(HookPosPageFault, nil, evt)

	defer func() {
		if err != nil {
			evt.Err = err
			s.report(HookPosFaultFailed, nil, evt)
		}
	}()

	if !IsUserAddress(addr) {
		return fmt.Errorf("fault at 0x%x: %w", addr, ErrKernelAddress)
	}

	p, found := as.spt.Find(addr)
	if !found {
		if !isStackAccess(addr, sp) {
			return fmt.Errorf("fault at 0x%x: %w", addr, ErrNotMapped)
		}

		p, err = s.growStack(as, addr)
		if err != nil {
			return err
		}
	}

	if write && !p.writable {
		return fmt.Errorf("fault at 0x%x: %w", addr, ErrProtection)
	}

	return s.claim(p)
}

// growStack adds an anonymous stack page that contains addr.
func (s *System) growStack(as *AddressSpace, addr uint64) (*Page, error) {
	p := newPage(as, addr, true, &uninitPage{target: PageTypeAnon})
	p.stack = true

	if !as.spt.Insert(p) {
		// Another thread of the process may have grown the stack first.
		if existing, found := as.spt.Find(addr); found {
			return existing, nil
		}

		return nil, fmt.Errorf("grow stack to 0x%x: %w", addr, ErrPageExists)
	}

	s.report(HookPosStackGrowth, p, pageEvent(p))

	return p, nil
}
