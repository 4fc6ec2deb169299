package main

import (
	"sync"

	"github.com/sarchlab/vmsim/mem/vm"
)

// A process is an execution context with its own address space.
type process struct {
	as     *vm.AddressSpace
	sp     uint64
	exited bool
	status int
}

// scheduler runs one process at a time.
type scheduler struct {
	lock    sync.Mutex
	current *process
}

func (s *scheduler) run(p *process) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.current = p
}

func (s *scheduler) CurrentAddressSpace() *vm.AddressSpace {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.current == nil {
		return nil
	}

	return s.current.as
}

func (s *scheduler) CurrentStackPointer() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.current == nil {
		return vm.UserStackTop
	}

	return s.current.sp
}

func (s *scheduler) TerminateCurrent(status int) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.current == nil {
		return
	}

	s.current.exited = true
	s.current.status = status
	s.current = nil
}

func (s *scheduler) setStackPointer(sp uint64) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.current.sp = sp
}
