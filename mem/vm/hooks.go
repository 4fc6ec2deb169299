package vm

import (
	"github.com/sarchlab/vmsim/mem/vm/swap"
	"github.com/sarchlab/vmsim/sim"
)

// Hook positions at which a System reports what it does. The Item of the hook
// context is the *Page involved, or nil; the Detail is an Event. Hooks may run
// with the page locked, so they must not call Page methods that lock it.
var (
	HookPosPageFault   = &sim.HookPos{Name: "PageFault"}
	HookPosFaultFailed = &sim.HookPos{Name: "FaultFailed"}
	HookPosStackGrowth = &sim.HookPos{Name: "StackGrowth"}
	HookPosClaim       = &sim.HookPos{Name: "Claim"}
	HookPosEvict       = &sim.HookPos{Name: "Evict"}
	HookPosSwapOut     = &sim.HookPos{Name: "SwapOut"}
	HookPosSwapIn      = &sim.HookPos{Name: "SwapIn"}
	HookPosWriteBack   = &sim.HookPos{Name: "WriteBack"}
	HookPosMmap        = &sim.HookPos{Name: "Mmap"}
	HookPosMunmap      = &sim.HookPos{Name: "Munmap"}
	HookPosFork        = &sim.HookPos{Name: "Fork"}
)

// HookPositions lists every position a System reports at.
var HookPositions = []*sim.HookPos{
	HookPosPageFault,
	HookPosFaultFailed,
	HookPosStackGrowth,
	HookPosClaim,
	HookPosEvict,
	HookPosSwapOut,
	HookPosSwapIn,
	HookPosWriteBack,
	HookPosMmap,
	HookPosMunmap,
	HookPosFork,
}

// An Event is the detail of a hook invocation.
type Event struct {
	ASID   ASID
	VAddr  uint64
	Frame  FrameID
	Slot   swap.Slot
	Length uint64
	Write  bool
	User   bool
	Err    error
}

func (s *System) report(pos *sim.HookPos, p *Page, evt Event) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(sim.HookCtx{
		Domain: s,
		Pos:    pos,
		Item:   p,
		Detail: evt,
	})
}

func pageEvent(p *Page) Event {
	return Event{
		ASID:  p.owner.id,
		VAddr: p.vAddr,
		Frame: p.frame,
	}
}
