package vm

import (
	"container/list"

	"github.com/sarchlab/vmsim/mem/vm/physmem"
	"github.com/sarchlab/vmsim/mem/vm/swap"
	"github.com/sarchlab/vmsim/sim"
)

// A Builder can build a virtual memory System.
type Builder struct {
	numFrames    int
	physBase     uint64
	numSwapSlots int
	swapDevice   swap.Device
	maxPTEs      int
	scheduler    Scheduler
	victimFinder VictimFinder
}

// MakeBuilder creates a new builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numFrames:    64,
		physBase:     0x100000,
		numSwapSlots: 1024,
	}
}

// WithNumFrames sets the number of physical frames available for user pages.
func (b Builder) WithNumFrames(n int) Builder {
	b.numFrames = n
	return b
}

// WithPhysicalBase sets the physical address of the first frame.
func (b Builder) WithPhysicalBase(addr uint64) Builder {
	b.physBase = addr
	return b
}

// WithNumSwapSlots sets the number of page-sized slots of the swap store.
func (b Builder) WithNumSwapSlots(n int) Builder {
	b.numSwapSlots = n
	return b
}

// WithSwapDevice sets the device that holds swapped pages. If not set, the
// swap store lives in memory.
func (b Builder) WithSwapDevice(d swap.Device) Builder {
	b.swapDevice = d
	return b
}

// WithMaxPageTableEntries limits the number of hardware translations. Zero
// means no limit.
func (b Builder) WithMaxPageTableEntries(n int) Builder {
	b.maxPTEs = n
	return b
}

// WithScheduler sets the scheduler consulted by HandleFault.
func (b Builder) WithScheduler(s Scheduler) Builder {
	b.scheduler = s
	return b
}

// WithVictimFinder sets the eviction policy. FIFO is used if not set.
func (b Builder) WithVictimFinder(v VictimFinder) Builder {
	b.victimFinder = v
	return b
}

// Build returns a newly created System.
func (b Builder) Build(name string) *System {
	s := &System{
		HookableBase: sim.NewHookableBase(),
		NamedBase:    sim.MakeNamedBase(name),
		scheduler:    b.scheduler,
		spaces:       make(map[ASID]*AddressSpace),
	}

	s.mem = physmem.New(b.physBase, b.numFrames, PageSize)
	s.pageTable = NewPageTable(b.maxPTEs)

	b.createSwap(s)
	b.createFramePool(s)

	return s
}

func (b Builder) createSwap(s *System) {
	s.swap = swap.MakeBuilder().
		WithDevice(b.swapDevice).
		WithNumSlots(b.numSwapSlots).
		WithPageSize(int(PageSize)).
		WithLocker(&s.lock).
		Build()
}

func (b Builder) createFramePool(s *System) {
	victimFinder := b.victimFinder
	if victimFinder == nil {
		victimFinder = NewFIFOVictimFinder()
	}

	s.frames = &FramePool{
		lock:         &s.lock,
		mem:          s.mem,
		pageTable:    s.pageTable,
		victimFinder: victimFinder,
		evict:        s.evictPage,
		order:        list.New(),
	}
}
