package tracing

import (
	"sync"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/sim"
)

// EventCounter counts the events of each kind, and the failed ones
// separately.
type EventCounter struct {
	lock         sync.Mutex
	posNames     []string
	count        map[string]uint64
	failureCount map[string]uint64
	perSpace     map[vm.ASID]uint64
}

// NewEventCounter creates a new EventCounter
func NewEventCounter() *EventCounter {
	return &EventCounter{
		count:        make(map[string]uint64),
		failureCount: make(map[string]uint64),
		perSpace:     make(map[vm.ASID]uint64),
	}
}

// RecordEvent counts one event.
func (c *EventCounter) RecordEvent(pos *sim.HookPos, _ *vm.Page, evt vm.Event) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if _, ok := c.count[pos.Name]; !ok {
		c.posNames = append(c.posNames, pos.Name)
	}

	c.count[pos.Name]++
	c.perSpace[evt.ASID]++

	if evt.Err != nil {
		c.failureCount[pos.Name]++
	}
}

// GetPosNames returns the names of the positions seen, in the order they
// were first seen.
func (c *EventCounter) GetPosNames() []string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return append([]string(nil), c.posNames...)
}

// GetCount returns the number of events reported at a position.
func (c *EventCounter) GetCount(pos *sim.HookPos) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.count[pos.Name]
}

// GetFailureCount returns the number of events reported at a position that
// carried an error.
func (c *EventCounter) GetFailureCount(pos *sim.HookPos) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.failureCount[pos.Name]
}

// GetSpaceCount returns the number of events of one address space.
func (c *EventCounter) GetSpaceCount(asid vm.ASID) uint64 {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.perSpace[asid]
}
