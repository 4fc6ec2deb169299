// Package tracing collects the events a virtual memory system reports
// through its hooks.
package tracing

import (
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/sim"
)

// A Tracer receives the events of the domains it is attached to.
type Tracer interface {
	// RecordEvent is called once per event. page is the page involved, or
	// nil.
	RecordEvent(pos *sim.HookPos, page *vm.Page, evt vm.Event)
}
