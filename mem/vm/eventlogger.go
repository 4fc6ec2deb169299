package vm

import (
	"log"

	"github.com/sarchlab/vmsim/sim"
)

// EventLogger is a hook that prints every event of a System.
type EventLogger struct {
	sim.LogHookBase
}

// NewEventLogger returns a new EventLogger which will write into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	h := new(EventLogger)
	h.Logger = logger

	return h
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Detail.(Event)
	if !ok {
		return
	}

	name := ""
	if named, ok := ctx.Domain.(sim.Named); ok {
		name = named.Name()
	}

	switch {
	case evt.Err != nil:
		h.Printf("%s %s asid=%d va=0x%x: %v",
			name, ctx.Pos.Name, evt.ASID, evt.VAddr, evt.Err)
	case ctx.Pos == HookPosSwapOut || ctx.Pos == HookPosSwapIn:
		h.Printf("%s %s asid=%d va=0x%x slot=%d",
			name, ctx.Pos.Name, evt.ASID, evt.VAddr, evt.Slot)
	default:
		h.Printf("%s %s asid=%d va=0x%x frame=%d",
			name, ctx.Pos.Name, evt.ASID, evt.VAddr, evt.Frame)
	}
}
