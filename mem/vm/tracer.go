package vm

import (
	"fmt"
	"io"

	"github.com/sarchlab/vmsim/sim"
)

// A Tracer writes one CSV line per event of a System.
type Tracer struct {
	writer io.Writer
}

// NewTracer produce a new Tracer, injecting the dependency of a writer.
func NewTracer(w io.Writer) *Tracer {
	t := new(Tracer)
	t.writer = w

	return t
}

// Func prints the event as pos,asid,vaddr,frame,slot,error.
func (t *Tracer) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Detail.(Event)
	if !ok {
		return
	}

	errStr := ""
	if evt.Err != nil {
		errStr = evt.Err.Error()
	}

	_, err := fmt.Fprintf(t.writer,
		"%s,%d,0x%x,%d,%d,%q\n",
		ctx.Pos.Name, evt.ASID, evt.VAddr, evt.Frame, evt.Slot, errStr)
	if err != nil {
		panic(err)
	}
}
