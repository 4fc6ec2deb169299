package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/sim"
)

// NamedHookable represent something both have a name and can be hooked
type NamedHookable interface {
	sim.Named
	sim.Hookable
}

// CollectTrace let the tracer to collect trace from a domain
func CollectTrace(domain NamedHookable, tracer Tracer) {
	for _, hook := range domain.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf(
				"domain %s already has tracer %s",
				domain.Name(), reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(&traceHook{t: tracer})
}

// A traceHook forwards the events of a domain to a tracer.
type traceHook struct {
	t Tracer
}

// Func calls the tracer when the hook is triggered
func (h *traceHook) Func(ctx sim.HookCtx) {
	evt, ok := ctx.Detail.(vm.Event)
	if !ok {
		return
	}

	page, _ := ctx.Item.(*vm.Page)
	h.t.RecordEvent(ctx.Pos, page, evt)
}
