package sim_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/sim"
)

var _ = Describe("HookableBase", func() {
	var (
		domain *sim.HookableBase
		pos    *sim.HookPos
	)

	BeforeEach(func() {
		domain = sim.NewHookableBase()
		pos = &sim.HookPos{Name: "Test"}
	})

	It("should invoke hooks in registration order", func() {
		var calls []string

		domain.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			calls = append(calls, "first:"+ctx.Pos.Name)
		}))
		domain.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			calls = append(calls, "second:"+ctx.Detail.(string))
		}))

		domain.InvokeHook(sim.HookCtx{Domain: domain, Pos: pos, Detail: "x"})

		Expect(domain.NumHooks()).To(Equal(2))
		Expect(domain.Hooks()).To(HaveLen(2))
		Expect(calls).To(Equal([]string{"first:Test", "second:x"}))
	})

	It("should not show a hook added during invocation to that invocation",
		func() {
			count := 0
			domain.AcceptHook(sim.HookFunc(func(sim.HookCtx) {
				count++
				domain.AcceptHook(sim.HookFunc(func(sim.HookCtx) {}))
			}))

			domain.InvokeHook(sim.HookCtx{Pos: pos})

			Expect(count).To(Equal(1))
			Expect(domain.NumHooks()).To(Equal(2))
		})

	It("should accept hooks while invoking from other goroutines", func() {
		var (
			wg    sync.WaitGroup
			lock  sync.Mutex
			count int
		)

		for i := 0; i < 8; i++ {
			wg.Add(2)

			go func() {
				defer wg.Done()
				domain.AcceptHook(sim.HookFunc(func(sim.HookCtx) {
					lock.Lock()
					count++
					lock.Unlock()
				}))
			}()

			go func() {
				defer wg.Done()
				domain.InvokeHook(sim.HookCtx{Pos: pos})
			}()
		}

		wg.Wait()

		count = 0
		domain.InvokeHook(sim.HookCtx{Pos: pos})
		Expect(count).To(Equal(8))
	})
})

var _ = Describe("IDGenerator", func() {
	It("should generate sequential IDs", func() {
		g := sim.NewSequentialIDGenerator()

		Expect(g.Generate()).To(Equal("1"))
		Expect(g.Generate()).To(Equal("2"))
	})

	It("should generate unique IDs", func() {
		g := sim.NewUniqueIDGenerator()
		seen := make(map[string]bool)

		for i := 0; i < 100; i++ {
			id := g.Generate()
			Expect(seen).ToNot(HaveKey(id))
			seen[id] = true
		}
	})
})

var _ = Describe("NamedBase", func() {
	It("should return its name", func() {
		Expect(sim.MakeNamedBase("VM").Name()).To(Equal("VM"))
	})
})
