package vm

import (
	"bytes"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Concurrent processes", func() {
	const (
		numProcesses = 4
		numPages     = 16
		numRounds    = 3
		base         = uint64(0x400000)
	)

	var s *System

	BeforeEach(func() {
		s = MakeBuilder().
			WithNumFrames(4).
			WithNumSwapSlots(numProcesses * numPages).
			Build("VM")
	})

	content := func(proc, page, round int) []byte {
		return bytes.Repeat([]byte{byte(proc<<5 | page<<1 | round&1)}, 64)
	}

	run := func(proc int, as *AddressSpace) error {
		for round := 0; round < numRounds; round++ {
			for page := 0; page < numPages; page++ {
				addr := base + uint64(page)*PageSize + uint64(proc)
				err := s.Write(as, addr, content(proc, page, round))
				if err != nil {
					return err
				}
			}

			for page := 0; page < numPages; page++ {
				addr := base + uint64(page)*PageSize + uint64(proc)
				buf := make([]byte, 64)
				err := s.Read(as, addr, buf)
				if err != nil {
					return err
				}

				if !bytes.Equal(buf, content(proc, page, round)) {
					return fmt.Errorf("process %d page %d round %d: got %x",
						proc, page, round, buf[0])
				}
			}
		}

		return nil
	}

	It("should keep every address space intact under eviction", func() {
		spaces := make([]*AddressSpace, numProcesses)
		for i := range spaces {
			spaces[i] = s.NewAddressSpace()
			for page := 0; page < numPages; page++ {
				Expect(s.AllocateLazyPage(spaces[i],
					base+uint64(page)*PageSize, true,
					PageTypeAnon, nil, nil)).To(Succeed())
			}
		}

		var (
			wg   sync.WaitGroup
			lock sync.Mutex
			errs []error
		)

		for i, as := range spaces {
			wg.Add(1)
			go func(proc int, as *AddressSpace) {
				defer GinkgoRecover()
				defer wg.Done()

				err := run(proc, as)
				if err != nil {
					lock.Lock()
					errs = append(errs, err)
					lock.Unlock()
				}
			}(i, as)
		}

		wg.Wait()

		Expect(errs).To(BeEmpty())
		Expect(s.Frames().NumInUse()).To(Equal(4))

		for _, as := range spaces {
			Expect(s.DestroyAddressSpace(as)).To(Succeed())
		}
		Expect(s.Frames().NumInUse()).To(BeZero())
	})
})
