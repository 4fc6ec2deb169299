package vm

import (
	"bytes"
	"log"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Event hooks", func() {
	var (
		s  *System
		as *AddressSpace
	)

	BeforeEach(func() {
		s = MakeBuilder().WithNumFrames(1).Build("VM")
		as = s.NewAddressSpace()
		for _, addr := range []uint64{0x1000, 0x2000} {
			Expect(s.AllocateLazyPage(
				as, addr, true, PageTypeAnon, nil, nil)).To(Succeed())
		}
	})

	It("should log swap activity", func() {
		var out bytes.Buffer
		s.AcceptHook(NewEventLogger(log.New(&out, "", 0)))

		Expect(s.Write(as, 0x1000, []byte{1})).To(Succeed())
		Expect(s.Write(as, 0x2000, []byte{2})).To(Succeed())

		Expect(out.String()).To(ContainSubstring("VM SwapOut asid=1 va=0x1000 slot=0"))
		Expect(out.String()).To(ContainSubstring("VM Claim asid=1 va=0x2000 frame=0"))
	})

	It("should trace events as CSV", func() {
		var out bytes.Buffer
		s.AcceptHook(NewTracer(&out))

		Expect(s.Write(as, 0x1000, []byte{1})).To(Succeed())

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		Expect(lines).To(Equal([]string{
			`PageFault,1,0x1000,-1,0,""`,
			`Claim,1,0x1000,0,0,""`,
		}))
	})
})
