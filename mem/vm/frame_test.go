package vm

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/mem/vm/swap"
)

var _ = Describe("FramePool", func() {
	var (
		s  *System
		as *AddressSpace
	)

	fill := func(b byte) []byte {
		return bytes.Repeat([]byte{b}, int(PageSize))
	}

	allocAnon := func(addrs ...uint64) {
		for _, addr := range addrs {
			err := s.AllocateLazyPage(as, addr, true, PageTypeAnon, nil, nil)
			Expect(err).NotTo(HaveOccurred())
		}
	}

	page := func(addr uint64) *Page {
		p, found := as.SPT().Find(addr)
		Expect(found).To(BeTrue())

		return p
	}

	Context("when memory is available", func() {
		BeforeEach(func() {
			s = MakeBuilder().WithNumFrames(4).Build("VM")
			as = s.NewAddressSpace()
		})

		It("should list every frame in the layout", func() {
			allocAnon(0x10000)
			Expect(s.ClaimPage(as, 0x10000)).To(Succeed())
			id, _ := page(0x10000).Frame()

			layout := s.Frames().Layout()

			Expect(layout).To(HaveLen(4))
			bound := 0
			for i, info := range layout {
				if i > 0 {
					Expect(info.PAddr).To(BeNumerically(">", layout[i-1].PAddr))
				}

				if !info.Bound {
					Expect(info.ID).To(Equal(NoFrame))
					continue
				}

				bound++
				Expect(info.ID).To(Equal(id))
				Expect(info.ASID).To(Equal(as.ID()))
				Expect(info.VAddr).To(Equal(uint64(0x10000)))
			}
			Expect(bound).To(Equal(1))
		})

		It("should bind the frame and the page to each other", func() {
			allocAnon(0x10000)

			err := s.ClaimPage(as, 0x10000)

			Expect(err).NotTo(HaveOccurred())
			id, resident := page(0x10000).Frame()
			Expect(resident).To(BeTrue())

			frames := s.Frames().Snapshot()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].ID).To(Equal(id))
			Expect(frames[0].Bound).To(BeTrue())
			Expect(frames[0].VAddr).To(Equal(uint64(0x10000)))

			pte, found := s.PageTable().Find(as.ID(), 0x10000)
			Expect(found).To(BeTrue())
			Expect(pte.PAddr).To(Equal(frames[0].PAddr))
			Expect(pte.Writable).To(BeTrue())
		})

		It("should zero-fill a fresh anonymous page", func() {
			allocAnon(0x10000)
			buf := fill(0xff)

			err := s.Read(as, 0x10000, buf)

			Expect(err).NotTo(HaveOccurred())
			Expect(buf).To(Equal(make([]byte, PageSize)))
			Expect(page(0x10000).Type()).To(Equal(PageTypeAnon))
		})

		It("should not claim a resident page twice", func() {
			allocAnon(0x10000)
			Expect(s.ClaimPage(as, 0x10000)).To(Succeed())

			Expect(s.ClaimPage(as, 0x10000)).To(Succeed())

			Expect(s.Frames().NumInUse()).To(Equal(1))
		})

		It("should give the frame back when the page is destroyed", func() {
			allocAnon(0x10000)
			Expect(s.ClaimPage(as, 0x10000)).To(Succeed())

			err := as.SPT().RemoveAndDestroy(0x10000)

			Expect(err).NotTo(HaveOccurred())
			Expect(s.Frames().NumInUse()).To(Equal(0))
			_, found := s.PageTable().Find(as.ID(), 0x10000)
			Expect(found).To(BeFalse())
		})
	})

	Context("when memory is exhausted", func() {
		BeforeEach(func() {
			s = MakeBuilder().
				WithNumFrames(2).
				WithNumSwapSlots(4).
				Build("VM")
			as = s.NewAddressSpace()
			allocAnon(0x10000, 0x11000, 0x12000)
		})

		It("should evict the oldest frame", func() {
			Expect(s.Write(as, 0x10000, fill(0xa))).To(Succeed())
			Expect(s.Write(as, 0x11000, fill(0xb))).To(Succeed())
			oldest := s.Frames().Snapshot()[0]

			Expect(s.Write(as, 0x12000, fill(0xc))).To(Succeed())

			Expect(s.Frames().NumInUse()).To(Equal(2))
			Expect(page(0x10000).IsResident()).To(BeFalse())
			Expect(page(0x11000).IsResident()).To(BeTrue())
			id, _ := page(0x12000).Frame()
			Expect(id).To(Equal(oldest.ID))

			slot, swapped := page(0x10000).SwapSlot()
			Expect(swapped).To(BeTrue())
			Expect(s.Swap().InUse(slot)).To(BeTrue())
		})

		It("should bring swapped content back and free the slot", func() {
			Expect(s.Write(as, 0x10000, fill(0xa))).To(Succeed())
			Expect(s.Write(as, 0x11000, fill(0xb))).To(Succeed())
			Expect(s.Write(as, 0x12000, fill(0xc))).To(Succeed())
			slot, _ := page(0x10000).SwapSlot()

			buf := make([]byte, PageSize)
			err := s.Read(as, 0x10000, buf)

			Expect(err).NotTo(HaveOccurred())
			Expect(buf).To(Equal(fill(0xa)))
			Expect(s.Swap().InUse(slot)).To(BeFalse())
			Expect(page(0x11000).IsResident()).To(BeFalse())
			Expect(s.Frames().NumInUse()).To(Equal(2))
		})

		It("should release the slot of a destroyed swapped page", func() {
			Expect(s.Write(as, 0x10000, fill(0xa))).To(Succeed())
			Expect(s.Write(as, 0x11000, fill(0xb))).To(Succeed())
			Expect(s.Write(as, 0x12000, fill(0xc))).To(Succeed())

			Expect(s.DestroyAddressSpace(as)).To(Succeed())

			Expect(s.Swap().NumUsed()).To(Equal(0))
			Expect(s.Frames().NumInUse()).To(Equal(0))
			Expect(s.PageTable().Len()).To(Equal(0))
		})
	})

	Context("when swap is full", func() {
		BeforeEach(func() {
			s = MakeBuilder().
				WithNumFrames(1).
				WithNumSwapSlots(1).
				Build("VM")
			as = s.NewAddressSpace()
			allocAnon(0x10000, 0x11000, 0x12000)
		})

		It("should fail the claim and keep the victim in its frame", func() {
			Expect(s.Write(as, 0x10000, fill(0xa))).To(Succeed())
			Expect(s.Write(as, 0x11000, fill(0xb))).To(Succeed())
			victim, _ := page(0x11000).Frame()

			err := s.ClaimPage(as, 0x12000)

			Expect(err).To(MatchError(swap.ErrFull))
			Expect(page(0x12000).IsResident()).To(BeFalse())
			id, resident := page(0x11000).Frame()
			Expect(resident).To(BeTrue())
			Expect(id).To(Equal(victim))

			buf := make([]byte, PageSize)
			Expect(s.Read(as, 0x11000, buf)).To(Succeed())
			Expect(buf).To(Equal(fill(0xb)))
		})
	})

	Context("when the page table is full", func() {
		BeforeEach(func() {
			s = MakeBuilder().
				WithNumFrames(4).
				WithMaxPageTableEntries(1).
				Build("VM")
			as = s.NewAddressSpace()
			allocAnon(0x10000, 0x11000)
		})

		It("should return the frame to the pool", func() {
			Expect(s.ClaimPage(as, 0x10000)).To(Succeed())

			err := s.ClaimPage(as, 0x11000)

			Expect(err).To(MatchError(ErrPageTableFull))
			Expect(page(0x11000).IsResident()).To(BeFalse())
			Expect(s.Frames().NumInUse()).To(Equal(1))
		})
	})
})
