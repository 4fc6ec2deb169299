package physmem

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Memory", func() {
	var m *Memory

	BeforeEach(func() {
		m = New(0x100000, 2, 4096)
	})

	It("should hand out the lowest frame first", func() {
		paddr, err := m.Alloc()

		Expect(err).NotTo(HaveOccurred())
		Expect(paddr).To(Equal(uint64(0x100000)))
		Expect(m.NumFree()).To(Equal(1))
	})

	It("should report exhaustion", func() {
		_, _ = m.Alloc()
		_, _ = m.Alloc()

		_, err := m.Alloc()

		Expect(err).To(MatchError(ErrOutOfMemory))
	})

	It("should reuse freed frames", func() {
		a, _ := m.Alloc()
		_, _ = m.Alloc()
		m.Free(a)

		b, err := m.Alloc()

		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(a))
	})

	It("should give each frame its own bytes", func() {
		a, _ := m.Alloc()
		b, _ := m.Alloc()

		m.Page(a)[0] = 1
		m.Page(b)[0] = 2

		Expect(m.Page(a)).To(HaveLen(4096))
		Expect(m.Page(a)[0]).To(Equal(byte(1)))
		Expect(m.Page(b)[0]).To(Equal(byte(2)))
	})

	It("should panic on double free", func() {
		a, _ := m.Alloc()
		m.Free(a)

		Expect(func() { m.Free(a) }).To(Panic())
	})

	It("should panic on misaligned address", func() {
		Expect(func() { m.Page(0x100001) }).To(Panic())
	})
})
