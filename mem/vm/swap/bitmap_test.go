package swap

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("bitmap", func() {
	It("should scan across words", func() {
		b := newBitmap(130)
		for i := 0; i < 128; i++ {
			b.set(i)
		}

		Expect(b.scanAndFlip()).To(Equal(128))
		Expect(b.scanAndFlip()).To(Equal(129))
		Expect(b.scanAndFlip()).To(Equal(-1))
		Expect(b.count()).To(Equal(130))
	})

	It("should clear bits", func() {
		b := newBitmap(8)
		b.set(3)
		b.clear(3)

		Expect(b.test(3)).To(BeFalse())
		Expect(b.scanAndFlip()).To(Equal(0))
	})
})
