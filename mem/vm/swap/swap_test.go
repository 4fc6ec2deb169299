package swap

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type brokenDevice struct {
	*MemDevice
	failWrite bool
	failRead  bool
}

func (d *brokenDevice) WriteAt(p []byte, off int64) (int, error) {
	if d.failWrite {
		return 0, errors.New("disk error")
	}

	return d.MemDevice.WriteAt(p, off)
}

func (d *brokenDevice) ReadAt(p []byte, off int64) (int, error) {
	if d.failRead {
		return 0, errors.New("disk error")
	}

	return d.MemDevice.ReadAt(p, off)
}

var _ = Describe("Store", func() {
	const pageSize = 64

	var (
		dev   *brokenDevice
		store *Store
	)

	page := func(fill byte) []byte {
		return bytes.Repeat([]byte{fill}, pageSize)
	}

	BeforeEach(func() {
		dev = &brokenDevice{MemDevice: NewMemDevice(3 * pageSize)}
		store = MakeBuilder().
			WithDevice(dev).
			WithNumSlots(3).
			WithPageSize(pageSize).
			Build()
	})

	It("should allocate the first clear slot", func() {
		a, _ := store.Allocate()
		b, _ := store.Allocate()
		store.Release(a)

		c, err := store.Allocate()

		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(Slot(1)))
		Expect(c).To(Equal(Slot(0)))
	})

	It("should fail when all slots are used", func() {
		for i := 0; i < 3; i++ {
			_, err := store.Allocate()
			Expect(err).NotTo(HaveOccurred())
		}

		_, err := store.Allocate()

		Expect(err).To(MatchError(ErrFull))
	})

	It("should reproduce swapped content", func() {
		slot, err := store.SwapOut(page(0xab))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.InUse(slot)).To(BeTrue())

		buf := make([]byte, pageSize)
		err = store.SwapIn(slot, buf)

		Expect(err).NotTo(HaveOccurred())
		Expect(buf).To(Equal(page(0xab)))
		Expect(store.InUse(slot)).To(BeFalse())
		Expect(store.NumUsed()).To(Equal(0))
	})

	It("should free the slot when the write fails", func() {
		dev.failWrite = true

		_, err := store.SwapOut(page(1))

		Expect(err).To(HaveOccurred())
		Expect(store.NumUsed()).To(Equal(0))
	})

	It("should keep the slot when the read fails", func() {
		slot, _ := store.SwapOut(page(1))
		dev.failRead = true

		err := store.SwapIn(slot, make([]byte, pageSize))

		Expect(err).To(HaveOccurred())
		Expect(store.InUse(slot)).To(BeTrue())
	})

	It("should reject swapping in a free slot", func() {
		err := store.SwapIn(2, make([]byte, pageSize))

		Expect(errors.Is(err, ErrSlotNotInUse)).To(BeTrue())
	})

	It("should panic on a page of the wrong size", func() {
		Expect(func() { _, _ = store.SwapOut(make([]byte, 3)) }).To(Panic())
	})

	It("should work on a swap file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "swap.bin")
		f, err := NewFileDevice(path, 3*pageSize)
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		fileStore := MakeBuilder().
			WithDevice(f).
			WithNumSlots(3).
			WithPageSize(pageSize).
			Build()

		slot, err := fileStore.SwapOut(page(7))
		Expect(err).NotTo(HaveOccurred())

		info, _ := os.Stat(path)
		Expect(info.Size()).To(Equal(int64(3 * pageSize)))

		buf := make([]byte, pageSize)
		Expect(fileStore.SwapIn(slot, buf)).To(Succeed())
		Expect(buf).To(Equal(page(7)))
	})
})
