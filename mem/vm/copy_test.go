package vm

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/vmsim/mem/vm/filesys"
)

var _ = Describe("CopyAddressSpace", func() {
	const (
		anonAddr uint64 = 0x400000
		lazyAddr uint64 = 0x401000
		fileAddr uint64 = 0x10000000
	)

	var (
		s      *System
		parent *AddressSpace
		child  *AddressSpace
		file   *filesys.MemFile
	)

	BeforeEach(func() {
		s = MakeBuilder().WithNumFrames(8).Build("VM")
		parent = s.NewAddressSpace()
		child = s.NewAddressSpace()
		file = filesys.NewMemFile(bytes.Repeat([]byte{5}, int(PageSize)))

		Expect(s.AllocateLazyPage(
			parent, anonAddr, true, PageTypeAnon, nil, nil)).To(Succeed())
		Expect(s.AllocateLazyPage(
			parent, lazyAddr, true, PageTypeAnon, nil, nil)).To(Succeed())
		_, err := s.Mmap(parent, fileAddr, PageSize, true, file, 0)
		Expect(err).NotTo(HaveOccurred())

		Expect(s.Write(parent, anonAddr, []byte("parent"))).To(Succeed())
		Expect(s.Write(parent, fileAddr, []byte{6})).To(Succeed())
	})

	It("should copy every page", func() {
		err := s.CopyAddressSpace(child, parent)

		Expect(err).NotTo(HaveOccurred())
		Expect(child.SPT().Len()).To(Equal(3))

		buf := make([]byte, 6)
		Expect(s.Read(child, anonAddr, buf)).To(Succeed())
		Expect(string(buf)).To(Equal("parent"))

		buf = make([]byte, 2)
		Expect(s.Read(child, fileAddr, buf)).To(Succeed())
		Expect(buf).To(Equal([]byte{6, 5}))
	})

	It("should keep untouched pages lazy", func() {
		Expect(s.CopyAddressSpace(child, parent)).To(Succeed())

		p, found := child.SPT().Find(lazyAddr)

		Expect(found).To(BeTrue())
		Expect(p.Type()).To(Equal(PageTypeUninit))
		Expect(p.IsResident()).To(BeFalse())
	})

	It("should give the child frames of its own", func() {
		Expect(s.CopyAddressSpace(child, parent)).To(Succeed())

		pp, _ := parent.SPT().Find(anonAddr)
		cp, _ := child.SPT().Find(anonAddr)
		parentFrame, _ := pp.Frame()
		childFrame, resident := cp.Frame()
		Expect(resident).To(BeTrue())
		Expect(childFrame).NotTo(Equal(parentFrame))

		Expect(s.Write(child, anonAddr, []byte("child!"))).To(Succeed())

		buf := make([]byte, 6)
		Expect(s.Read(parent, anonAddr, buf)).To(Succeed())
		Expect(string(buf)).To(Equal("parent"))
	})

	It("should keep the dirty state of file pages", func() {
		Expect(s.CopyAddressSpace(child, parent)).To(Succeed())

		pte, found := s.PageTable().Find(child.ID(), fileAddr)

		Expect(found).To(BeTrue())
		Expect(pte.Dirty).To(BeTrue())
	})

	It("should close the file after both processes are gone", func() {
		Expect(s.CopyAddressSpace(child, parent)).To(Succeed())

		Expect(s.DestroyAddressSpace(parent)).To(Succeed())
		Expect(file.OpenCount()).To(Equal(int64(2)))

		Expect(s.DestroyAddressSpace(child)).To(Succeed())
		Expect(file.OpenCount()).To(Equal(int64(1)))
		Expect(file.Bytes()[0]).To(Equal(byte(6)))
	})

	It("should copy swapped pages", func() {
		s = MakeBuilder().WithNumFrames(2).Build("VM")
		parent = s.NewAddressSpace()
		child = s.NewAddressSpace()
		for i := uint64(0); i < 3; i++ {
			addr := anonAddr + i*PageSize
			Expect(s.AllocateLazyPage(
				parent, addr, true, PageTypeAnon, nil, nil)).To(Succeed())
			Expect(s.Write(parent, addr, []byte{byte(i + 1)})).To(Succeed())
		}

		Expect(s.CopyAddressSpace(child, parent)).To(Succeed())

		for i := uint64(0); i < 3; i++ {
			buf := make([]byte, 1)
			Expect(s.Read(child, anonAddr+i*PageSize, buf)).To(Succeed())
			Expect(buf[0]).To(Equal(byte(i + 1)))
		}
		Expect(s.Frames().NumInUse()).To(Equal(2))
	})

	It("should fail when no frame can be evicted", func() {
		s = MakeBuilder().WithNumFrames(1).Build("VM")
		parent = s.NewAddressSpace()
		child = s.NewAddressSpace()
		Expect(s.AllocateLazyPage(
			parent, anonAddr, true, PageTypeAnon, nil, nil)).To(Succeed())
		Expect(s.Write(parent, anonAddr, []byte{1})).To(Succeed())

		err := s.CopyAddressSpace(child, parent)

		Expect(err).To(MatchError(ErrNoVictim))
		Expect(s.DestroyAddressSpace(child)).To(Succeed())
		Expect(s.Frames().NumInUse()).To(Equal(1))
	})

	It("should keep the close error of a colliding file page", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		mockFile := NewMockFile(mockCtrl)
		mockFile.EXPECT().Close().Return(errors.New("stale handle"))

		const addr uint64 = 0x20000000
		Expect(s.AllocateLazyPage(
			child, addr, true, PageTypeAnon, nil, nil)).To(Succeed())
		orphan := newPage(parent, addr, true, &filePage{
			mapping:     &Mapping{File: mockFile, Base: addr, RunLength: 1},
			validLength: int(PageSize),
		})

		err := s.copyPage(child, orphan)

		Expect(err).To(MatchError(ErrPageExists))
		Expect(err).To(MatchError(ContainSubstring("stale handle")))
	})
})
