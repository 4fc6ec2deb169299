package vm

import (
	"fmt"
	"sync"

	"github.com/sarchlab/vmsim/mem/vm/swap"
)

// PageType tells how the content of a page is backed.
type PageType int

// The page types.
const (
	// PageTypeUninit is a page that has not been touched yet. It becomes its
	// target type the first time it is claimed.
	PageTypeUninit PageType = iota

	// PageTypeAnon is a page without a backing file. It goes to swap when
	// evicted.
	PageTypeAnon

	// PageTypeFile is a page that mirrors a region of a memory-mapped file.
	PageTypeFile
)

func (t PageType) String() string {
	switch t {
	case PageTypeUninit:
		return "uninit"
	case PageTypeAnon:
		return "anon"
	case PageTypeFile:
		return "file"
	default:
		return fmt.Sprintf("PageType(%d)", int(t))
	}
}

// A LoadFunc fills the frame of a page the first time the page is claimed.
// The frame is zeroed before the call.
type LoadFunc func(p *Page, frame []byte, aux any) error

// A Page describes one page-aligned virtual address of an address space.
type Page struct {
	// mu is held while the page is claimed, evicted, copied or destroyed.
	mu sync.Mutex

	vAddr    uint64
	owner    *AddressSpace
	writable bool
	stack    bool
	frame    FrameID
	variant  pageVariant
}

// pageVariant is one of *uninitPage, *anonPage or *filePage.
type pageVariant interface {
	pageType() PageType
}

type uninitPage struct {
	load   LoadFunc
	aux    any
	target PageType
}

func (*uninitPage) pageType() PageType { return PageTypeUninit }

type anonPage struct {
	slot    swap.Slot
	swapped bool
}

func (*anonPage) pageType() PageType { return PageTypeAnon }

type filePage struct {
	mapping     *Mapping
	offset      int64
	validLength int
}

func (*filePage) pageType() PageType { return PageTypeFile }

func newPage(
	owner *AddressSpace,
	vAddr uint64,
	writable bool,
	variant pageVariant,
) *Page {
	return &Page{
		vAddr:    PageRoundDown(vAddr),
		owner:    owner,
		writable: writable,
		frame:    NoFrame,
		variant:  variant,
	}
}

// VAddr returns the page-aligned virtual address of the page.
func (p *Page) VAddr() uint64 {
	return p.vAddr
}

// Owner returns the address space the page belongs to.
func (p *Page) Owner() *AddressSpace {
	return p.owner
}

// Writable tells whether user code may write the page.
func (p *Page) Writable() bool {
	return p.writable
}

// IsStack tells whether the page is part of the user stack.
func (p *Page) IsStack() bool {
	return p.stack
}

// Frame returns the frame that holds the page, if it is resident.
func (p *Page) Frame() (FrameID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.frame, p.frame != NoFrame
}

// IsResident tells whether the page currently occupies a frame.
func (p *Page) IsResident() bool {
	_, ok := p.Frame()
	return ok
}

// Type returns the current type of the page.
func (p *Page) Type() PageType {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.variant.pageType()
}

// TargetType returns the type the page has, or will have once it is claimed.
func (p *Page) TargetType() PageType {
	p.mu.Lock()
	defer p.mu.Unlock()

	return targetTypeLocked(p)
}

// SwapSlot returns the swap slot holding the content of an evicted anonymous
// page.
func (p *Page) SwapSlot() (swap.Slot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.variant.(*anonPage)
	if !ok || !a.swapped {
		return 0, false
	}

	return a.slot, true
}

// Mapping returns the mmap run a file-backed page belongs to.
func (p *Page) Mapping() (*Mapping, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.mappingLocked()
}

func (p *Page) mappingLocked() (*Mapping, bool) {
	switch v := p.variant.(type) {
	case *filePage:
		return v.mapping, true
	case *uninitPage:
		if aux, ok := v.aux.(*FileAux); ok && v.target == PageTypeFile {
			return aux.Mapping, true
		}
	}

	return nil, false
}

func (p *Page) String() string {
	return fmt.Sprintf("page 0x%x (%s)", p.vAddr, p.variant.pageType())
}
