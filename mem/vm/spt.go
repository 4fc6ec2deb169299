package vm

import (
	"sort"
	"sync"
)

// A SupplementalPageTable maps the page-aligned virtual addresses of one
// address space to their pages, whether resident or not.
type SupplementalPageTable struct {
	lock  sync.Mutex
	space *AddressSpace
	pages map[uint64]*Page
}

func newSupplementalPageTable(space *AddressSpace) *SupplementalPageTable {
	return &SupplementalPageTable{
		space: space,
		pages: make(map[uint64]*Page),
	}
}

// Insert adds the page. It returns false if the address is already taken, in
// which case the caller still owns the page.
func (t *SupplementalPageTable) Insert(p *Page) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	if _, found := t.pages[p.vAddr]; found {
		return false
	}

	t.pages[p.vAddr] = p

	return true
}

// Find returns the page that contains addr.
func (t *SupplementalPageTable) Find(addr uint64) (*Page, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	p, found := t.pages[PageRoundDown(addr)]

	return p, found
}

// RemoveAndDestroy removes the page that contains addr, tears it down and
// frees its frame if it is resident.
func (t *SupplementalPageTable) RemoveAndDestroy(addr uint64) error {
	p, found := t.remove(addr)
	if !found {
		return ErrNotMapped
	}

	return t.space.system.destroyPage(p)
}

func (t *SupplementalPageTable) remove(addr uint64) (*Page, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	addr = PageRoundDown(addr)

	p, found := t.pages[addr]
	if found {
		delete(t.pages, addr)
	}

	return p, found
}

// Pages returns all pages ordered by address.
func (t *SupplementalPageTable) Pages() []*Page {
	t.lock.Lock()
	defer t.lock.Unlock()

	pages := make([]*Page, 0, len(t.pages))
	for _, p := range t.pages {
		pages = append(pages, p)
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].vAddr < pages[j].vAddr
	})

	return pages
}

// Len returns the number of pages.
func (t *SupplementalPageTable) Len() int {
	t.lock.Lock()
	defer t.lock.Unlock()

	return len(t.pages)
}
