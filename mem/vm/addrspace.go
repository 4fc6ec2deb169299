package vm

import "fmt"

// An AddressSpace is the virtual memory of one process.
type AddressSpace struct {
	id     ASID
	system *System
	spt    *SupplementalPageTable
}

// ID returns the identifier used to tag hardware translations.
func (as *AddressSpace) ID() ASID {
	return as.id
}

// SPT returns the supplemental page table of the address space.
func (as *AddressSpace) SPT() *SupplementalPageTable {
	return as.spt
}

// Name returns a printable name of the address space.
func (as *AddressSpace) Name() string {
	return fmt.Sprintf("AS%d", as.id)
}

// Info returns a summary of the address space.
func (as *AddressSpace) Info() SpaceInfo {
	info := SpaceInfo{ASID: as.id}

	for _, p := range as.spt.Pages() {
		p.mu.Lock()
		info.Pages = append(info.Pages, PageInfo{
			VAddr:    p.vAddr,
			Type:     p.variant.pageType().String(),
			Target:   targetTypeLocked(p).String(),
			Writable: p.writable,
			Stack:    p.stack,
			Resident: p.frame != NoFrame,
			Frame:    p.frame,
		})
		p.mu.Unlock()
	}

	return info
}

// SpaceInfo is a snapshot of an address space.
type SpaceInfo struct {
	ASID  ASID
	Pages []PageInfo
}

// PageInfo is a snapshot of a page.
type PageInfo struct {
	VAddr    uint64
	Type     string
	Target   string
	Writable bool
	Stack    bool
	Resident bool
	Frame    FrameID
}

func targetTypeLocked(p *Page) PageType {
	if u, ok := p.variant.(*uninitPage); ok {
		return u.target
	}

	return p.variant.pageType()
}

// unmap removes the hardware translation of the page.
func (as *AddressSpace) unmap(vAddr uint64) {
	as.system.pageTable.Remove(as.id, vAddr)
}

// isDirty tells whether the page was written since it was mapped.
func (as *AddressSpace) isDirty(vAddr uint64) bool {
	pte, found := as.system.pageTable.Find(as.id, vAddr)
	return found && pte.Dirty
}

func (as *AddressSpace) setDirty(vAddr uint64) {
	pte, found := as.system.pageTable.Find(as.id, vAddr)
	if !found {
		return
	}

	pte.Dirty = true
	as.system.pageTable.Update(pte)
}
