package vm

import (
	"container/list"
	"sync"
)

// ASID identifies an address space.
type ASID uint32

// A PTE is an entry in the hardware page table, translating one virtual page
// of one address space into a physical frame.
type PTE struct {
	ASID     ASID
	VAddr    uint64
	PAddr    uint64
	Writable bool
	Accessed bool
	Dirty    bool
}

// A PageTable is the hardware page table. It only knows about pages that are
// resident; the supplemental page table knows about the rest.
type PageTable interface {
	// Insert installs or replaces the translation of pte.VAddr.
	Insert(pte PTE) error
	Remove(asid ASID, vAddr uint64)
	RemoveAll(asid ASID)
	Find(asid ASID, vAddr uint64) (PTE, bool)
	Update(pte PTE)

	// Touch sets the accessed bit of the entry, and the dirty bit if write is
	// set. It reports whether the entry exists.
	Touch(asid ASID, vAddr uint64, write bool) bool
	Len() int
}

// NewPageTable creates a new PageTable. A maxEntries of 0 means the table can
// grow without limit.
func NewPageTable(maxEntries int) PageTable {
	return &pageTableImpl{
		maxEntries: maxEntries,
		tables:     make(map[ASID]*spaceTable),
	}
}

type pageTableImpl struct {
	sync.Mutex
	maxEntries int
	numEntries int
	tables     map[ASID]*spaceTable
}

func (pt *pageTableImpl) getTable(asid ASID) *spaceTable {
	table, found := pt.tables[asid]
	if !found {
		table = &spaceTable{
			entries:      list.New(),
			entriesTable: make(map[uint64]*list.Element),
		}
		pt.tables[asid] = table
	}

	return table
}

func (pt *pageTableImpl) Insert(pte PTE) error {
	pt.Lock()
	defer pt.Unlock()

	pte.VAddr = PageRoundDown(pte.VAddr)
	table := pt.getTable(pte.ASID)

	if elem, found := table.entriesTable[pte.VAddr]; found {
		elem.Value = pte
		return nil
	}

	if pt.maxEntries > 0 && pt.numEntries >= pt.maxEntries {
		return ErrPageTableFull
	}

	elem := table.entries.PushBack(pte)
	table.entriesTable[pte.VAddr] = elem
	pt.numEntries++

	return nil
}

func (pt *pageTableImpl) Remove(asid ASID, vAddr uint64) {
	pt.Lock()
	defer pt.Unlock()

	table := pt.getTable(asid)
	vAddr = PageRoundDown(vAddr)

	elem, found := table.entriesTable[vAddr]
	if !found {
		return
	}

	table.entries.Remove(elem)
	delete(table.entriesTable, vAddr)
	pt.numEntries--
}

func (pt *pageTableImpl) RemoveAll(asid ASID) {
	pt.Lock()
	defer pt.Unlock()

	table, found := pt.tables[asid]
	if !found {
		return
	}

	pt.numEntries -= table.entries.Len()
	delete(pt.tables, asid)
}

func (pt *pageTableImpl) Find(asid ASID, vAddr uint64) (PTE, bool) {
	pt.Lock()
	defer pt.Unlock()

	elem, found := pt.getTable(asid).entriesTable[PageRoundDown(vAddr)]
	if !found {
		return PTE{}, false
	}

	return elem.Value.(PTE), true
}

// Update changes the field of an existing entry. The ASID and the VAddr field
// will be used to locate the entry to update.
func (pt *pageTableImpl) Update(pte PTE) {
	pt.Lock()
	defer pt.Unlock()

	table := pt.getTable(pte.ASID)
	table.entryMustExist(pte.VAddr)
	table.entriesTable[pte.VAddr].Value = pte
}

func (pt *pageTableImpl) Touch(asid ASID, vAddr uint64, write bool) bool {
	pt.Lock()
	defer pt.Unlock()

	elem, found := pt.getTable(asid).entriesTable[PageRoundDown(vAddr)]
	if !found {
		return false
	}

	pte := elem.Value.(PTE)
	pte.Accessed = true
	pte.Dirty = pte.Dirty || write
	elem.Value = pte

	return true
}

func (pt *pageTableImpl) Len() int {
	pt.Lock()
	defer pt.Unlock()

	return pt.numEntries
}

// spaceTable holds the entries of one address space, in insertion order.
type spaceTable struct {
	entries      *list.List
	entriesTable map[uint64]*list.Element
}

func (t *spaceTable) entryMustExist(vAddr uint64) {
	_, found := t.entriesTable[vAddr]
	if !found {
		panic("page table entry does not exist")
	}
}
