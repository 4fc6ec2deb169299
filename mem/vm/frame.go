package vm

import (
	"container/list"
	"fmt"
	"log"
	"sync"

	"github.com/sarchlab/vmsim/mem/vm/physmem"
)

// FrameID is a handle to a frame in the frame pool.
type FrameID int

// NoFrame is the FrameID of a page that is not resident.
const NoFrame FrameID = -1

// A Frame is a physical page that the pool has handed out.
type Frame struct {
	ID    FrameID
	PAddr uint64

	page  *Page
	inUse bool
	elem  *list.Element
}

// Page returns the page bound to the frame, or nil.
func (f *Frame) Page() *Page {
	return f.page
}

// FrameInfo is a snapshot of one frame.
type FrameInfo struct {
	ID    FrameID
	PAddr uint64
	ASID  ASID
	VAddr uint64
	Bound bool
}

// A FramePool owns the physical memory used for user pages and evicts pages
// when the memory runs out.
type FramePool struct {
	lock         sync.Locker
	mem          *physmem.Memory
	pageTable    PageTable
	victimFinder VictimFinder
	evict        func(p *Page) error

	frames  []*Frame
	freeIDs []FrameID
	order   *list.List
}

// NumFrames returns the number of physical frames in the pool.
func (fp *FramePool) NumFrames() int {
	return fp.mem.NumPages()
}

// NumInUse returns the number of frames handed out.
func (fp *FramePool) NumInUse() int {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	return fp.order.Len()
}

// Acquire returns an unbound frame. When physical memory is exhausted, it
// evicts the page in the frame chosen by the victim finder.
func (fp *FramePool) Acquire() (FrameID, error) {
	fp.lock.Lock()
	paddr, err := fp.mem.Alloc()
	if err == nil {
		f := fp.newFrame(paddr)
		fp.lock.Unlock()

		return f.ID, nil
	}
	fp.lock.Unlock()

	return fp.evictOne()
}

func (fp *FramePool) newFrame(paddr uint64) *Frame {
	var f *Frame

	if n := len(fp.freeIDs); n > 0 {
		f = fp.frames[fp.freeIDs[n-1]]
		fp.freeIDs = fp.freeIDs[:n-1]
	} else {
		f = &Frame{ID: FrameID(len(fp.frames))}
		fp.frames = append(fp.frames, f)
	}

	f.PAddr = paddr
	f.inUse = true
	f.page = nil
	f.elem = fp.order.PushBack(f)

	return f
}

func (fp *FramePool) evictOne() (FrameID, error) {
	fp.lock.Lock()
	victim, ok := fp.victimFinder.FindVictim(fp.orderLocked(), fp.reserve)
	if !ok {
		fp.lock.Unlock()
		return NoFrame, ErrNoVictim
	}

	page := victim.page
	fp.order.Remove(victim.elem)
	victim.elem = nil
	fp.lock.Unlock()

	// The victim page lock was taken by reserve.
	defer page.mu.Unlock()

	err := fp.evict(page)

	fp.lock.Lock()
	defer fp.lock.Unlock()

	if err != nil {
		if victim.page != page || page.frame != victim.ID {
			log.Panicf("frame %d lost its page during a failed eviction",
				victim.ID)
		}

		victim.elem = fp.order.PushFront(victim)

		return NoFrame, fmt.Errorf("evict %s: %w", page, err)
	}

	if victim.page != nil {
		log.Panicf("frame %d still bound after evicting %s", victim.ID, page)
	}

	victim.elem = fp.order.PushBack(victim)

	return victim.ID, nil
}

// reserve takes the lock of the page in the frame if nobody else holds it.
// Called with the pool lock held.
func (fp *FramePool) reserve(f *Frame) bool {
	if f.page == nil {
		return false
	}

	if !f.page.mu.TryLock() {
		return false
	}

	fp.frameMustBeBoundTo(f, f.page)

	return true
}

func (fp *FramePool) orderLocked() []*Frame {
	order := make([]*Frame, 0, fp.order.Len())
	for e := fp.order.Front(); e != nil; e = e.Next() {
		order = append(order, e.Value.(*Frame))
	}

	return order
}

// Bind links the frame and the page and installs the hardware translation.
// The caller must hold the page lock.
func (fp *FramePool) Bind(id FrameID, p *Page) error {
	fp.lock.Lock()
	f := fp.frameMustBeInUse(id)

	if f.page != nil {
		log.Panicf("frame %d is already bound to %s", id, f.page)
	}

	if p.frame != NoFrame {
		log.Panicf("%s is already bound to frame %d", p, p.frame)
	}

	f.page = p
	p.frame = id
	fp.lock.Unlock()

	err := fp.pageTable.Insert(PTE{
		ASID:     p.owner.id,
		VAddr:    p.vAddr,
		PAddr:    f.PAddr,
		Writable: p.writable,
	})
	if err != nil {
		fp.Unbind(id)
		return fmt.Errorf("map %s: %w", p, err)
	}

	return nil
}

// Unbind breaks the link between the frame and its page. The caller must hold
// the page lock and must have removed the hardware translation.
func (fp *FramePool) Unbind(id FrameID) {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	f := fp.frameMustBeInUse(id)
	if f.page == nil {
		return
	}

	fp.frameMustBeBoundTo(f, f.page)
	f.page.frame = NoFrame
	f.page = nil
}

// Release unbinds the frame and gives its memory back.
func (fp *FramePool) Release(id FrameID) {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	f := fp.frameMustBeInUse(id)
	if f.page != nil {
		fp.frameMustBeBoundTo(f, f.page)
		f.page.frame = NoFrame
		f.page = nil
	}

	if f.elem != nil {
		fp.order.Remove(f.elem)
		f.elem = nil
	}

	fp.mem.Free(f.PAddr)
	f.inUse = false
	fp.freeIDs = append(fp.freeIDs, id)
}

// Content returns the bytes of the frame.
func (fp *FramePool) Content(id FrameID) []byte {
	fp.lock.Lock()
	f := fp.frameMustBeInUse(id)
	paddr := f.PAddr
	fp.lock.Unlock()

	return fp.mem.Page(paddr)
}

// Snapshot lists the frames in eviction order.
func (fp *FramePool) Snapshot() []FrameInfo {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	infos := make([]FrameInfo, 0, fp.order.Len())
	for _, f := range fp.orderLocked() {
		info := FrameInfo{ID: f.ID, PAddr: f.PAddr}
		if f.page != nil {
			info.Bound = true
			info.ASID = f.page.owner.id
			info.VAddr = f.page.vAddr
		}

		infos = append(infos, info)
	}

	return infos
}

// Layout lists every physical frame in address order. Frames that are not
// handed out have ID NoFrame.
func (fp *FramePool) Layout() []FrameInfo {
	fp.lock.Lock()
	defer fp.lock.Unlock()

	byAddr := make(map[uint64]*Frame, fp.order.Len())
	for _, f := range fp.orderLocked() {
		byAddr[f.PAddr] = f
	}

	infos := make([]FrameInfo, fp.mem.NumPages())
	for i := range infos {
		paddr := fp.mem.PAddr(i)
		infos[i] = FrameInfo{ID: NoFrame, PAddr: paddr}

		f, found := byAddr[paddr]
		if !found {
			continue
		}

		infos[i].ID = f.ID
		if f.page != nil {
			infos[i].Bound = true
			infos[i].ASID = f.page.owner.id
			infos[i].VAddr = f.page.vAddr
		}
	}

	return infos
}

func (fp *FramePool) frameMustBeInUse(id FrameID) *Frame {
	if id < 0 || int(id) >= len(fp.frames) || !fp.frames[id].inUse {
		log.Panicf("frame %d is not in use", id)
	}

	return fp.frames[id]
}

func (fp *FramePool) frameMustBeBoundTo(f *Frame, p *Page) {
	if f.page != p || p.frame != f.ID {
		log.Panicf("frame %d and %s are not bound to each other", f.ID, p)
	}
}
