package swap

import "sync"

// A Builder can build a swap Store.
type Builder struct {
	device   Device
	numSlots int
	pageSize int
	lock     sync.Locker
}

// MakeBuilder creates a new builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		numSlots: 1024,
		pageSize: 4096,
	}
}

// WithDevice sets the device that stores the slots. If not set, an in-memory
// device of the right size is created.
func (b Builder) WithDevice(d Device) Builder {
	b.device = d
	return b
}

// WithNumSlots sets the number of page-sized slots.
func (b Builder) WithNumSlots(n int) Builder {
	b.numSlots = n
	return b
}

// WithPageSize sets the slot size.
func (b Builder) WithPageSize(n int) Builder {
	b.pageSize = n
	return b
}

// WithLocker sets the lock that guards the slot bitmap. It allows the bitmap
// to share one lock with other allocation metadata.
func (b Builder) WithLocker(l sync.Locker) Builder {
	b.lock = l
	return b
}

// Build returns a Store with every slot free.
func (b Builder) Build() *Store {
	s := &Store{
		dev:      b.device,
		pageSize: b.pageSize,
		used:     newBitmap(b.numSlots),
		lock:     b.lock,
	}

	if s.dev == nil {
		s.dev = NewMemDevice(b.numSlots * b.pageSize)
	}

	if s.lock == nil {
		s.lock = &sync.Mutex{}
	}

	return s
}
