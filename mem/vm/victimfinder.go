package vm

// A VictimFinder decides which frame should be evicted when physical memory is
// full.
type VictimFinder interface {
	// FindVictim picks a frame from order, which lists the frames oldest
	// first. reserve reports whether a frame can be evicted; once it returns
	// true, the frame is reserved for the caller and must be returned.
	FindVictim(order []*Frame, reserve func(*Frame) bool) (*Frame, bool)
}

// FIFOVictimFinder evicts the frame that was bound the earliest.
type FIFOVictimFinder struct {
}

// NewFIFOVictimFinder returns a newly constructed FIFO victim finder.
func NewFIFOVictimFinder() *FIFOVictimFinder {
	return new(FIFOVictimFinder)
}

// FindVictim returns the oldest frame that can be reserved.
func (e *FIFOVictimFinder) FindVictim(
	order []*Frame,
	reserve func(*Frame) bool,
) (*Frame, bool) {
	for _, f := range order {
		if reserve(f) {
			return f, true
		}
	}

	return nil, false
}
