package vm

// Address space layout of a user process.
const (
	// Log2PageSize is the number of bits of the in-page offset.
	Log2PageSize = 12

	// PageSize is the size of a virtual page and of a physical frame.
	PageSize uint64 = 1 << Log2PageSize

	// WordSize is the size of a machine word. A push may fault one word below
	// the stack pointer.
	WordSize uint64 = 8

	// UserStackTop is the address just above the first stack page.
	UserStackTop uint64 = 0x47480000

	// MaxStackSize bounds how far the stack can grow below UserStackTop.
	MaxStackSize uint64 = 1 << 20

	// KernBase is the first kernel virtual address. Every address below it
	// belongs to user space.
	KernBase uint64 = 0x8004000000
)

// PageRoundDown returns the address of the page that contains addr.
func PageRoundDown(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}

// PageRoundUp rounds addr up to the next page boundary.
func PageRoundUp(addr uint64) uint64 {
	return PageRoundDown(addr + PageSize - 1)
}

// PageOffset returns the offset of addr within its page.
func PageOffset(addr uint64) uint64 {
	return addr & (PageSize - 1)
}

// IsUserAddress tells whether addr lies in user space.
func IsUserAddress(addr uint64) bool {
	return addr < KernBase
}

// inStackRegion tells whether addr falls in the range reserved for the stack.
func inStackRegion(addr uint64) bool {
	return addr >= UserStackTop-MaxStackSize && addr < UserStackTop
}

// isStackAccess tells whether a fault at addr looks like a push onto a stack
// whose pointer is sp.
func isStackAccess(addr, sp uint64) bool {
	lowest := uint64(0)
	if sp > WordSize {
		lowest = sp - WordSize
	}

	return addr >= lowest &&
		addr >= UserStackTop-MaxStackSize &&
		addr <= UserStackTop
}
