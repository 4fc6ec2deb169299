package swap

import "math/bits"

// bitmap tracks which swap slots hold live content.
type bitmap struct {
	words []uint64
	size  int
}

func newBitmap(size int) bitmap {
	return bitmap{
		words: make([]uint64, (size+63)/64),
		size:  size,
	}
}

func (b *bitmap) test(i int) bool {
	return b.words[i/64]&(1<<(uint(i)%64)) != 0
}

func (b *bitmap) set(i int) {
	b.words[i/64] |= 1 << (uint(i) % 64)
}

func (b *bitmap) clear(i int) {
	b.words[i/64] &^= 1 << (uint(i) % 64)
}

// scanAndFlip finds the first clear bit, sets it and returns its index. It
// returns -1 when every bit is set.
func (b *bitmap) scanAndFlip() int {
	for w, word := range b.words {
		if word == ^uint64(0) {
			continue
		}

		i := w*64 + bits.TrailingZeros64(^word)
		if i >= b.size {
			return -1
		}

		b.set(i)

		return i
	}

	return -1
}

func (b *bitmap) count() int {
	n := 0
	for _, word := range b.words {
		n += bits.OnesCount64(word)
	}

	return n
}
