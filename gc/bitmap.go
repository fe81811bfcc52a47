// ABOUTME: Allocation-start bitmap for the nursery
// ABOUTME: Recovers the owning header from any interior nursery address

package gc

import "math/bits"

// startBitmap has one bit per nursery granule, set where an allocation
// header begins.
type startBitmap struct {
	base uintptr
	bits []uint64
}

func newStartBitmap(base, size uintptr) *startBitmap {
	granules := size / granule
	return &startBitmap{base: base, bits: make([]uint64, (granules+63)/64)}
}

func (b *startBitmap) set(addr uintptr) {
	g := (addr - b.base) / granule
	b.bits[g/64] |= 1 << (g % 64)
}

func (b *startBitmap) reset() {
	clear(b.bits)
}

// find returns the closest allocation start at or below addr, looking at
// most limit bytes back.
func (b *startBitmap) find(addr, limit uintptr) (uintptr, bool) {
	g := (addr - b.base) / granule
	var lowest uintptr
	if back := limit / granule; g > back {
		lowest = g - back
	}
	w := int(g / 64)
	word := b.bits[w] & (2<<(g%64) - 1)
	for {
		if word != 0 {
			found := uintptr(w)*64 + 63 - uintptr(bits.LeadingZeros64(word))
			if found < lowest {
				return 0, false
			}
			return b.base + found*granule, true
		}
		w--
		if w < 0 || uintptr(w+1)*64 <= lowest {
			return 0, false
		}
		word = b.bits[w]
	}
}

// forEach calls fn with every recorded allocation start, in address order.
func (b *startBitmap) forEach(fn func(addr uintptr)) {
	for w, word := range b.bits {
		for word != 0 {
			i := bits.TrailingZeros64(word)
			word &= word - 1
			fn(b.base + (uintptr(w)*64+uintptr(i))*granule)
		}
	}
}
