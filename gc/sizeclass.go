// ABOUTME: Fixed size classes for small objects
// ABOUTME: Requests up to the largest class go through the nursery

package gc

import (
	"math"
	"slices"
)

// sizes are the payload size classes of the adult generation.
var sizes = [...]uintptr{
	16, 32, 48, 64, 80, 96, 112, 128, 160, 192, 224, 256,
	320, 384, 448, 512, 640, 768, 896, 1024, 1280, 1536, 1792, 2048,
}

const numClasses = len(sizes)

// MaxSmallSize is the largest request served by the small-object path.
const MaxSmallSize = 2048

// MaxAllocSize is the largest request a header can describe.
const MaxAllocSize = math.MaxUint32

// maxNurseryFootprint is the largest nursery allocation including its header.
const maxNurseryFootprint = headerSize + MaxSmallSize

// classFor returns the smallest class that fits n payload bytes.
func classFor(n uintptr) (int, bool) {
	if n > MaxSmallSize {
		return 0, false
	}
	idx, _ := slices.BinarySearch(sizes[:], n)
	return idx, true
}
