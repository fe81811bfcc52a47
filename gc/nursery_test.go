// ABOUTME: Tests for the nursery room: the fragment grid, carving around pins and release rules
// ABOUTME: Uses a small standalone arena so fragment arithmetic is easy to follow

package gc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prateek/nurserygc/arena"
)

const (
	testFrag    = 8192
	testMinFrag = 512
)

func newTestRoom(t *testing.T) (*NurseryRoom, uintptr) {
	t.Helper()
	a := arena.New("test-nursery", 8*testFrag)
	a.GrowTo(a.Limit())
	return newNurseryRoom(a, testFrag, testMinFrag, 0.5), a.Start()
}

// liveAt writes a live header so the room can update its flags.
func liveAt(addr, size uintptr) {
	hdrAt(addr).init(size, KindData)
}

func TestRoomStartsWithFullGrid(t *testing.T) {
	r, base := newTestRoom(t)
	frags := r.Available()
	require.Len(t, frags, 8)
	for i, f := range frags {
		require.Equal(t, base+uintptr(i)*testFrag, f.Start())
		require.Equal(t, uintptr(testFrag), f.Size())
	}
	require.Equal(t, uintptr(8*testFrag), r.FreeBytes())
}

func TestAllocateFragmentAndCollectRatio(t *testing.T) {
	r, base := newTestRoom(t)
	for i := 0; i < 4; i++ {
		require.False(t, r.ShouldCollect(64))
		f, ok := r.AllocateFragment(64)
		require.True(t, ok)
		require.Equal(t, base+uintptr(i)*testFrag, f.Start())
	}
	require.True(t, r.ShouldCollect(64), "half the nursery is handed out")
	require.Equal(t, uintptr(4*testFrag), r.FreeBytes())

	r.ReleaseMinor()
	require.False(t, r.ShouldCollect(64))
	require.Equal(t, uintptr(8*testFrag), r.FreeBytes())
}

func TestFragmentBumpAllocation(t *testing.T) {
	f := Fragment{start: 0x1000, end: 0x1040}
	require.True(t, f.CanAllocate(0x40))
	require.Equal(t, uintptr(0x1000), f.Allocate(0x20))
	require.Equal(t, uintptr(0x1020), f.Allocate(0x20))
	require.False(t, f.CanAllocate(1))
	require.Zero(t, f.Size())
}

func TestReleaseCarvesAroundPins(t *testing.T) {
	r, base := newTestRoom(t)
	pin := base + testFrag + 1024
	liveAt(pin, 48)
	hdrAt(pin).set(flagPinned | flagMarked)
	r.PinMinor(pin, 64)

	r.ReleaseMinor()

	frags := r.Available()
	require.Len(t, frags, 9)
	require.Equal(t, Fragment{start: base + testFrag, end: pin}, frags[1])
	require.Equal(t, Fragment{start: pin + 64, end: base + 2*testFrag}, frags[2])
	require.False(t, hdrAt(pin).has(flagPinned|flagMarked), "minor pins end with the release")
	require.Empty(t, r.Pins())

	// With the pin gone the grid comes back whole.
	r.ReleaseMinor()
	require.Len(t, r.Available(), 8)
}

func TestCarveDropsSmallPieces(t *testing.T) {
	r, base := newTestRoom(t)
	pin := base + 256
	liveAt(pin, 48)
	r.PinMinor(pin, 64)
	r.ReleaseMinor()

	frags := r.Available()
	require.Len(t, frags, 8)
	require.Equal(t, pin+64, frags[0].Start())
	require.Equal(t, uintptr(8*testFrag-256-64), r.FreeBytes())
}

func TestAllocateFragmentSkipsSmallPieces(t *testing.T) {
	r, base := newTestRoom(t)
	pin := base + 1024
	liveAt(pin, 48)
	r.PinMinor(pin, 64)
	r.ReleaseMinor()

	f, ok := r.AllocateFragment(2000)
	require.True(t, ok)
	require.Equal(t, pin+64, f.Start())

	small, ok := r.AllocateFragment(512)
	require.True(t, ok)
	require.Equal(t, base, small.Start(), "the skipped piece still serves smaller requests")

	for {
		if _, ok := r.AllocateFragment(testFrag); !ok {
			break
		}
	}
	require.True(t, r.ShouldCollect(testFrag))
}

func TestMajorPinsOutliveMinorRelease(t *testing.T) {
	r, base := newTestRoom(t)
	pin := base + 3*testFrag + 4096
	liveAt(pin, 32)
	hdrAt(pin).set(flagPinned)
	r.PinMajor(pin, 48)

	hdrAt(pin).set(flagMarked | flagScanned)
	r.ReleaseMinor()
	require.Len(t, r.Available(), 9)
	require.True(t, hdrAt(pin).has(flagPinned))
	require.False(t, hdrAt(pin).has(flagMarked|flagScanned), "marks reset for the next cycle")
	require.Len(t, r.MajorPins(), 1)

	// The release still carves around it; the following one does not.
	r.ReleaseMajor()
	require.Len(t, r.Available(), 9)
	require.False(t, hdrAt(pin).has(flagPinned))
	require.Empty(t, r.MajorPins())
	r.ReleaseMinor()
	require.Len(t, r.Available(), 8)
}
