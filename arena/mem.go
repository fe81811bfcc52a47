// ABOUTME: Raw access to committed arena memory
// ABOUTME: All unsafe address arithmetic in the module goes through here

package arena

import "unsafe"

// Arena memory is mapped outside the Go heap, so the Go collector never
// looks at it and converting its addresses back to pointers is sound.

func addrOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))
}

// Ptr converts a committed arena address to an unsafe.Pointer.
func Ptr(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

// Word returns the machine word stored at addr.
func Word(addr uintptr) *uintptr {
	return (*uintptr)(Ptr(addr))
}

// Bytes returns the n bytes starting at addr.
func Bytes(addr, n uintptr) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(Ptr(addr)), n)
}

// Words returns the n machine words starting at addr.
func Words(addr, n uintptr) []uintptr {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*uintptr)(Ptr(addr)), n)
}

// Copy copies n bytes from src to dst. The ranges must not overlap.
func Copy(dst, src, n uintptr) {
	copy(Bytes(dst, n), Bytes(src, n))
}

// Zero clears n bytes at addr.
func Zero(addr, n uintptr) {
	clear(Bytes(addr, n))
}

// WordSize is the size of a machine word.
const WordSize = unsafe.Sizeof(uintptr(0))
