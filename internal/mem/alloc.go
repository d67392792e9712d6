package mem

import (
	"unsafe"
)

// DirectIOAlignment is the buffer alignment used for unbuffered block I/O.
// It matches the page size on common platforms and is a multiple of every
// logical sector size in use.
const DirectIOAlignment = 4096

// AllocAligned allocates a byte slice of the given size whose first byte
// sits at an address divisible by DirectIOAlignment.
//
// Note: This function allocates slightly more memory than requested to ensure alignment.
// The underlying array is kept alive by the returned slice.
func AllocAligned(size int) []byte {
	return AllocAlignedTo(size, DirectIOAlignment)
}

// AllocAlignedTo is AllocAligned with an explicit alignment, which must be a
// power of two.
func AllocAlignedTo(size, align int) []byte {
	if size <= 0 {
		return nil
	}
	if align <= 1 {
		return make([]byte, size)
	}

	buf := make([]byte, size+align)

	ptr := unsafe.Pointer(&buf[0]) //nolint:gosec // unsafe is required for memory alignment
	addr := uintptr(ptr)
	mask := uintptr(align - 1)
	offset := (uintptr(align) - (addr & mask)) & mask

	return buf[offset : offset+uintptr(size) : offset+uintptr(size)]
}

// IsAligned reports whether b starts at an address divisible by align.
func IsAligned(b []byte, align int) bool {
	if len(b) == 0 || align <= 1 {
		return true
	}
	addr := uintptr(unsafe.Pointer(&b[0])) //nolint:gosec // unsafe is required for memory alignment
	return addr&uintptr(align-1) == 0
}
