// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// Unbuffered (O_DIRECT) file I/O requires the user buffer to start on a
// logical-sector boundary. AllocAligned returns slices aligned to
// DirectIOAlignment so block buffers can be handed straight to the kernel.
package mem
