//go:build linux

package vmem

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// UnixBackend reserves address space via raw mmap(2), PROT_NONE, so no
// physical memory is ever committed. golang.org/x/sys/unix's high-level
// Mmap wrapper does not expose MAP_FIXED at an arbitrary address, so
// fixed requests go through the raw syscall directly, mirroring
// mmap_no_physical_mem in the original runtime.
type UnixBackend struct{}

// NewUnixBackend returns the production Backend for Linux.
func NewUnixBackend() *UnixBackend { return &UnixBackend{} }

func (*UnixBackend) MmapAnon(addr uintptr, size uint64, fixed bool) (uintptr, error) {
	flags := unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
	if fixed {
		flags |= unix.MAP_FIXED_NOREPLACE
	}
	got, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(size),
		uintptr(unix.PROT_NONE),
		uintptr(flags),
		^uintptr(0), // fd = -1
		0,
	)
	if errno != 0 {
		if fixed && errno == unix.EEXIST {
			return 0, ErrCollision
		}
		return 0, errno
	}
	return got, nil
}

func (*UnixBackend) Munmap(addr uintptr, size uint64) error {
	// unix.Munmap takes the []byte previously returned by unix.Mmap;
	// we instead hold a raw address from the syscall, so we rebuild an
	// equivalent slice header purely to satisfy that API.
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
	return unix.Munmap(b)
}
