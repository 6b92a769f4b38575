//go:build linux && cgo
// +build linux,cgo

package pool

// createNUMAAllocator returns the libnuma-backed allocator home
// regions bind their NUMA segments through on Linux.
func createNUMAAllocator() NUMAAllocator {
	return newLinuxNUMAAllocator()
}
