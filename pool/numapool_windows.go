//go:build windows
// +build windows

package pool

// createNUMAAllocator returns the VirtualAllocExNuma-backed allocator
// home regions bind their NUMA segments through on Windows.
func createNUMAAllocator() NUMAAllocator {
	return newWindowsNUMAAllocator()
}
