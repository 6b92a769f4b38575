//go:build !linux && !windows
// +build !linux,!windows

package pool

// createNUMAAllocator returns nil on platforms with no NUMA binding
// support; NUMAPool.Get then falls back to a plain make([]byte) for
// every home-region segment instead of failing.
func createNUMAAllocator() NUMAAllocator {
	return nil
}
