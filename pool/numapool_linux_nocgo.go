//go:build linux && !cgo
// +build linux,!cgo

package pool

// createNUMAAllocator returns nil on Linux builds with CGO disabled,
// since the libnuma-backed allocator in numa_linux.go requires cgo;
// NUMAPool.Get then falls back to a plain make([]byte) for every
// home-region segment instead of failing.
func createNUMAAllocator() NUMAAllocator {
	return nil
}
