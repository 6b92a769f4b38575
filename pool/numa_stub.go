//go:build !linux && !windows
// +build !linux,!windows

package pool

// stubNUMAAllocator is available for platforms that want to opt into
// a NUMA-aware createNUMAAllocator later; it always reports one node
// and never binds, so NUMAPool would behave exactly like its own nil
// fallback if this were wired in.
type stubNUMAAllocator struct{}

func (s *stubNUMAAllocator) Alloc(size int, node int) ([]byte, error) {
	return nil, nil
}

func (s *stubNUMAAllocator) Free([]byte) {}

func (s *stubNUMAAllocator) Nodes() (int, error) {
	return 1, nil
}

func newStubNUMAAllocator() NUMAAllocator {
	return &stubNUMAAllocator{}
}
