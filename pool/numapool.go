// Package pool backs homemap.Registry.export's per-NUMA-chunk
// allocation (pool/doc.go): each NUMA segment a mapper.Policy assigns
// a home region gets its own sync.Pool-backed buffer bound to that
// segment's NUMA node, with a plain make([]byte) fallback wherever a
// real NUMA bind isn't available. Concrete allocators are selected at
// build time through the platform-specific createNUMAAllocator in
// numapool_linux.go/numapool_windows.go/numapool_stub.go.
package pool

import (
	"sync"
)

// NUMAAllocator is the platform hook NUMAPool binds a chunk's backing
// buffer through: node-local alloc/free plus a node count for callers
// (homemap's per-segment export loop) that size their NUMA fan-out off
// the host topology rather than a hardcoded guess.
type NUMAAllocator interface {
	Alloc(size int, node int) ([]byte, error)
	Free([]byte)
	Nodes() (int, error)
}

// NUMAPool hands out the backing buffer for one home-region NUMA
// segment: every Get from the same pool is bound to the same node, so
// the segment stays resident where the home mapper's policy placed it.
type NUMAPool struct {
	alloc  NUMAAllocator
	size   int
	pool   sync.Pool
	node   int // NUMA node this segment is bound to
	enable bool
}

// NewNUMAPool creates the buffer source for a home region's NUMA
// segment of size bytes pinned to node. When this platform has no
// NUMA allocator, or enable is false, Get falls back to a plain
// make([]byte, size) with no node affinity — the segment is still
// correct, just not NUMA-local, matching the "NUMA binding is
// best-effort" stance homemap.Registry.export takes for its backing.
func NewNUMAPool(node int, size int, enable bool) *NUMAPool {
	na := createNUMAAllocator()
	return &NUMAPool{
		alloc:  na,
		size:   size,
		node:   node,
		enable: enable && na != nil,
		pool: sync.Pool{
			New: func() interface{} {
				if na == nil || !enable {
					return make([]byte, size)
				}
				b, err := na.Alloc(size, node)
				if err != nil {
					return make([]byte, size)
				}
				return b
			},
		},
	}
}

// Get returns a node-bound buffer for this segment.
func (p *NUMAPool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put returns a segment buffer to the pool, freeing it through the
// NUMA allocator first when one is active.
func (p *NUMAPool) Put(buf []byte) {
	if p.alloc != nil && p.enable {
		p.alloc.Free(buf)
	}
	p.pool.Put(buf[:p.size])
}
