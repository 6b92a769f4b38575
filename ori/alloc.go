package ori

import (
	"sort"
	"sync"

	"github.com/itoyori/ityr-go/api"
)

// Allocator carves the collectively-reserved global address range
// into collective allocations, spec.md §4.6. Allocation and free are
// both collective: every rank must call them in the same order with
// the same sizes so every rank's allocator reaches the same state and
// therefore produces the same GlobalPtr, without further
// communication — exactly the bump/free-list allocator spec.md §4.6
// calls for ("the allocator need not be concurrent across processes
// for the same allocation").
type Allocator struct {
	mu   sync.Mutex
	size uint64
	bump uint64
	free []run
}

type run struct{ begin, end uint64 }

const pageAlign = 4096

func newAllocator(totalSize uint64) *Allocator {
	return &Allocator{size: totalSize}
}

func roundUp(v, align uint64) uint64 { return (v + align - 1) &^ (align - 1) }

// Malloc reserves nbytes, page-aligned, returning the offset within
// the collective region. It first tries the free list (first fit),
// then bumps.
func (a *Allocator) Malloc(nbytes uint64) (GlobalPtr, error) {
	if nbytes == 0 {
		return 0, api.NewError(api.ErrCodeInvalidArgument, "ori: zero-size allocation")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, r := range a.free {
		begin := roundUp(r.begin, pageAlign)
		if begin+nbytes <= r.end {
			a.carveFreeLocked(i, begin, begin+nbytes)
			return GlobalPtr(begin), nil
		}
	}

	begin := roundUp(a.bump, pageAlign)
	if begin+nbytes > a.size {
		return 0, api.NewError(api.ErrCodeResourceExhausted, "ori: collective region exhausted").
			WithContext("requested", nbytes).WithContext("remaining", a.size-a.bump)
	}
	a.bump = begin + nbytes
	return GlobalPtr(begin), nil
}

// carveFreeLocked removes [begin,end) from free run i, splitting it
// into zero, one, or two remaining runs.
func (a *Allocator) carveFreeLocked(i int, begin, end uint64) {
	r := a.free[i]
	a.free = append(a.free[:i], a.free[i+1:]...)
	if r.begin < begin {
		a.free = append(a.free, run{r.begin, begin})
	}
	if end < r.end {
		a.free = append(a.free, run{end, r.end})
	}
	sort.Slice(a.free, func(x, y int) bool { return a.free[x].begin < a.free[y].begin })
}

// Free returns [p, p+nbytes) to the free list. Collective: every rank
// must free the same allocation.
func (a *Allocator) Free(p GlobalPtr, nbytes uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	begin, end := uint64(p), uint64(p)+nbytes
	if end > a.size {
		return api.ErrOutOfBounds
	}
	merged := run{begin, end}
	var kept []run
	for _, r := range a.free {
		if r.end == merged.begin {
			merged.begin = r.begin
		} else if r.begin == merged.end {
			merged.end = r.end
		} else {
			kept = append(kept, r)
		}
	}
	kept = append(kept, merged)
	sort.Slice(kept, func(x, y int) bool { return kept[x].begin < kept[y].begin })
	a.free = kept
	return nil
}
