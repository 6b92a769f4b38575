package vmem

import "sync"

// FakeBackend simulates one rank's view of address space for tests,
// letting a test pre-seed a colliding mapping exactly where the
// spec.md §8 scenario 3 ("VM reservation collision") requires.
type FakeBackend struct {
	mu       sync.Mutex
	nextAddr uintptr
	taken    []Reservation
}

// NewFakeBackend returns a FakeBackend that hands out non-fixed
// addresses starting at floor and increasing, skipping past any range
// already taken (seeded or reserved) the way a real kernel would.
func NewFakeBackend(floor uintptr) *FakeBackend {
	return &FakeBackend{nextAddr: floor}
}

// Seed pre-occupies [addr, addr+size) as if some unrelated mapping
// already existed there, forcing a later fixed request to collide.
func (f *FakeBackend) Seed(addr uintptr, size uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taken = append(f.taken, Reservation{addr, size})
}

func (f *FakeBackend) MmapAnon(addr uintptr, size uint64, fixed bool) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !fixed {
		addr = f.nextAddr
		for moved := true; moved; {
			moved = false
			for _, t := range f.taken {
				if overlaps(t.Addr, t.Size, addr, size) {
					addr = t.Addr + uintptr(t.Size) + uintptr(pageSize)
					moved = true
				}
			}
		}
		f.nextAddr = addr + uintptr(size) + uintptr(pageSize) // leave a gap, like real ASLR would
	}
	for _, t := range f.taken {
		if overlaps(t.Addr, t.Size, addr, size) {
			return 0, ErrCollision
		}
	}
	f.taken = append(f.taken, Reservation{addr, size})
	return addr, nil
}

func (f *FakeBackend) Munmap(addr uintptr, size uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.taken {
		if t.Addr == addr && t.Size == size {
			f.taken = append(f.taken[:i], f.taken[i+1:]...)
			return nil
		}
	}
	return nil
}
