package coherence_test

import (
	"testing"

	"github.com/itoyori/ityr-go/cache"
	"github.com/itoyori/ityr-go/coherence"
	"github.com/itoyori/ityr-go/fake"
)

const blockSize = 4096
const dataRegionSize = blockSize * 4
const winSize = dataRegionSize + blockSize*8 // trailing epoch-slot region

func dataAddr(key cache.Key) uint64      { return key.BlockID * blockSize }
func epochSlot(key cache.Key) uint64     { return dataRegionSize + key.BlockID*8 }

// TestRoundTripWriteReleaseAcquireRead is spec.md §8 scenario 4: rank A
// writes a pattern, releases; rank B acquires and reads the same
// pattern back through a shared fake transport.
func TestRoundTripWriteReleaseAcquireRead(t *testing.T) {
	winA := fake.NewWindow(0, 2, winSize)
	winB := fake.NewWindow(1, 2, winSize)
	// The two fakes must share rank 1's (the owner's) backing store so
	// A's put and B's get observe the same memory; a real deployment
	// would have both point at the same owner's transport endpoint.
	shareOwnerBacking(t, winA, winB, 1)

	cacheA := cache.New(blockSize, 4, winA, dataAddr)
	cohA := coherence.New(cacheA, winA, epochSlot)
	cacheB := cache.New(blockSize, 4, winB, dataAddr)
	cohB := coherence.New(cacheB, winB, epochSlot)

	key := cache.Key{Owner: 1, BlockID: 0}

	eA, err := cacheA.Acquire(key, false) // write mode: block-aligned, no fetch
	if err != nil {
		t.Fatalf("A Acquire: %v", err)
	}
	pattern := []byte("the-pattern")
	copy(eA.Slab, pattern)
	if err := cacheA.MarkDirty(eA, 0, blockSize); err != nil {
		t.Fatalf("A MarkDirty: %v", err)
	}
	cacheA.Release(eA)
	if err := cohA.Release(); err != nil {
		t.Fatalf("A Release: %v", err)
	}

	if err := cohB.Acquire(); err != nil {
		t.Fatalf("B Acquire: %v", err)
	}
	eB, err := cacheB.Acquire(key, true)
	if err != nil {
		t.Fatalf("B Acquire block: %v", err)
	}
	if got := string(eB.Slab[:len(pattern)]); got != string(pattern) {
		t.Fatalf("B read %q, want %q", got, pattern)
	}
	cacheB.Release(eB)
}

// TestLazyReleaseHandoff is spec.md §8 scenario 5: a release_lazy
// handle, passed by value to a migrating task, makes the written
// block visible on acquire(handle) with a single RMA wait.
func TestLazyReleaseHandoff(t *testing.T) {
	winA := fake.NewWindow(0, 2, winSize)
	winC := fake.NewWindow(1, 2, winSize)
	shareOwnerBacking(t, winA, winC, 1)

	cacheA := cache.New(blockSize, 4, winA, dataAddr)
	cohA := coherence.New(cacheA, winA, epochSlot)
	cacheC := cache.New(blockSize, 4, winC, dataAddr)
	cohC := coherence.New(cacheC, winC, epochSlot)

	key := cache.Key{Owner: 1, BlockID: 0}

	eA, err := cacheA.Acquire(key, false)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	pattern := []byte("lazy-pattern")
	copy(eA.Slab, pattern)
	if err := cacheA.MarkDirty(eA, 0, blockSize); err != nil {
		t.Fatalf("MarkDirty: %v", err)
	}
	cacheA.Release(eA)

	h, err := cohA.ReleaseLazy()
	if err != nil {
		t.Fatalf("ReleaseLazy: %v", err)
	}

	// "migrate" the task: rank C receives the handle by value.
	if err := cohC.AcquireHandle(h); err != nil {
		t.Fatalf("AcquireHandle: %v", err)
	}
	eC, err := cacheC.Acquire(key, true)
	if err != nil {
		t.Fatalf("C Acquire: %v", err)
	}
	if got := string(eC.Slab[:len(pattern)]); got != string(pattern) {
		t.Fatalf("C read %q, want %q", got, pattern)
	}
	cacheC.Release(eC)
}

// TestReleaseWithNoDirtyBlocksIsNoop is spec.md §8's idempotence
// property: a release with nothing dirty issues no RMA traffic.
func TestReleaseWithNoDirtyBlocksIsNoop(t *testing.T) {
	win := fake.NewWindow(0, 2, winSize)
	var puts int
	win.OnPut(func() { puts++ })

	c := cache.New(blockSize, 4, win, dataAddr)
	coh := coherence.New(c, win, epochSlot)
	if err := coh.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if puts != 0 {
		t.Fatalf("Release with no dirty blocks issued %d puts, want 0", puts)
	}
}

// shareOwnerBacking makes a and b's view of rank `owner`'s backing
// store the same slice, simulating two fake.Window handles that in
// production would be two ranks' views of one real RMA-addressable
// window. After this call, any Put a issues to owner and any Get b
// issues from owner go through a's backing because both windows are
// aliased via fake.AliasWindowBacking.
func shareOwnerBacking(t *testing.T, a, b *fake.Window, owner int) {
	t.Helper()
	fake.AliasWindowBacking(a, b, owner)
}
