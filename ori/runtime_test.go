package ori_test

import (
	"testing"

	"github.com/itoyori/ityr-go/fake"
	"github.com/itoyori/ityr-go/homemap"
	"github.com/itoyori/ityr-go/mapper"
	"github.com/itoyori/ityr-go/ori"
	"github.com/itoyori/ityr-go/topology"
)

// newTestRuntime wires a rank-0 Runtime in a two-inter-rank world: the
// lower half of the global address space is owned (and thus
// home-mapped) by rank 0 itself, the upper half by rank 1 and so only
// reachable through the block cache over win's fake RMA.
func newTestRuntime(t *testing.T) (*ori.Runtime, ori.Config) {
	t.Helper()
	cfg := ori.Config{
		GlobalSize:         4 * 4096, // room for several page-aligned allocations
		BlockSize:          64,
		MapperPolicy:       mapper.KindBlock,
		CacheSize:          4,
		EnableSharedMemory: true,
		NumaEnabled:        false,
	}
	topo := topology.New(0, []int{0, 1}, []int{0, 0}, false)
	policy := mapper.New(cfg.MapperPolicy, cfg.GlobalSize, cfg.BlockSize, topo.NInterRanks(), topo.NIntraRanks(), cfg.CyclicSegmentSize)
	win := fake.NewWindow(0, 2, int(ori.RequiredWindowSize(policy, 0)))
	rt, err := ori.NewRuntime(cfg, topo, win, homemap.NewRegistry())
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	return rt, cfg
}

func TestNewRuntimeRejectsMismatchedWindowRank(t *testing.T) {
	cfg := ori.DefaultConfig()
	cfg.GlobalSize = 256
	cfg.BlockSize = 64
	topo := topology.New(0, []int{0, 1}, []int{0, 0}, false)
	win := fake.NewWindow(1, 2, 4096)
	if _, err := ori.NewRuntime(cfg, topo, win, homemap.NewRegistry()); err == nil {
		t.Fatal("expected error for a window bound to the wrong rank")
	}
}

func TestNewRuntimeRejectsWorldSizeMismatch(t *testing.T) {
	cfg := ori.DefaultConfig()
	cfg.GlobalSize = 256
	cfg.BlockSize = 64
	topo := topology.New(0, []int{0, 1}, []int{0, 0}, false)
	win := fake.NewWindow(0, 3, 4096)
	if _, err := ori.NewRuntime(cfg, topo, win, homemap.NewRegistry()); err == nil {
		t.Fatal("expected error for a world size mismatch")
	}
}

func TestNewRuntimeRejectsInvalidConfig(t *testing.T) {
	cfg := ori.DefaultConfig()
	cfg.BlockSize = 3 // not a power of two
	topo := topology.New(0, []int{0}, []int{0}, false)
	win := fake.NewWindow(0, 1, 4096)
	if _, err := ori.NewRuntime(cfg, topo, win, homemap.NewRegistry()); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestRuntimeShutdownClosesWindow(t *testing.T) {
	rt, _ := newTestRuntime(t)
	if err := rt.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

// TestTwoCoLocatedRuntimesShareOneHomeRegistry builds two Runtimes for
// intra-ranks 0 and 1 of the same physical node (so both see InterRank
// 0) over one shared *homemap.Registry, as ori/runtime.go's NewRuntime
// doc comment describes the intended multi-intra-rank-per-node usage.
// The second Runtime's own window backing must never surface: its
// home region has to be the first Runtime's already-exported Region,
// not a second, independently allocated one.
func TestTwoCoLocatedRuntimesShareOneHomeRegistry(t *testing.T) {
	cfg := ori.Config{
		GlobalSize:         64,
		BlockSize:          64,
		MapperPolicy:       mapper.KindBlock,
		CacheSize:          4,
		EnableSharedMemory: true,
		NumaEnabled:        false,
	}
	// Both global ranks 0 and 1 sit on physical node 0: topology.New
	// assigns them the same InterRank, matching two intra-ranks
	// co-located on one node.
	topo0 := topology.New(0, []int{0, 0}, []int{0, 0}, false)
	topo1 := topology.New(1, []int{0, 0}, []int{0, 0}, false)
	if topo0.InterRank() != topo1.InterRank() {
		t.Fatalf("expected both intra-ranks to share one InterRank, got %d and %d", topo0.InterRank(), topo1.InterRank())
	}

	policy := mapper.New(cfg.MapperPolicy, cfg.GlobalSize, cfg.BlockSize, topo0.NInterRanks(), topo0.NIntraRanks(), cfg.CyclicSegmentSize)
	registry := homemap.NewRegistry()

	win0 := fake.NewWindow(0, topo0.NInterRanks(), int(ori.RequiredWindowSize(policy, 0)))
	win1 := fake.NewWindow(0, topo1.NInterRanks(), int(ori.RequiredWindowSize(policy, 0)))

	rt0, err := ori.NewRuntime(cfg, topo0, win0, registry)
	if err != nil {
		t.Fatalf("NewRuntime(rt0): %v", err)
	}
	rt1, err := ori.NewRuntime(cfg, topo1, win1, registry)
	if err != nil {
		t.Fatalf("NewRuntime(rt1): %v", err)
	}

	wco, err := ori.NewCheckout[byte](rt0, ori.GlobalSpan[byte]{Ptr: 0, Len: cfg.BlockSize}, ori.Write)
	if err != nil {
		t.Fatalf("checkout(rt0, write): %v", err)
	}
	for i := range wco.Slice() {
		wco.Slice()[i] = 0x5a
	}
	if err := wco.Checkin(); err != nil {
		t.Fatalf("checkin(rt0): %v", err)
	}

	rco, err := ori.NewCheckout[byte](rt1, ori.GlobalSpan[byte]{Ptr: 0, Len: cfg.BlockSize}, ori.ReadOnly)
	if err != nil {
		t.Fatalf("checkout(rt1, read): %v", err)
	}
	for i, b := range rco.Slice() {
		if b != 0x5a {
			t.Fatalf("byte %d = %#x, want 0x5a: rt1 did not observe rt0's write through the shared home region", i, b)
		}
	}
	if err := rco.Checkin(); err != nil {
		t.Fatalf("checkin(rt1): %v", err)
	}
}
