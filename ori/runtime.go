package ori

import (
	"github.com/itoyori/ityr-go/api"
	"github.com/itoyori/ityr-go/cache"
	"github.com/itoyori/ityr-go/coherence"
	"github.com/itoyori/ityr-go/control"
	"github.com/itoyori/ityr-go/homemap"
	"github.com/itoyori/ityr-go/mapper"
	"github.com/itoyori/ityr-go/topology"
)

// localBacker is satisfied by transport.Loopback and fake.Window: it
// exposes a rank's own window backing store so the home mapper can
// read/write it with zero copies instead of every access, including
// this rank's own, going through Get/Put.
type localBacker interface {
	LocalBytes() []byte
}

// Runtime is the per-node DSM context spec.md §9 asks every other
// component to be wrapped behind: one Runtime owns one inter-rank's
// share of the global address space — its mapper-assigned data, home
// export, block cache, coherence controller, and collective allocator
// — and is the only type application code and the checkout interface
// (checkout.go) touch directly.
type Runtime struct {
	cfg    Config
	topo   *topology.Topology
	policy mapper.Policy
	window api.Window

	home *homemap.HomeMapper
	c    *cache.Cache
	coh  *coherence.Controller
	alc  *Allocator

	metrics *control.MetricsRegistry
	debug   *control.DebugProbes
	confs   *control.ConfigStore
	log     *control.Logger
}

// NewRuntime builds the Runtime for topo's inter-rank. window must
// already be bound to topo.InterRank() among topo.NInterRanks() peers
// and sized at least RequiredWindowSize(policy, topo.InterRank()) —
// callers compute the mapper policy's size requirement via
// RequiredWindowSize before creating window through their
// api.WindowFactory, since the policy itself is what determines it.
// registry is the per-node home-export point shared by every Runtime
// co-located with topo (spec.md §4.2); pass a fresh homemap.NewRegistry()
// when topo's node hosts only this one Runtime.
func NewRuntime(cfg Config, topo *topology.Topology, window api.Window, registry *homemap.Registry) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if window.Rank() != topo.InterRank() {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "ori: window is not bound to this rank's inter-rank").
			WithContext("window_rank", window.Rank()).WithContext("inter_rank", topo.InterRank())
	}
	if window.NRanks() != topo.NInterRanks() {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "ori: window world size does not match topology").
			WithContext("window_nranks", window.NRanks()).WithContext("n_inter_ranks", topo.NInterRanks())
	}

	policy := mapper.New(cfg.MapperPolicy, cfg.GlobalSize, cfg.BlockSize, topo.NInterRanks(), topo.NIntraRanks(), cfg.CyclicSegmentSize)

	var localBacking []byte
	if lb, ok := window.(localBacker); ok {
		localBacking = lb.LocalBytes()[:policy.LocalSize(topo.InterRank())]
	}
	home := homemap.New(topo, policy, registry, cfg.NumaEnabled, localBacking)

	addrOf := cache.Addresser(func(key cache.Key) uint64 {
		_, off := blockDataOffset(policy, key.BlockID)
		return off
	})
	c := cache.New(cfg.BlockSize, cfg.CacheSize, window, addrOf)

	epochSlot := coherence.EpochAddresser(func(key cache.Key) uint64 {
		return blockEpochOffset(policy, key.BlockID)
	})
	coh := coherence.New(c, window, epochSlot)

	alc := newAllocator(policy.EffectiveSize())

	rt := &Runtime{
		cfg:     cfg,
		topo:    topo,
		policy:  policy,
		window:  window,
		home:    home,
		c:       c,
		coh:     coh,
		alc:     alc,
		metrics: control.NewMetricsRegistry(),
		debug:   control.NewDebugProbes(),
		confs:   control.NewConfigStore(),
		log:     control.NewLogger("ori"),
	}
	rt.c.SetLogger(rt.log)
	rt.debug.RegisterProbe("cache.stats", func() any { return rt.c.Stats() })
	rt.debug.RegisterProbe("rank", func() any { return rt.topo.InterRank() })
	control.RegisterPlatformProbes(rt.debug)
	rt.confs.SetConfig(map[string]any{
		"global_size":          cfg.GlobalSize,
		"block_size":           cfg.BlockSize,
		"cache_size":           cfg.CacheSize,
		"enable_shared_memory": cfg.EnableSharedMemory,
		"numa_enabled":         cfg.NumaEnabled,
	})
	return rt, nil
}

// ConfigSnapshot returns the effective configuration this Runtime was
// built with, as a plain key/value snapshot. The Config itself is
// immutable for the lifetime of a Runtime (spec.md §6's "a block size
// fixed at allocation time" extends to every other tunable here); this
// exists for the same inspection use case as control.ConfigStore's
// GetSnapshot, not to support a reload the mapper and cache layout
// could never safely observe mid-run.
func (rt *Runtime) ConfigSnapshot() map[string]any { return rt.confs.GetSnapshot() }

// Malloc implements spec.md §4.6's collective malloc.
func (rt *Runtime) Malloc(nbytes uint64) (GlobalPtr, error) { return rt.alc.Malloc(nbytes) }

// Free implements spec.md §4.6's collective free.
func (rt *Runtime) Free(p GlobalPtr, nbytes uint64) error { return rt.alc.Free(p, nbytes) }

// Release implements spec.md §4.4's synchronous release.
func (rt *Runtime) Release() error { return rt.logFatal(rt.coh.Release()) }

// ReleaseLazy implements spec.md §4.4's release_lazy.
func (rt *Runtime) ReleaseLazy() (*coherence.Handle, error) {
	h, err := rt.coh.ReleaseLazy()
	return h, rt.logFatal(err)
}

// AcquireHandle implements spec.md §4.4's acquire(handle).
func (rt *Runtime) AcquireHandle(h *coherence.Handle) error { return rt.logFatal(rt.coh.AcquireHandle(h)) }

// Acquire implements spec.md §4.4's bare acquire().
func (rt *Runtime) Acquire() error { return rt.logFatal(rt.coh.Acquire()) }

// logFatal reports errors api.IsFatal flags as unrecoverable (a torn
// epoch counter, a transport failure mid-flush) before returning them
// unchanged, so the disposition is visible in the runtime's own log
// even though the caller, not Runtime, decides whether to abort.
func (rt *Runtime) logFatal(err error) error {
	if err != nil && api.IsFatal(err) {
		rt.log.Printf("fatal coherence error: %v", err)
	}
	return err
}

// CacheStats exposes the block cache's resident/hit/miss counters for
// diagnostics and tests (spec.md §8 scenario 6), and publishes them
// into the metrics registry so an external poller can scrape them
// without calling back into the cache directly.
func (rt *Runtime) CacheStats() cache.Stats {
	s := rt.c.Stats()
	rt.metrics.Set("cache.resident", s.Resident)
	rt.metrics.Set("cache.hits", s.Hits)
	rt.metrics.Set("cache.misses", s.Misses)
	return s
}

// Metrics returns this Runtime's metrics registry.
func (rt *Runtime) Metrics() *control.MetricsRegistry { return rt.metrics }

// DebugProbes returns this Runtime's debug probe registry, exposing
// "cache.stats" and "rank" out of the box.
func (rt *Runtime) DebugProbes() *control.DebugProbes { return rt.debug }

// Shutdown implements api.GracefulShutdown, tearing down the home
// mapper and releasing the window.
func (rt *Runtime) Shutdown() error {
	if err := rt.home.Shutdown(); err != nil {
		return err
	}
	return rt.window.Close()
}

var _ api.GracefulShutdown = (*Runtime)(nil)
