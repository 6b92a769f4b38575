// Package coherence implements the release-consistency protocol from
// spec.md §4.4: lazy-flushing release, an epoch-based acquire that
// demotes stale cache entries, and release handles that carry
// happens-before across a migrating task (spec.md §5). Grounded on
// ityr::ori::release_manager / ityr::ori::core's two-epoch coherence
// scheme in the original runtime, and on the eapache/queue FIFO this
// repository's domain stack wires in for a lazy release's in-flight
// put requests.
package coherence

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/itoyori/ityr-go/api"
	"github.com/itoyori/ityr-go/cache"
)

// EpochAddresser resolves where, in the owning rank's window, the
// monotonic epoch counter for key lives — a reserved 8-byte slot
// alongside (not inside) the block's data, matching spec.md §4.4's
// "epoch bumps are piggy-backed on the RMA completion that posted the
// writes" by using the transport's FetchAndOp on that slot right
// after the data Put.
type EpochAddresser func(key cache.Key) (slotOffset uint64)

// Controller is the per-rank coherence authority layered on top of
// one cache.Cache. It never touches home-mapped blocks: those bypass
// the cache entirely and are already store-visible to co-located
// peers (spec.md §4.4's "home-mapped blocks bypass the cache").
type Controller struct {
	mu sync.Mutex

	cache      *cache.Cache
	window     api.Window
	epochSlot  EpochAddresser
	localEpoch map[cache.Key]uint64 // this rank's view of each entry's content epoch
}

// New builds a Controller over c, issuing epoch reads/bumps through
// window at the slot epochSlot resolves for a key.
func New(c *cache.Cache, window api.Window, epochSlot EpochAddresser) *Controller {
	return &Controller{
		cache:      c,
		window:     window,
		epochSlot:  epochSlot,
		localEpoch: make(map[cache.Key]uint64),
	}
}

// Handle is the opaque token spec.md §4.4's release_lazy() returns:
// the set of in-flight put+epoch-bump requests, plus the epoch vector
// those requests will establish once complete.
type Handle struct {
	mu      sync.Mutex
	reqs    *queue.Queue // of *request
	written map[cache.Key]uint64
}

type request struct {
	done chan error
}

func newHandle() *Handle {
	return &Handle{reqs: queue.New(), written: make(map[cache.Key]uint64)}
}

// Covers reports whether every write captured by other is also
// captured by h, i.e. other <= h — the partial order spec.md §3
// defines over release handles.
func (h *Handle) Covers(other *Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()
	for k, epoch := range other.written {
		got, ok := h.written[k]
		if !ok || got < epoch {
			return false
		}
	}
	return true
}

// Merge combines handles into one that is complete only once every
// constituent handle is, so a task synchronising on several prior
// releases can acquire them together.
func Merge(handles ...*Handle) *Handle {
	m := newHandle()
	for _, h := range handles {
		h.mu.Lock()
		for h.reqs.Length() > 0 {
			m.reqs.Add(h.reqs.Remove())
		}
		for k, e := range h.written {
			if cur, ok := m.written[k]; !ok || e > cur {
				m.written[k] = e
			}
		}
		h.mu.Unlock()
	}
	return m
}

// Release implements spec.md §4.4's synchronous release: flush every
// dirty entry and wait for each put (and its epoch bump) to complete
// before returning.
func (c *Controller) Release() error {
	h, err := c.ReleaseLazy()
	if err != nil {
		return err
	}
	return c.AcquireHandle(h)
}

// ReleaseLazy implements spec.md §4.4's release_lazy(): issues the
// puts and epoch bumps without waiting, returning a Handle a later
// AcquireHandle call completes.
func (c *Controller) ReleaseLazy() (*Handle, error) {
	keys := c.cache.SnapshotDirty()
	h := newHandle()
	if len(keys) == 0 {
		return h, nil
	}

	for _, key := range keys {
		entry, ok := c.cache.Lookup(key)
		if !ok {
			continue
		}
		req := &request{done: make(chan error, 1)}
		h.reqs.Add(req)

		go func(key cache.Key, entry *cache.Entry) {
			err := c.cache.Flush(entry)
			if err == nil {
				newEpoch, opErr := c.window.FetchAndOp(key.Owner, int64(c.epochSlot(key)), 1)
				if opErr != nil {
					err = opErr
				} else {
					h.mu.Lock()
					h.written[key] = uint64(newEpoch) + 1
					h.mu.Unlock()
				}
			}
			req.done <- err
		}(key, entry)
	}
	return h, nil
}

// AcquireHandle implements spec.md §4.4's acquire(handle): waits for
// every request in h, then demotes this rank's view of every key h
// wrote so the next touch re-fetches fresh content. A transport
// failure here is fatal per spec.md §7.
func (c *Controller) AcquireHandle(h *Handle) error {
	for {
		h.mu.Lock()
		if h.reqs.Length() == 0 {
			h.mu.Unlock()
			break
		}
		req := h.reqs.Remove().(*request)
		h.mu.Unlock()
		if err := <-req.done; err != nil {
			return api.NewError(api.ErrCodeFatal, "coherence: release_lazy put failed").
				WithContext("cause", err.Error())
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, epoch := range h.written {
		c.demoteIfStale(key, epoch)
	}
	return nil
}

// Acquire implements spec.md §4.4's bare acquire(): for every
// currently-unpinned resident entry, compare its recorded content
// epoch against the owner's current epoch and demote to Invalid if
// stale. This is the general happens-before sweep a task performs on
// entry to a scheduling point, independent of any specific handle.
func (c *Controller) Acquire() error {
	for _, key := range c.cache.SnapshotUnpinned() {
		entry, ok := c.cache.Lookup(key)
		if !ok || entry.RefCount != 0 {
			continue
		}
		ownerEpoch, err := c.readOwnerEpoch(key)
		if err != nil {
			return api.NewError(api.ErrCodeFatal, "coherence: epoch read failed").
				WithContext("cause", err.Error())
		}
		c.mu.Lock()
		c.demoteIfStale(key, ownerEpoch)
		c.mu.Unlock()
	}
	return nil
}

// demoteIfStale invalidates the cache entry for key if its recorded
// epoch is older than observedEpoch, recording observedEpoch as the
// new baseline either way. Must be called with c.mu held.
func (c *Controller) demoteIfStale(key cache.Key, observedEpoch uint64) {
	have := c.localEpoch[key]
	if observedEpoch > have {
		c.localEpoch[key] = observedEpoch
	}
	entry, ok := c.cache.Lookup(key)
	if !ok {
		return
	}
	if entry.Epoch >= observedEpoch {
		return
	}
	entry.Epoch = observedEpoch
	if entry.RefCount == 0 && !entry.IsDirty() {
		_ = c.cache.Invalidate(entry)
	}
}

func (c *Controller) readOwnerEpoch(key cache.Key) (uint64, error) {
	v, err := c.window.FetchAndOp(key.Owner, int64(c.epochSlot(key)), 0)
	if err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// RecordFetchEpoch stamps entry with the epoch it was fetched at, so
// a subsequent Acquire() knows whether a later remote release has
// superseded this copy. The checkout interface calls this right after
// cache.Acquire's RMA get completes.
func (c *Controller) RecordFetchEpoch(key cache.Key, entry *cache.Entry) error {
	epoch, err := c.readOwnerEpoch(key)
	if err != nil {
		return err
	}
	c.mu.Lock()
	entry.Epoch = epoch
	if epoch > c.localEpoch[key] {
		c.localEpoch[key] = epoch
	}
	c.mu.Unlock()
	return nil
}
