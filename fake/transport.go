// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for all core contracts.

package fake

import (
	"sync"

	"github.com/itoyori/ityr-go/api"
)

// Window is a fake implementation of api.Window for unit-testing the
// block cache and coherence controller in isolation, without routing
// through the in-process multi-rank transport.Loopback. Each rank's
// backing store is a plain byte slice guarded by a mutex; error
// injection hooks let tests exercise the fatal-transport-failure paths
// from spec §7.
type Window struct {
	mu      sync.Mutex
	rank    int
	nranks  int
	backing [][]byte // backing[r] is rank r's local window contents
	closed  bool

	putErr   error
	getErr   error
	flushErr error

	onPut func()
	onGet func()
}

// NewWindow creates a fake window for rank among nranks, each with
// localSize bytes of backing storage.
func NewWindow(rank, nranks, localSize int) *Window {
	backing := make([][]byte, nranks)
	for i := range backing {
		backing[i] = make([]byte, localSize)
	}
	return &Window{rank: rank, nranks: nranks, backing: backing}
}

func (w *Window) Put(remote int, offset int64, buf []byte) error {
	if hook := w.putHook(); hook != nil {
		hook()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return api.ErrTransportClosed
	}
	if w.putErr != nil {
		return w.putErr
	}
	copy(w.backing[remote][offset:], buf)
	return nil
}

func (w *Window) Get(remote int, offset int64, buf []byte) error {
	if hook := w.getHook(); hook != nil {
		hook()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return api.ErrTransportClosed
	}
	if w.getErr != nil {
		return w.getErr
	}
	copy(buf, w.backing[remote][offset:offset+int64(len(buf))])
	return nil
}

func (w *Window) putHook() func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.onPut
}

func (w *Window) getHook() func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.onGet
}

func (w *Window) Flush(remote int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushErr
}

func (w *Window) FlushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushErr
}

func (w *Window) FetchAndOp(remote int, offset int64, delta int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := int64FromBytes(w.backing[remote][offset : offset+8])
	int64ToBytes(w.backing[remote][offset:offset+8], cur+delta)
	return cur, nil
}

func (w *Window) CompareAndSwap(remote int, offset int64, old, new int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := int64FromBytes(w.backing[remote][offset : offset+8])
	if cur == old {
		int64ToBytes(w.backing[remote][offset:offset+8], new)
	}
	return cur, nil
}

// LocalBytes returns this rank's own backing store, mirroring
// transport.Loopback.LocalBytes so runtime wiring code can use the
// same owner-local zero-copy path against either transport.
func (w *Window) LocalBytes() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.backing[w.rank]
}

func (w *Window) Rank() int   { return w.rank }
func (w *Window) NRanks() int { return w.nranks }

func (w *Window) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// SetPutError configures the window to return err on Put.
func (w *Window) SetPutError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.putErr = err
}

// SetGetError configures the window to return err on Get.
func (w *Window) SetGetError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.getErr = err
}

// OnPut registers fn to be called synchronously before every Put,
// letting tests gate or count RMA puts (e.g. to prove a flush on a
// clean entry issues none, or to coalesce concurrent fetches).
func (w *Window) OnPut(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onPut = fn
}

// OnGet registers fn to be called synchronously before every Get.
func (w *Window) OnGet(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onGet = fn
}

// AliasWindowBacking makes b's view of rank owner's backing store the
// same underlying array as a's, so a Put issued through one window
// and a Get issued through the other observe the same bytes — the
// single-process stand-in for two ranks addressing one real RMA
// window. Tests exercising cross-rank coherence (spec.md §8 scenarios
// 4 and 5) use this to simulate the shared owner endpoint without
// routing through transport.Loopback.
func AliasWindowBacking(a, b *Window, owner int) {
	a.mu.Lock()
	shared := a.backing[owner]
	a.mu.Unlock()

	b.mu.Lock()
	b.backing[owner] = shared
	b.mu.Unlock()
}

// SeedRemote pre-populates remote's backing store at offset, for
// tests that need a fetch to observe pre-existing content.
func (w *Window) SeedRemote(remote int, offset int64, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if offset < 0 || offset+int64(len(data)) > int64(len(w.backing[remote])) {
		return api.ErrOutOfBounds
	}
	copy(w.backing[remote][offset:], data)
	return nil
}

// ReadRemote returns a copy of remote's backing store at
// [offset, offset+n), for tests asserting on flushed content.
func (w *Window) ReadRemote(remote int, offset int64, n int) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if offset < 0 || offset+int64(n) > int64(len(w.backing[remote])) {
		return nil, api.ErrOutOfBounds
	}
	out := make([]byte, n)
	copy(out, w.backing[remote][offset:offset+int64(n)])
	return out, nil
}

func int64FromBytes(b []byte) int64 {
	var v int64
	for i := 7; i >= 0; i-- {
		v = v<<8 | int64(b[i])
	}
	return v
}

func int64ToBytes(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}
