// Package transport
// Author: momentics <momentics@gmail.com>
//
// In-process implementation of the api.Window one-sided RMA contract.
// Loopback stands in for an external MPI-window-like transport so a
// single OS process can host several simulated ranks. The package
// tests in this repository use fake.Window instead, and package sched
// does not touch a transport. It is never used for real inter-host RMA.

package transport

import (
	"encoding/binary"
	"sync"

	"github.com/itoyori/ityr-go/api"
)

// region is one rank's local window backing store, shared by every
// Loopback handle so puts from any rank are visible without a copy.
type region struct {
	mu   sync.Mutex // the "persistent shared lock" spec §6 requires
	data []byte
}

// Loopback is one rank's handle onto a collectively created set of
// shared regions.
type Loopback struct {
	regions []*region
	rank    int
	closed  bool
}

// Factory creates Loopback windows collectively: the Nth call to
// CreateWindow binds rank N-1 of the Factory's fixed world size.
type Factory struct {
	mu      sync.Mutex
	nranks  int
	regions []*region
	next    int
}

// NewFactory returns a Factory that will hand out exactly nranks
// windows before refusing further CreateWindow calls.
func NewFactory(nranks int) *Factory {
	return &Factory{nranks: nranks, regions: make([]*region, nranks)}
}

// CreateWindow implements api.WindowFactory. Each call binds the next
// unbound rank in rank order and allocates that rank's localSize
// backing store.
func (f *Factory) CreateWindow(localSize int) (api.Window, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= f.nranks {
		return nil, api.ErrResourceExhausted
	}
	rank := f.next
	f.next++
	f.regions[rank] = &region{data: make([]byte, localSize)}
	return &Loopback{regions: f.regions, rank: rank}, nil
}

func (w *Loopback) checkOpen() error {
	if w.closed {
		return api.ErrTransportClosed
	}
	if w.regions[w.rank] == nil {
		return api.NewError(api.ErrCodeInternal, "loopback window not fully created").
			WithContext("rank", w.rank)
	}
	return nil
}

// Put implements api.Window.
func (w *Loopback) Put(remote int, offset int64, buf []byte) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	r := w.regions[remote]
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset < 0 || offset+int64(len(buf)) > int64(len(r.data)) {
		return api.ErrOutOfBounds
	}
	copy(r.data[offset:], buf)
	return nil
}

// Get implements api.Window.
func (w *Loopback) Get(remote int, offset int64, buf []byte) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	r := w.regions[remote]
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset < 0 || offset+int64(len(buf)) > int64(len(r.data)) {
		return api.ErrOutOfBounds
	}
	copy(buf, r.data[offset:offset+int64(len(buf))])
	return nil
}

// Flush implements api.Window. Loopback puts complete synchronously,
// so Flush is a no-op kept for interface symmetry with a real
// asynchronous RMA transport.
func (w *Loopback) Flush(remote int) error {
	return w.checkOpen()
}

// FlushAll implements api.Window.
func (w *Loopback) FlushAll() error {
	return w.checkOpen()
}

// FetchAndOp implements api.Window: atomically adds delta to the
// int64 at offset and returns the pre-update value.
func (w *Loopback) FetchAndOp(remote int, offset int64, delta int64) (int64, error) {
	if err := w.checkOpen(); err != nil {
		return 0, err
	}
	r := w.regions[remote]
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset < 0 || offset+8 > int64(len(r.data)) {
		return 0, api.ErrOutOfBounds
	}
	cur := int64(binary.LittleEndian.Uint64(r.data[offset : offset+8]))
	binary.LittleEndian.PutUint64(r.data[offset:offset+8], uint64(cur+delta))
	return cur, nil
}

// CompareAndSwap implements api.Window.
func (w *Loopback) CompareAndSwap(remote int, offset int64, old, new int64) (int64, error) {
	if err := w.checkOpen(); err != nil {
		return 0, err
	}
	r := w.regions[remote]
	r.mu.Lock()
	defer r.mu.Unlock()
	if offset < 0 || offset+8 > int64(len(r.data)) {
		return 0, api.ErrOutOfBounds
	}
	cur := int64(binary.LittleEndian.Uint64(r.data[offset : offset+8]))
	if cur == old {
		binary.LittleEndian.PutUint64(r.data[offset:offset+8], uint64(new))
	}
	return cur, nil
}

// LocalBytes returns this rank's own window backing store, the same
// array Put/Get from every other rank observe. Callers that are
// provably co-located with this rank (the home mapper, for its own
// owner) use this for zero-copy access instead of routing a Get
// through themselves.
func (w *Loopback) LocalBytes() []byte {
	return w.regions[w.rank].data
}

// Rank implements api.Window.
func (w *Loopback) Rank() int { return w.rank }

// NRanks implements api.Window.
func (w *Loopback) NRanks() int { return len(w.regions) }

// Close implements api.Window.
func (w *Loopback) Close() error {
	w.closed = true
	return nil
}
