// checkout.go implements spec.md §4.5's scoped move-only checkout/
// check-in interface: the only way application code touches block
// data. A checkout spanning exactly one block gets a genuine zero-copy
// view, aliasing either the home region or the cache slab directly; a
// checkout spanning several blocks (or several owners) falls back to
// a bounce buffer that is copied in on open and written back on
// check-in, matching spec.md §9's Open Question resolution that only
// write-mode checkouts must be block-aligned — read checkouts may
// cross block boundaries at the cost of the copy.
package ori

import (
	"unsafe"

	"github.com/itoyori/ityr-go/api"
	"github.com/itoyori/ityr-go/cache"
)

// Mode selects a checkout's access intent, spec.md §4.5.
type Mode int

const (
	// ReadOnly fetches current content; writes are undefined.
	ReadOnly Mode = iota
	// Write promises to overwrite the entire checked-out range and so
	// skips the fetch; must be block-aligned.
	Write
	// ReadWrite fetches current content and may modify it.
	ReadWrite
	// NoAccess addresses the range without fetching, pinning no blocks
	// and implying no coherence obligation on check-in; its Slice is
	// nil.
	NoAccess
)

// blockRef is one block's contribution to a checkout's byte view.
type blockRef struct {
	key              cache.Key
	entry            *cache.Entry // nil when this block is home-backed
	dataBuf          []byte       // exactly [subBegin,subEnd) of this block, already sliced
	subBegin, subEnd uint64
}

// Checkout is the scoped handle spec.md §4.5 returns: a live view onto
// [span.Ptr, span.Ptr+span.Len) that must be checked in exactly once.
// It is move-only in spirit — callers must not use a Checkout value
// after Checkin — but Go cannot enforce that statically; Checkin
// guards against being called twice.
type Checkout[T any] struct {
	rt   *Runtime
	span GlobalSpan[T]
	mode Mode

	blocks    []blockRef
	bytes     []byte
	bounce    bool
	checkedIn bool
}

// NewCheckout implements spec.md §4.5's checkout(). T's size need not
// divide evenly into the block size; only the span's total byte range
// is block-aligned for Write mode.
func NewCheckout[T any](rt *Runtime, span GlobalSpan[T], mode Mode) (*Checkout[T], error) {
	begin, end := span.ByteRange()
	if begin > end || end > rt.policy.EffectiveSize() {
		return nil, api.ErrOutOfBounds
	}
	if begin == end || mode == NoAccess {
		return &Checkout[T]{rt: rt, span: span, mode: mode}, nil
	}

	blockSize := rt.policy.BlockSize()
	if mode == Write && (begin%blockSize != 0 || end%blockSize != 0) {
		return nil, api.ErrMisalignedWrite
	}

	firstBlock := begin / blockSize
	lastBlock := (end - 1) / blockSize
	fetch := mode == ReadOnly || mode == ReadWrite

	var blocks []blockRef
	for blockID := firstBlock; blockID <= lastBlock; blockID++ {
		blockGlobalBegin := blockID * blockSize
		blockGlobalEnd := blockGlobalBegin + blockSize
		subBegin := uint64(0)
		if begin > blockGlobalBegin {
			subBegin = begin - blockGlobalBegin
		}
		subEnd := blockSize
		if end < blockGlobalEnd {
			subEnd = end - blockGlobalBegin
		}

		owner, physOffset := blockDataOffset(rt.policy, blockID)
		key := cache.Key{Owner: owner, BlockID: blockID}

		if owner == rt.topo.InterRank() && rt.cfg.EnableSharedMemory {
			data, ok := rt.home.Bytes(owner, physOffset+subBegin, physOffset+subEnd)
			if !ok {
				releaseBlocks(rt, blocks)
				return nil, api.ErrOutOfBounds
			}
			blocks = append(blocks, blockRef{key: key, dataBuf: data, subBegin: subBegin, subEnd: subEnd})
			continue
		}

		entry, err := rt.c.Acquire(key, fetch)
		if err != nil {
			releaseBlocks(rt, blocks)
			return nil, err
		}
		if fetch {
			if err := rt.coh.RecordFetchEpoch(key, entry); err != nil {
				rt.c.Release(entry)
				releaseBlocks(rt, blocks)
				return nil, err
			}
		}
		blocks = append(blocks, blockRef{
			key: key, entry: entry,
			dataBuf: entry.Slab[subBegin:subEnd],
			subBegin: subBegin, subEnd: subEnd,
		})
	}

	co := &Checkout[T]{rt: rt, span: span, mode: mode, blocks: blocks}
	if len(blocks) == 1 {
		co.bytes = blocks[0].dataBuf
		return co, nil
	}

	buf := make([]byte, end-begin)
	if fetch {
		pos := uint64(0)
		for _, b := range blocks {
			n := uint64(len(b.dataBuf))
			copy(buf[pos:pos+n], b.dataBuf)
			pos += n
		}
	}
	co.bounce = true
	co.bytes = buf
	return co, nil
}

func releaseBlocks(rt *Runtime, blocks []blockRef) {
	for _, b := range blocks {
		if b.entry != nil {
			rt.c.Release(b.entry)
		}
	}
}

// Slice exposes the checked-out range as a []T. For a zero-copy
// checkout this aliases the cache slab or home region directly;
// mutating it through a pointer-mode type is only meaningful before
// Checkin.
func (co *Checkout[T]) Slice() []T {
	if len(co.bytes) == 0 {
		return nil
	}
	sz := elemSize[T]()
	n := uint64(len(co.bytes)) / sz
	return unsafe.Slice((*T)(unsafe.Pointer(&co.bytes[0])), n)
}

// Checkin implements spec.md §4.5's checkin(): writes back a bounce
// buffer if one was used, marks every touched block dirty for Write
// and ReadWrite modes, and releases every cache pin this checkout
// holds. Calling Checkin twice returns api.ErrDoubleCheckin.
func (co *Checkout[T]) Checkin() error {
	if co.checkedIn {
		return api.ErrDoubleCheckin
	}
	co.checkedIn = true
	if len(co.blocks) == 0 {
		return nil
	}

	if co.bounce && co.mode != ReadOnly && co.mode != NoAccess {
		pos := uint64(0)
		for _, b := range co.blocks {
			n := uint64(len(b.dataBuf))
			copy(b.dataBuf, co.bytes[pos:pos+n])
			pos += n
		}
	}

	var firstErr error
	for _, b := range co.blocks {
		if b.entry == nil {
			continue
		}
		if co.mode == Write || co.mode == ReadWrite {
			if err := co.rt.c.MarkDirty(b.entry, b.subBegin, b.subEnd); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		co.rt.c.Release(b.entry)
	}
	return firstErr
}

// MakeCheckouts opens one checkout per span, all in mode, and is
// all-or-nothing: if any span fails to check out, every checkout
// already opened by this call is checked back in before the error is
// returned. This is the batch convenience spec.md §11 supplements for
// tasks that need several disjoint ranges pinned together.
func MakeCheckouts[T any](rt *Runtime, mode Mode, spans ...GlobalSpan[T]) ([]*Checkout[T], error) {
	cos := make([]*Checkout[T], 0, len(spans))
	for _, sp := range spans {
		co, err := NewCheckout(rt, sp, mode)
		if err != nil {
			for _, c := range cos {
				_ = c.Checkin()
			}
			return nil, err
		}
		cos = append(cos, co)
	}
	return cos, nil
}

// PendingCheckout is the nonblocking checkout_nb/checkout_complete
// pair spec.md §11 supplements: CheckoutAsync issues the checkout
// (including any RMA fetch) on a separate goroutine and returns
// immediately, letting the caller overlap unrelated work before
// calling Complete.
type PendingCheckout[T any] struct {
	done chan struct{}
	co   *Checkout[T]
	err  error
}

// CheckoutAsync starts an asynchronous checkout.
func CheckoutAsync[T any](rt *Runtime, span GlobalSpan[T], mode Mode) *PendingCheckout[T] {
	p := &PendingCheckout[T]{done: make(chan struct{})}
	go func() {
		p.co, p.err = NewCheckout(rt, span, mode)
		close(p.done)
	}()
	return p
}

// Complete implements checkout_complete: blocks until the checkout
// started by CheckoutAsync finishes and returns its result.
func (p *PendingCheckout[T]) Complete() (*Checkout[T], error) {
	<-p.done
	return p.co, p.err
}
