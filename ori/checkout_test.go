package ori_test

import (
	"testing"

	"github.com/itoyori/ityr-go/ori"
)

func TestCheckoutHomeWriteThenRead(t *testing.T) {
	rt, _ := newTestRuntime(t)
	span := ori.GlobalSpan[byte]{Ptr: 0, Len: 64} // rank 0's own half: home path

	wco, err := ori.NewCheckout(rt, span, ori.Write)
	if err != nil {
		t.Fatalf("checkout write: %v", err)
	}
	data := wco.Slice()
	for i := range data {
		data[i] = byte(i)
	}
	if err := wco.Checkin(); err != nil {
		t.Fatalf("checkin: %v", err)
	}

	rco, err := ori.NewCheckout(rt, span, ori.ReadOnly)
	if err != nil {
		t.Fatalf("checkout read: %v", err)
	}
	got := rco.Slice()
	for i := range got {
		if got[i] != byte(i) {
			t.Fatalf("byte %d = %d, want %d", i, got[i], byte(i))
		}
	}
	if err := rco.Checkin(); err != nil {
		t.Fatalf("checkin: %v", err)
	}
}

func TestCheckoutRemoteWriteThenReadGoesThroughCache(t *testing.T) {
	rt, cfg := newTestRuntime(t)
	// rank 1's first block: [GlobalSize/2, GlobalSize/2+BlockSize).
	span := ori.GlobalSpan[byte]{Ptr: ori.GlobalPtr(cfg.GlobalSize / 2), Len: cfg.BlockSize}

	wco, err := ori.NewCheckout(rt, span, ori.Write)
	if err != nil {
		t.Fatalf("checkout write: %v", err)
	}
	data := wco.Slice()
	for i := range data {
		data[i] = 0xAB
	}
	if err := wco.Checkin(); err != nil {
		t.Fatalf("checkin: %v", err)
	}

	if stats := rt.CacheStats(); stats.Resident == 0 {
		t.Fatal("expected a resident cache entry after a remote checkout")
	}

	rco, err := ori.NewCheckout(rt, span, ori.ReadOnly)
	if err != nil {
		t.Fatalf("checkout read: %v", err)
	}
	got := rco.Slice()
	for i := range got {
		if got[i] != 0xAB {
			t.Fatalf("byte %d = %#x, want 0xab", i, got[i])
		}
	}
	if err := rco.Checkin(); err != nil {
		t.Fatalf("checkin: %v", err)
	}
}

func TestWriteCheckoutRejectsMisalignedRange(t *testing.T) {
	rt, _ := newTestRuntime(t)
	span := ori.GlobalSpan[byte]{Ptr: 1, Len: 10}
	if _, err := ori.NewCheckout(rt, span, ori.Write); err == nil {
		t.Fatal("expected a misaligned-write error")
	}
}

func TestNoAccessCheckoutSkipsFetch(t *testing.T) {
	rt, cfg := newTestRuntime(t)
	span := ori.GlobalSpan[byte]{Ptr: ori.GlobalPtr(cfg.GlobalSize / 2), Len: cfg.BlockSize}
	co, err := ori.NewCheckout(rt, span, ori.NoAccess)
	if err != nil {
		t.Fatalf("checkout no_access: %v", err)
	}
	if err := co.Checkin(); err != nil {
		t.Fatalf("checkin: %v", err)
	}
}

func TestMakeCheckoutsAllOrNothing(t *testing.T) {
	rt, cfg := newTestRuntime(t)
	good := ori.GlobalSpan[byte]{Ptr: 0, Len: cfg.BlockSize}
	bad := ori.GlobalSpan[byte]{Ptr: ori.GlobalPtr(cfg.GlobalSize + 1000), Len: 8}
	if _, err := ori.MakeCheckouts(rt, ori.ReadOnly, good, bad); err == nil {
		t.Fatal("expected an out-of-bounds error from the second span")
	}
}

func TestCheckoutAsyncCompletes(t *testing.T) {
	rt, _ := newTestRuntime(t)
	span := ori.GlobalSpan[byte]{Ptr: 0, Len: 32}
	p := ori.CheckoutAsync(rt, span, ori.ReadOnly)
	co, err := p.Complete()
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := co.Checkin(); err != nil {
		t.Fatalf("checkin: %v", err)
	}
}

func TestCheckinTwiceFails(t *testing.T) {
	rt, _ := newTestRuntime(t)
	span := ori.GlobalSpan[byte]{Ptr: 0, Len: 16}
	co, err := ori.NewCheckout(rt, span, ori.ReadOnly)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if err := co.Checkin(); err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if err := co.Checkin(); err == nil {
		t.Fatal("expected a double-checkin error")
	}
}

func TestMultiBlockReadOnlyCheckoutBouncesAcrossOwners(t *testing.T) {
	rt, cfg := newTestRuntime(t)
	// Spans the boundary between rank 0's half and rank 1's half:
	// forces the bounce-buffer path across two distinct owners.
	span := ori.GlobalSpan[byte]{Ptr: ori.GlobalPtr(cfg.GlobalSize/2 - 8), Len: 16}
	co, err := ori.NewCheckout(rt, span, ori.ReadOnly)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if got := len(co.Slice()); got != 16 {
		t.Fatalf("slice length = %d, want 16", got)
	}
	if err := co.Checkin(); err != nil {
		t.Fatalf("checkin: %v", err)
	}
}
