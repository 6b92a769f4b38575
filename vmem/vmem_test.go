package vmem_test

import (
	"fmt"
	"testing"

	"github.com/itoyori/ityr-go/vmem"
)

type retrySpy struct {
	lines []string
}

func (s *retrySpy) Printf(format string, args ...any) {
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

func TestReserveCollectiveNoCollision(t *testing.T) {
	const pageSize = 4096
	backends := make([]vmem.Backend, 4)
	for i := range backends {
		backends[i] = vmem.NewFakeBackend(uintptr(0x10000 + i*0x1000000))
	}

	res, err := vmem.ReserveCollective(backends, 32*pageSize, 0)
	if err != nil {
		t.Fatalf("ReserveCollective: %v", err)
	}
	if len(res) != 4 {
		t.Fatalf("got %d reservations, want 4", len(res))
	}
	for i := 1; i < len(res); i++ {
		if res[i].Addr != res[0].Addr || res[i].Size != res[0].Size {
			t.Fatalf("rank %d reservation %+v != rank 0 reservation %+v", i, res[i], res[0])
		}
	}
}

func TestReserveCollectiveWithCollision(t *testing.T) {
	const pageSize = 4096
	backends := make([]vmem.FakeBackend, 4)
	refs := make([]vmem.Backend, 4)
	for i := range backends {
		backends[i] = *vmem.NewFakeBackend(0x20000)
		refs[i] = &backends[i]
	}

	// Rank 2 already has something mapped where rank 0's first
	// broadcast address will land, forcing rank 2 to become leader on
	// the retry (spec.md §8 scenario 3).
	backends[2].Seed(0x20000, 64*pageSize)

	res, err := vmem.ReserveCollective(refs, 32*pageSize, 0)
	if err != nil {
		t.Fatalf("ReserveCollective: %v", err)
	}
	for i := 1; i < len(res); i++ {
		if res[i].Addr != res[0].Addr {
			t.Fatalf("rank %d addr %x != rank 0 addr %x", i, res[i].Addr, res[0].Addr)
		}
	}
	if res[0].Addr == 0x20000 {
		t.Fatalf("expected retry to pick an address past the seeded collision, got %x", res[0].Addr)
	}
}

func TestReserveCollectiveLogsRetries(t *testing.T) {
	const pageSize = 4096
	backends := make([]vmem.FakeBackend, 4)
	refs := make([]vmem.Backend, 4)
	for i := range backends {
		backends[i] = *vmem.NewFakeBackend(0x20000)
		refs[i] = &backends[i]
	}
	backends[2].Seed(0x20000, 64*pageSize)

	spy := &retrySpy{}
	if _, err := vmem.ReserveCollective(refs, 32*pageSize, 0, spy); err != nil {
		t.Fatalf("ReserveCollective: %v", err)
	}
	if len(spy.lines) == 0 {
		t.Fatal("expected at least one retry line to be logged after the seeded collision")
	}
}
