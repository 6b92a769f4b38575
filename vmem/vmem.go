// Package vmem implements the collective virtual-memory reservation
// protocol from spec.md §4.7: every rank must end up with an
// identical, physically-unbacked virtual address range, so a global
// pointer is a raw address usable identically on any rank. Grounded on
// ityr::common::virtual_mem::reserve_same_vm_coll.
package vmem

import (
	"github.com/itoyori/ityr-go/api"
)

// DefaultMaxRetries is the minimum bounded retry count spec.md §4.7
// requires ("a bounded retry count (≥ 100) must be supported").
const DefaultMaxRetries = 100

// maxAllocSize caps the exponential size doubling used to escape
// dense address-space regions.
const maxAllocSize uint64 = 1 << 40

const pageSize uint64 = 4096

// ErrCollision is returned by Backend.MmapAnon when a fixed-address
// request collided with an existing mapping (the MAP_FIXED_NOREPLACE
// failure mode).
var ErrCollision = api.NewError(api.ErrCodeInternal, "vmem: fixed mapping collided with an existing mapping")

// Backend abstracts the OS (or simulated) primitive one simulated
// rank uses to reserve address space without committing physical
// memory. addr == 0 with fixed == false means "choose any address";
// fixed == true means the caller requires exactly addr and the
// backend must fail with ErrCollision rather than silently relocating.
type Backend interface {
	MmapAnon(addr uintptr, size uint64, fixed bool) (uintptr, error)
	Munmap(addr uintptr, size uint64) error
}

// Reservation names the virtual range one rank won.
type Reservation struct {
	Addr uintptr
	Size uint64
}

func roundUpPow2(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}

func overlaps(aAddr uintptr, aSize uint64, bAddr uintptr, bSize uint64) bool {
	aEnd := uint64(aAddr) + aSize
	bEnd := uint64(bAddr) + bSize
	return uint64(aAddr) < bEnd && uint64(bAddr) < aEnd
}

// retryLogger is satisfied by *control.Logger; kept narrow here for
// the same reason cache.stallLogger is — vmem has no other reason to
// import control.
type retryLogger interface {
	Printf(format string, args ...any)
}

// ReserveCollective runs the leader-broadcast-then-followers-mmap
// retry protocol over backends (one per simulated rank) until every
// rank holds an identical [addr, addr+size) range, or maxRetries is
// exceeded (maxRetries <= 0 selects DefaultMaxRetries).
//
// Each round: rank 0 (initially) mmaps allocSize bytes anonymously
// and "broadcasts" the chosen address (trivial here since all ranks
// share this call's stack); every other rank attempts a fixed mapping
// at that address. Ranks whose fixed mapping collides become
// candidates for the next leader — the highest-numbered failed rank
// is chosen, matching the MPI_MAX-reduction in the original. Ranks
// that succeeded this round defer freeing their reservation (instead
// of freeing immediately) so the next round's probe does not land on
// the same address. allocSize doubles every round, capped at 2^40, to
// escape densely mapped regions.
//
// log, if non-nil (the zero value of the variadic is nil), receives
// one line per retry round naming the next leader, and one on final
// exhaustion — the "VM reservation retries" diagnostic.
func ReserveCollective(backends []Backend, size uint64, maxRetries int, log ...retryLogger) ([]Reservation, error) {
	var logger retryLogger
	if len(log) > 0 {
		logger = log[0]
	}
	nranks := len(backends)
	if nranks == 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "vmem: no backends given")
	}
	if size == 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "vmem: zero-size reservation")
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	allocSize := roundUpPow2(size, pageSize)
	allocSizeMax := allocSize
	if maxAllocSize > allocSizeMax {
		allocSizeMax = maxAllocSize
	}

	leader := 0
	prevByRank := make([][]Reservation, nranks)

	for trial := 0; trial <= maxRetries; trial++ {
		addr, err := backends[leader].MmapAnon(0, allocSize, false)
		if err != nil {
			return nil, api.NewError(api.ErrCodeInternal, "vmem: leader mmap failed").
				WithContext("leader", leader).WithContext("cause", err.Error())
		}

		roundRes := make([]Reservation, nranks)
		roundRes[leader] = Reservation{addr, allocSize}
		failedRanks := map[int]bool{}

		for r := 0; r < nranks; r++ {
			if r == leader {
				continue
			}

			kept := prevByRank[r][:0]
			for _, pv := range prevByRank[r] {
				if overlaps(pv.Addr, pv.Size, addr, allocSize) {
					_ = backends[r].Munmap(pv.Addr, pv.Size)
				} else {
					kept = append(kept, pv)
				}
			}
			prevByRank[r] = kept

			a, err := backends[r].MmapAnon(addr, allocSize, true)
			if err == ErrCollision {
				failedRanks[r] = true
				continue
			}
			if err != nil {
				return nil, api.NewError(api.ErrCodeInternal, "vmem: follower mmap failed").
					WithContext("rank", r).WithContext("cause", err.Error())
			}
			roundRes[r] = Reservation{a, allocSize}
		}

		if len(failedRanks) == 0 {
			final := make([]Reservation, nranks)
			for r := range roundRes {
				res := roundRes[r]
				if res.Size > size {
					tail := res.Size - size
					_ = backends[r].Munmap(res.Addr+uintptr(size), tail)
					res.Size = size
				}
				final[r] = res
			}
			return final, nil
		}

		maxFailed := -1
		for r := range failedRanks {
			if r > maxFailed {
				maxFailed = r
			}
		}
		for r := 0; r < nranks; r++ {
			if !failedRanks[r] {
				prevByRank[r] = append(prevByRank[r], roundRes[r])
			}
		}
		leader = maxFailed
		allocSize *= 2
		if allocSize > allocSizeMax {
			allocSize = allocSizeMax
		}
		if logger != nil {
			logger.Printf("vmem: reservation collided on trial %d, retrying with leader=rank%d allocSize=%d", trial, leader, allocSize)
		}
	}

	if logger != nil {
		logger.Printf("vmem: reservation exhausted after %d trials (size=%d)", maxRetries, size)
	}
	return nil, api.NewError(api.ErrCodeResourceExhausted,
		"vmem: reservation of virtual memory address failed").
		WithContext("size", size).WithContext("max_trial", maxRetries)
}
