//go:build !linux

// File: vmem/backend_stub.go
// Author: momentics <momentics@gmail.com>
//
// Non-Linux platforms lack MAP_FIXED_NOREPLACE, so this Backend cannot
// detect a real collision; it is provided so the module builds
// everywhere, not for production DSM deployments off Linux.

package vmem

import "github.com/itoyori/ityr-go/api"

// UnixBackend is unavailable outside Linux.
type UnixBackend struct{}

// NewUnixBackend returns an unusable Backend on unsupported platforms.
func NewUnixBackend() *UnixBackend { return &UnixBackend{} }

func (*UnixBackend) MmapAnon(addr uintptr, size uint64, fixed bool) (uintptr, error) {
	return 0, api.ErrNotSupported
}

func (*UnixBackend) Munmap(addr uintptr, size uint64) error {
	return api.ErrNotSupported
}
