// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the one-sided RMA transport contract DSM consumes from the
// network layer (spec §6, "Transport contract"). A Window is created
// collectively across all ranks before any Put/Get/atomic may target
// it; all remote operations are assumed to run under a persistent
// shared lock held by the transport, not by the caller.

package api

// Window is a collectively-created remote-memory window. Every rank
// exposes one local backing buffer through it; puts/gets address a
// remote rank's window by byte offset into that buffer.
type Window interface {
	// Put writes buf into the remote rank's window at offset.
	Put(remote int, offset int64, buf []byte) error

	// Get reads len(buf) bytes from the remote rank's window at offset into buf.
	Get(remote int, offset int64, buf []byte) error

	// Flush blocks until all outstanding operations to remote have completed.
	Flush(remote int) error

	// FlushAll blocks until all outstanding operations to every rank have completed.
	FlushAll() error

	// FetchAndOp atomically adds delta to the int64 at offset in the
	// remote rank's window and returns the pre-update value.
	FetchAndOp(remote int, offset int64, delta int64) (int64, error)

	// CompareAndSwap atomically swaps the int64 at offset in the remote
	// rank's window from old to new, returning the value observed.
	CompareAndSwap(remote int, offset int64, old, new int64) (int64, error)

	// Rank returns the local rank id this window was created for.
	Rank() int

	// NRanks returns the number of ranks participating in this window.
	NRanks() int

	// Close tears down the window. Collective.
	Close() error
}

// WindowFactory creates a Window collectively over size bytes of local
// backing storage per rank.
type WindowFactory interface {
	CreateWindow(localSize int) (Window, error)
}
