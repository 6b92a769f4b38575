// File: internal/concurrency/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NUMA-aware worker pool backing package sched: CPU/NUMA thread
// pinning and a fixed-size goroutine pool over a lock-free task queue.
//
// Pinning is cross-platform (Linux/Windows); the pure-Go and cgo
// variants are selected by build tag.
package concurrency
