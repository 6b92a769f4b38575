// Package pool provides the NUMA-aware allocator the home mapper uses
// for a rank's own local share (homemap.Registry.export) and, on
// Linux, the libnuma-backed implementation behind it.
package pool
