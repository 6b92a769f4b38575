//go:build windows
// +build windows

package pool

import (
	"errors"
	"syscall"
	"unsafe"
)

const (
	memCommit     = 0x00001000
	memReserve    = 0x00002000
	pageReadWrite = 0x04
)

// windowsNUMAAllocator binds a home region segment's backing buffer to
// its assigned NUMA node via VirtualAllocExNuma.
type windowsNUMAAllocator struct{}

func newWindowsNUMAAllocator() NUMAAllocator {
	return &windowsNUMAAllocator{}
}

func (w *windowsNUMAAllocator) Alloc(size int, node int) ([]byte, error) {
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	procVirtualAllocExNuma := kernel32.NewProc("VirtualAllocExNuma")
	procGetCurrentProcess := kernel32.NewProc("GetCurrentProcess")
	hProc, _, _ := procGetCurrentProcess.Call()
	ptr, _, err := procVirtualAllocExNuma.Call(
		hProc,
		0,
		uintptr(size),
		uintptr(memReserve|memCommit),
		uintptr(pageReadWrite),
		uintptr(node),
	)
	if ptr == 0 {
		return nil, errors.New("pool: VirtualAllocExNuma failed: " + err.Error())
	}
	bs := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), size)
	return bs, nil
}

func (w *windowsNUMAAllocator) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	kernel32 := syscall.NewLazyDLL("kernel32.dll")
	procVirtualFree := kernel32.NewProc("VirtualFree")
	addr := uintptr(unsafe.Pointer(&buf[0]))
	const memRelease = 0x8000
	procVirtualFree.Call(addr, 0, uintptr(memRelease))
}

func (w *windowsNUMAAllocator) Nodes() (int, error) {
	return 1, nil
}
