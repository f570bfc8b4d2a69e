//go:build linux

package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Window is a mapped register window. Accesses are single 32-bit loads and
// stores, issued in program order.
type Window struct {
	file *os.File
	mem  []byte

	// regs is the part of mem starting at the requested base.
	regs []byte
}

// Open maps size bytes of path starting at the physical address base. The
// mapping is page aligned internally; offsets passed to Read32 and Write32
// stay relative to base.
func Open(path string, base uint64, size uint32) (*Window, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	page := uint64(unix.Getpagesize())
	aligned := base &^ (page - 1)
	delta := base - aligned
	length := (delta + uint64(size) + page - 1) &^ (page - 1)

	mem, err := unix.Mmap(int(f.Fd()), int64(aligned), int(length),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("map 0x%X+0x%X of %s: %w", base, size, path, err)
	}

	return &Window{
		file: f,
		mem:  mem,
		regs: mem[delta : delta+uint64(size)],
	}, nil
}

func (w *Window) word(offset uint32) *uint32 {
	if offset%4 != 0 || uint64(offset)+4 > uint64(len(w.regs)) {
		panic(fmt.Sprintf("register offset 0x%X outside window of 0x%X bytes",
			offset, len(w.regs)))
	}

	return (*uint32)(unsafe.Pointer(&w.regs[offset]))
}

// Read32 loads one register.
func (w *Window) Read32(offset uint32) uint32 {
	return atomic.LoadUint32(w.word(offset))
}

// Write32 stores one register.
func (w *Window) Write32(offset, value uint32) {
	atomic.StoreUint32(w.word(offset), value)
}

// Size returns the number of bytes reachable through the window.
func (w *Window) Size() int {
	return len(w.regs)
}

// Close unmaps the window.
func (w *Window) Close() error {
	if w.mem == nil {
		return nil
	}

	err := unix.Munmap(w.mem)
	w.mem, w.regs = nil, nil

	if cerr := w.file.Close(); err == nil {
		err = cerr
	}

	return err
}
