//go:build !linux

package mmio

import (
	"errors"
	"runtime"
)

// Window is unavailable on this platform.
type Window struct{}

// Open always fails outside Linux.
func Open(path string, base uint64, size uint32) (*Window, error) {
	return nil, errors.New("mmio: register windows are not supported on " + runtime.GOOS)
}

// Read32 panics; a Window cannot be opened on this platform.
func (w *Window) Read32(offset uint32) uint32 {
	panic("mmio: not supported")
}

// Write32 panics; a Window cannot be opened on this platform.
func (w *Window) Write32(offset, value uint32) {
	panic("mmio: not supported")
}

// Size returns zero.
func (w *Window) Size() int {
	return 0
}

// Close does nothing.
func (w *Window) Close() error {
	return nil
}
