package core

import (
	"github.com/sarchlab/tensorbench/accel"
)

// Bus is the register port of a simulated unit. Every access is forwarded to
// the unit in program order. Reading STATUS while the unit is busy lets the
// engine run, so each poll observes the effect of simulated time passing.
type Bus struct {
	unit *Unit

	Reads  int
	Writes int
}

// NewBus creates a bus in front of a unit.
func NewBus(unit *Unit) *Bus {
	return &Bus{unit: unit}
}

// Unit returns the unit behind the bus.
func (b *Bus) Unit() *Unit {
	return b.unit
}

// Read32 reads one register or window word.
func (b *Bus) Read32(offset uint32) uint32 {
	b.Reads++
	v := b.unit.ReadRegister(offset)

	if offset == b.unit.desc.Layout.Status && accel.Status(v).Busy() {
		b.unit.Engine.Run()
	}

	return v
}

// Write32 writes one register or window word.
func (b *Bus) Write32(offset, value uint32) {
	b.Writes++
	b.unit.WriteRegister(offset, value)
}
