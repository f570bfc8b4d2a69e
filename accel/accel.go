// Package accel defines the vocabulary shared by the tensor accelerator
// drivers, the simulated peripherals and the verification tools.
//
// Every accelerator variant exposes the same register window: a control and
// status pair, a dimension register, index registers, and four tensor windows
// holding packed int8 words. A Descriptor captures the differences between
// variants (base address, opcode table, operand windows, dispatch style).
//
// # Register Map
//
//	0x08    CTRL        bit0 start, bits[5:1] opcode
//	0x0C    STATUS      bit0 busy, bit1 done
//	0x10    DIM         low 8 bits tensor side N
//	0x14    BASE_INDEX  top-left element of a pooling/arithmetic window
//	0x18    OUT_INDEX   output element index
//	0x1C    WORD_INDEX  packed word index for elementwise ops
//	0x1000  TENSOR_A
//	0x2000  TENSOR_B
//	0x3000  TENSOR_C
//	0x4000  TENSOR_R    output
package accel

// RegisterPort is the bus access capability of one peripheral. Offsets are
// relative to the peripheral base. Every call is a distinct bus transaction,
// performed in program order and never cached.
type RegisterPort interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// Waiter is called between two busy polls. attempt counts the STATUS reads
// already made for the current command.
type Waiter interface {
	Wait(attempt int)
}

// Spin is the default Waiter. It returns immediately, so polling is a tight
// loop.
type Spin struct{}

// Wait does nothing.
func (Spin) Wait(int) {}

// WaiterFunc adapts a function to the Waiter interface.
type WaiterFunc func(attempt int)

// Wait calls f(attempt).
func (f WaiterFunc) Wait(attempt int) {
	f(attempt)
}

// Status is the raw content of the STATUS register.
type Status uint32

const (
	// StatusBusy is set while a command is in flight.
	StatusBusy Status = 1 << 0
	// StatusDone is set once the last command has completed.
	StatusDone Status = 1 << 1
)

// Busy reports whether the busy bit is set.
func (s Status) Busy() bool {
	return s&StatusBusy != 0
}

// Done reports whether the done bit is set.
func (s Status) Done() bool {
	return s&StatusDone != 0
}

// State is the accelerator state as seen by the host.
type State int

const (
	Idle State = iota
	Busy
	Done
)

// State derives the host view from the status bits. Busy wins over done.
func (s Status) State() State {
	switch {
	case s.Busy():
		return Busy
	case s.Done():
		return Done
	default:
		return Idle
	}
}

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Busy:
		return "Busy"
	case Done:
		return "Done"
	default:
		return "Unknown"
	}
}

// Control register fields.
const (
	CtrlStart      uint32 = 1 << 0
	CtrlOpcodeMask uint32 = 0x1F
	CtrlOpcodeLSB         = 1
	DimMask        uint32 = 0xFF
)

// Window identifies one of the tensor windows.
type Window int

const (
	WindowA Window = iota
	WindowB
	WindowC
	WindowR
)

// InputWindows lists the operand windows in the order operands are loaded.
var InputWindows = []Window{WindowA, WindowB, WindowC}

// Name returns the name of the window.
func (w Window) Name() string {
	switch w {
	case WindowA:
		return "TENSOR_A"
	case WindowB:
		return "TENSOR_B"
	case WindowC:
		return "TENSOR_C"
	case WindowR:
		return "TENSOR_R"
	default:
		panic("invalid window")
	}
}
