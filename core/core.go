// Package core simulates the tensor peripherals on the akita event engine.
package core

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tensorbench/accel"
)

// HookPosCommandStart marks when a start strobe latches a command.
var HookPosCommandStart = &sim.HookPos{Name: "Command Start"}

// HookPosCommandDone marks when the datapath has written the result of a
// command and busy has cleared.
var HookPosCommandDone = &sim.HookPos{Name: "Command Done"}

// Faults injects misbehavior into a simulated unit.
type Faults struct {
	// StuckOn lists opcodes that raise busy and never complete.
	StuckOn []accel.Opcode

	// CorruptOutput lists output element indices whose bit 0 is flipped
	// whenever the datapath stores them.
	CorruptOutput []int

	// Rounding selects the average pooling division.
	Rounding accel.Rounding
}

func (f Faults) stuck(op accel.Opcode) bool {
	for _, s := range f.StuckOn {
		if s == op {
			return true
		}
	}

	return false
}

// Unit is one simulated tensor peripheral. The host reaches it through a
// Bus; the datapath runs on engine ticks.
type Unit struct {
	*sim.TickingComponent

	desc    accel.Descriptor
	latency int
	faults  Faults

	state unitState
	emu   instEmulator
}

// Descriptor returns the variant the unit models.
func (u *Unit) Descriptor() *accel.Descriptor {
	return &u.desc
}

// Status returns the STATUS register.
func (u *Unit) Status() accel.Status {
	return accel.Status(u.state.Status)
}

// Completed returns how many commands the datapath has finished.
func (u *Unit) Completed() int {
	return u.state.Completed
}

// Reset clears the register file and every tensor window.
func (u *Unit) Reset() {
	u.state = newUnitState(u.desc.Layout.WindowWords())
}

// ReadRegister returns the register or window word at offset. Unmapped
// offsets read as zero.
func (u *Unit) ReadRegister(offset uint32) uint32 {
	l := u.desc.Layout

	switch offset {
	case l.Ctrl:
		return u.state.Ctrl
	case l.Status:
		return u.state.Status
	case l.Dim:
		return u.state.Dim
	case l.BaseIndex:
		return u.state.BaseIndex
	case l.OutIndex:
		return u.state.OutIndex
	case l.WordIndex:
		return u.state.WordIndex
	}

	if w, i, ok := u.windowWord(offset); ok {
		return u.state.Windows[w][i]
	}

	return 0
}

// WriteRegister stores value at offset. A CTRL write with the start bit set
// latches a command from the index registers.
func (u *Unit) WriteRegister(offset, value uint32) {
	l := u.desc.Layout

	switch offset {
	case l.Ctrl:
		u.state.Ctrl = value
		if _, start := accel.DecodeCtrl(value); start {
			u.start(value)
		}
	case l.Status:
		// read only
	case l.Dim:
		u.state.Dim = value & accel.DimMask
	case l.BaseIndex:
		u.state.BaseIndex = value
	case l.OutIndex:
		u.state.OutIndex = value
	case l.WordIndex:
		u.state.WordIndex = value
	default:
		if w, i, ok := u.windowWord(offset); ok {
			u.state.Windows[w][i] = value
		}
	}
}

func (u *Unit) windowWord(offset uint32) (accel.Window, int, bool) {
	l := u.desc.Layout
	for w, base := range l.Windows {
		if offset >= base && offset < base+l.WindowBytes {
			return accel.Window(w), int((offset - base) / 4), true
		}
	}

	return 0, 0, false
}

func (u *Unit) start(ctrl uint32) {
	if u.Status().Busy() {
		accel.Trace("Command",
			"Behavior", "IgnoredStart",
			"Device", u.Name(),
			"Ctrl", ctrl,
		)
		return
	}

	code, _ := accel.DecodeCtrl(ctrl)
	op, ok := u.desc.Decode(code)
	if !ok {
		accel.Trace("Command",
			"Behavior", "IllegalOpcode",
			"Device", u.Name(),
			"Code", code,
		)
		return
	}

	cmd := u.latch(op, code)
	u.state.Status = uint32(accel.StatusBusy)

	u.InvokeHook(sim.HookCtx{
		Domain: u,
		Pos:    HookPosCommandStart,
		Item:   cmd,
	})

	if u.faults.stuck(op) {
		return
	}

	u.state.Pending = &cmd
	u.state.Countdown = u.latency

	// The tick that finished the previous command has already rescheduled
	// at the current time, so TickNow would be dropped here.
	u.TickLater()
}

func (u *Unit) latch(op accel.Opcode, code uint8) accel.Command {
	switch {
	case u.desc.Dispatch == accel.DispatchWholeTensor:
		return accel.TensorCommand(op, code)
	case op.Class() == accel.ClassElementwise:
		return accel.WordCommand(op, code, u.state.WordIndex)
	default:
		return accel.WindowCommand(op, code, u.state.BaseIndex, u.state.OutIndex)
	}
}

// Tick counts down the latency of the pending command and then runs it
// through the datapath.
func (u *Unit) Tick() (madeProgress bool) {
	if u.state.Pending == nil {
		return false
	}

	if u.state.Countdown > 0 {
		u.state.Countdown--
		return true
	}

	cmd := *u.state.Pending
	u.emu.RunInst(cmd, &u.state)
	u.state.Pending = nil
	u.state.Status = uint32(accel.StatusDone)
	u.state.Completed++

	accel.Trace("Command",
		"Behavior", "Execute",
		"Time", float64(u.Engine.CurrentTime()*1e9),
		"Device", u.Name(),
		"Command", cmd.String(),
	)

	u.InvokeHook(sim.HookCtx{
		Domain: u,
		Pos:    HookPosCommandDone,
		Item:   cmd,
	})

	return true
}
