// Package api defines the host-side driver of the tensor accelerators.
package api

import (
	"fmt"

	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/tensor"
)

// DefaultPollBudget is the number of STATUS reads made before a command is
// declared timed out.
const DefaultPollBudget = 1000000

// Driver controls one accelerator instance through its register window.
//
// A driver is not safe for concurrent use. Commands are issued one at a time
// and each one is driven to completion or timeout before the next.
type Driver interface {
	// Name returns the name given at build time.
	Name() string

	// Descriptor returns the accelerator variant the driver talks to.
	Descriptor() *accel.Descriptor

	// Probe reads the status register once.
	Probe() accel.Status

	// SetDimension programs the DIM register. The side is checked against
	// the descriptor before the write.
	SetDimension(n int) error

	// LoadTensor packs a tensor into the given window.
	LoadTensor(w accel.Window, t *tensor.Tensor) error

	// ClearOutput zeroes the words of the output window that hold count
	// elements.
	ClearOutput(count int)

	// ReadOutput reads and unpacks count elements of the output window.
	ReadOutput(count int) []int8

	// Issue runs one command through the start/busy handshake.
	Issue(cmd accel.Command) error

	// Run executes a whole operation: program the dimension, load the
	// operands, issue every command and read back the result.
	Run(op accel.Opcode, inputs ...*tensor.Tensor) (*tensor.Tensor, error)

	// Faulted reports whether a command has timed out. A faulted driver
	// refuses further commands.
	Faulted() bool

	// Stats returns the counters accumulated so far.
	Stats() Stats
}

// Stats counts the bus traffic of a driver.
type Stats struct {
	Commands int
	Polls    int
	Timeouts int
	Writes   int
	Reads    int
}

type driverImpl struct {
	name   string
	port   accel.RegisterPort
	desc   accel.Descriptor
	budget int
	waiter accel.Waiter

	// words is the transfer buffer shared by every window access.
	words []uint32

	dim     int
	faulted bool
	stats   Stats
}

func (d *driverImpl) Name() string {
	return d.name
}

func (d *driverImpl) Descriptor() *accel.Descriptor {
	return &d.desc
}

func (d *driverImpl) Faulted() bool {
	return d.faulted
}

func (d *driverImpl) Stats() Stats {
	return d.stats
}

func (d *driverImpl) read(offset uint32) uint32 {
	d.stats.Reads++
	return d.port.Read32(offset)
}

func (d *driverImpl) write(offset, value uint32) {
	d.stats.Writes++
	d.port.Write32(offset, value)
}

func (d *driverImpl) Probe() accel.Status {
	s := accel.Status(d.read(d.desc.Layout.Status))

	accel.Trace("Status",
		"Behavior", "Probe",
		"Device", d.name,
		"Status", uint32(s),
		"State", s.State().String(),
	)

	return s
}

func (d *driverImpl) SetDimension(n int) error {
	if err := d.desc.CheckDim(n); err != nil {
		return err
	}

	d.write(d.desc.Layout.Dim, uint32(n)&accel.DimMask)
	d.dim = n

	return nil
}

func (d *driverImpl) LoadTensor(w accel.Window, t *tensor.Tensor) error {
	if err := d.desc.CheckDim(t.N); err != nil {
		return err
	}

	n := tensor.PackInto(d.words, t.Data, t.Len())
	base := d.desc.Layout.WindowOffset(w)
	for i := 0; i < n; i++ {
		d.write(base+uint32(4*i), d.words[i])
	}

	accel.Trace("Window",
		"Behavior", "Load",
		"Device", d.name,
		"Window", w.Name(),
		"N", t.N,
		"Words", n,
	)

	return nil
}

func (d *driverImpl) ClearOutput(count int) {
	base := d.desc.Layout.WindowOffset(accel.WindowR)
	for i := 0; i < tensor.WordCount(count); i++ {
		d.write(base+uint32(4*i), 0)
	}
}

func (d *driverImpl) ReadOutput(count int) []int8 {
	n := tensor.WordCount(count)
	base := d.desc.Layout.WindowOffset(accel.WindowR)
	for i := 0; i < n; i++ {
		d.words[i] = d.read(base + uint32(4*i))
	}

	return tensor.Unpack(d.words[:n], count)
}

// Issue performs the command handshake:
//
//  1. clear CTRL so no stale start bit or opcode survives,
//  2. write the index registers of the command,
//  3. write the opcode with the start bit,
//  4. poll STATUS until busy clears or the budget is spent.
func (d *driverImpl) Issue(cmd accel.Command) error {
	if d.faulted {
		return fmt.Errorf("%s: %w", d.name, accel.ErrDeviceFaulted)
	}

	l := d.desc.Layout
	d.write(l.Ctrl, 0)
	d.writeIndices(cmd)
	d.write(l.Ctrl, cmd.CtrlWord())
	d.stats.Commands++

	accel.Trace("Command",
		"Behavior", "Issue",
		"Device", d.name,
		"Command", cmd.String(),
		"Ctrl", cmd.CtrlWord(),
	)

	polls, ok := d.waitIdle()
	d.stats.Polls += polls
	if !ok {
		d.faulted = true
		d.stats.Timeouts++

		accel.Trace("Command",
			"Behavior", "Timeout",
			"Device", d.name,
			"Command", cmd.String(),
			"Polls", polls,
		)

		return &accel.TimeoutError{Command: cmd, Polls: polls}
	}

	accel.Trace("Command",
		"Behavior", "Done",
		"Device", d.name,
		"Command", cmd.String(),
		"Polls", polls,
	)

	return nil
}

func (d *driverImpl) writeIndices(cmd accel.Command) {
	if cmd.Whole {
		return
	}

	l := d.desc.Layout
	if cmd.Opcode.Class() == accel.ClassElementwise {
		d.write(l.WordIndex, cmd.Primary)
		return
	}

	d.write(l.BaseIndex, cmd.Primary)
	d.write(l.OutIndex, cmd.Secondary)
}

// waitIdle reads STATUS at most budget times. It returns the number of reads
// made and whether busy cleared.
func (d *driverImpl) waitIdle() (int, bool) {
	status := d.desc.Layout.Status
	for attempt := 1; attempt <= d.budget; attempt++ {
		s := accel.Status(d.read(status))
		if !s.Busy() {
			return attempt, true
		}

		if attempt < d.budget {
			d.waiter.Wait(attempt)
		}
	}

	return d.budget, false
}
