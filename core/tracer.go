package core

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tensorbench/accel"
)

// CommandTracer counts the commands a unit starts and finishes and traces
// every one of them. Attach it with AcceptHook.
type CommandTracer struct {
	Started  int
	Finished int

	// ByOpcode counts finished commands per opcode.
	ByOpcode map[accel.Opcode]int
}

// NewCommandTracer creates a tracer.
func NewCommandTracer() *CommandTracer {
	return &CommandTracer{ByOpcode: make(map[accel.Opcode]int)}
}

// Func implements sim.Hook.
func (t *CommandTracer) Func(ctx sim.HookCtx) {
	cmd, ok := ctx.Item.(accel.Command)
	if !ok {
		return
	}

	name := ""
	if named, ok := ctx.Domain.(sim.Named); ok {
		name = named.Name()
	}

	switch ctx.Pos {
	case HookPosCommandStart:
		t.Started++
		accel.Trace("Hook",
			"Behavior", "Start",
			"Device", name,
			"Command", cmd.String(),
		)
	case HookPosCommandDone:
		t.Finished++
		t.ByOpcode[cmd.Opcode]++
		accel.Trace("Hook",
			"Behavior", "Done",
			"Device", name,
			"Command", cmd.String(),
		)
	}
}

// Pending returns how many started commands have not finished.
func (t *CommandTracer) Pending() int {
	return t.Started - t.Finished
}
