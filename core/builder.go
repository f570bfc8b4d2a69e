package core

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tensorbench/accel"
)

// Builder can create new units.
type Builder struct {
	engine  sim.Engine
	freq    sim.Freq
	desc    *accel.Descriptor
	latency int
	faults  Faults
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the unit.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithDescriptor sets the variant the unit models.
func (b Builder) WithDescriptor(desc accel.Descriptor) Builder {
	b.desc = &desc
	return b
}

// WithLatency sets how many cycles a command keeps the unit busy before the
// datapath writes its result.
func (b Builder) WithLatency(cycles int) Builder {
	if cycles < 0 {
		panic("latency cannot be negative")
	}

	b.latency = cycles
	return b
}

// WithFaults sets the injected faults.
func (b Builder) WithFaults(faults Faults) Builder {
	b.faults = faults
	return b
}

// Build creates a unit.
func (b Builder) Build(name string) *Unit {
	u := &Unit{
		latency: b.latency,
		faults:  b.faults,
	}

	if b.desc != nil {
		u.desc = *b.desc
	} else {
		u.desc = accel.UnifiedUnit()
	}

	u.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, u)
	u.Reset()

	u.emu = instEmulator{
		desc:     &u.desc,
		rounding: b.faults.Rounding,
		corrupt:  make(map[int]bool),
	}
	for _, idx := range b.faults.CorruptOutput {
		u.emu.corrupt[idx] = true
	}

	return u
}
