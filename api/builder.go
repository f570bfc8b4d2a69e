package api

import (
	"github.com/sarchlab/tensorbench/accel"
)

// DriverBuilder creates a new instance of Driver.
type DriverBuilder struct {
	port   accel.RegisterPort
	desc   *accel.Descriptor
	budget int
	waiter accel.Waiter
	words  []uint32
}

// WithPort sets the register window the driver talks through.
func (b DriverBuilder) WithPort(port accel.RegisterPort) DriverBuilder {
	b.port = port
	return b
}

// WithDescriptor sets the accelerator variant.
func (b DriverBuilder) WithDescriptor(desc accel.Descriptor) DriverBuilder {
	b.desc = &desc
	return b
}

// WithPollBudget sets how many STATUS reads a command may take.
func (b DriverBuilder) WithPollBudget(budget int) DriverBuilder {
	if budget < 1 {
		panic("poll budget must be at least 1")
	}

	b.budget = budget
	return b
}

// WithWaiter sets what happens between two STATUS reads.
func (b DriverBuilder) WithWaiter(waiter accel.Waiter) DriverBuilder {
	b.waiter = waiter
	return b
}

// WithWordBuffer hands a transfer buffer to the driver. The driver owns the
// buffer afterwards. It must hold a full window.
func (b DriverBuilder) WithWordBuffer(words []uint32) DriverBuilder {
	b.words = words
	return b
}

// Build creates a driver.
func (b DriverBuilder) Build(name string) Driver {
	if b.port == nil {
		panic("driver needs a register port")
	}

	d := &driverImpl{
		name:   name,
		port:   b.port,
		budget: b.budget,
		waiter: b.waiter,
		words:  b.words,
	}

	if b.desc != nil {
		d.desc = *b.desc
	} else {
		d.desc = accel.UnifiedUnit()
	}

	if d.budget == 0 {
		d.budget = DefaultPollBudget
	}

	if d.waiter == nil {
		d.waiter = accel.Spin{}
	}

	need := d.desc.Layout.WindowWords()
	if len(d.words) < need {
		d.words = make([]uint32, need)
	}

	return d
}
