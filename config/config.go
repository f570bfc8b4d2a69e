// Package config builds simulated tensor accelerators and reads run files.
package config

import (
	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/core"
)

// Device is a simulated accelerator together with the bus a driver talks
// through.
type Device struct {
	Name string
	Unit *core.Unit
	Bus  *core.Bus
}

// Descriptor returns the variant the device models.
func (d *Device) Descriptor() *accel.Descriptor {
	return d.Unit.Descriptor()
}

// DeviceBuilder can build simulated accelerators.
type DeviceBuilder struct {
	engine  sim.Engine
	freq    sim.Freq
	desc    *accel.Descriptor
	latency int
	faults  core.Faults
	monitor *monitoring.Monitor
}

// WithEngine sets the engine that drives the device simulation.
func (d DeviceBuilder) WithEngine(engine sim.Engine) DeviceBuilder {
	d.engine = engine
	return d
}

// WithFreq sets the frequency of the device.
func (d DeviceBuilder) WithFreq(freq sim.Freq) DeviceBuilder {
	d.freq = freq
	return d
}

// WithDescriptor sets the accelerator variant.
func (d DeviceBuilder) WithDescriptor(desc accel.Descriptor) DeviceBuilder {
	d.desc = &desc
	return d
}

// WithLatency sets the busy time of every command in cycles.
func (d DeviceBuilder) WithLatency(cycles int) DeviceBuilder {
	d.latency = cycles
	return d
}

// WithFaults sets the injected faults.
func (d DeviceBuilder) WithFaults(faults core.Faults) DeviceBuilder {
	d.faults = faults
	return d
}

// WithMonitor registers the device with a monitor when it is built.
func (d DeviceBuilder) WithMonitor(monitor *monitoring.Monitor) DeviceBuilder {
	d.monitor = monitor
	return d
}

// Build creates a device.
func (d DeviceBuilder) Build(name string) *Device {
	if d.engine == nil {
		panic("device needs an engine")
	}

	freq := d.freq
	if freq == 0 {
		freq = 1 * sim.GHz
	}

	b := core.Builder{}.
		WithEngine(d.engine).
		WithFreq(freq).
		WithLatency(d.latency).
		WithFaults(d.faults)
	if d.desc != nil {
		b = b.WithDescriptor(*d.desc)
	}

	unit := b.Build(name + ".Unit")
	if d.monitor != nil {
		d.monitor.RegisterComponent(unit)
	}

	return &Device{
		Name: name,
		Unit: unit,
		Bus:  core.NewBus(unit),
	}
}
