package config

import (
	"fmt"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
)

// A Platform is a set of simulated accelerators driven by one engine.
// Devices keep the order of the run file.
type Platform struct {
	Engine  sim.Engine
	Devices []*Device
}

// Device returns the device with the given name, or nil.
func (p *Platform) Device(name string) *Device {
	for _, d := range p.Devices {
		if d.Name == name {
			return d
		}
	}

	return nil
}

// BuildPlatform creates one simulated device per accelerator of the run
// file. The monitor may be nil.
func BuildPlatform(
	f *File,
	engine sim.Engine,
	monitor *monitoring.Monitor,
) (*Platform, error) {
	p := &Platform{Engine: engine}

	freq := sim.Freq(f.Sim.FreqMHz) * sim.MHz

	for _, a := range f.Accelerators {
		desc, err := a.ToDescriptor()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}

		faults, err := a.Faults.ToFaults()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name, err)
		}

		dev := DeviceBuilder{}.
			WithEngine(engine).
			WithFreq(freq).
			WithDescriptor(desc).
			WithLatency(f.Sim.Latency).
			WithFaults(faults).
			WithMonitor(monitor).
			Build(a.Name)

		p.Devices = append(p.Devices, dev)
	}

	return p, nil
}
