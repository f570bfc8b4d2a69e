package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/core"
	"gopkg.in/yaml.v3"
)

// DefaultDim is the tensor side the firmware test programs use.
const DefaultDim = 8

// File is a run file. It lists the accelerators to verify and how to run
// them.
type File struct {
	Run          RunSpec           `yaml:"run"`
	Sim          SimSpec           `yaml:"sim"`
	Accelerators []AcceleratorSpec `yaml:"accelerators"`
}

// RunSpec holds the parameters shared by every accelerator.
type RunSpec struct {
	Dim        int      `yaml:"dim"`
	PollBudget int      `yaml:"poll_budget"`
	Ops        []string `yaml:"ops"`
	Pattern    string   `yaml:"pattern"`
}

// SimSpec configures the simulated target.
type SimSpec struct {
	FreqMHz float64 `yaml:"freq_mhz"`
	Latency int     `yaml:"latency"`
}

// AcceleratorSpec describes one accelerator instance. Zero fields keep the
// value of the preset.
type AcceleratorSpec struct {
	Name        string           `yaml:"name"`
	Preset      string           `yaml:"preset"`
	Base        uint64           `yaml:"base"`
	Dispatch    string           `yaml:"dispatch"`
	MaxDim      int              `yaml:"max_dim"`
	Operands    int              `yaml:"operands"`
	Opcodes     map[string]uint8 `yaml:"opcodes"`
	SigmoidGain float64          `yaml:"sigmoid_gain"`
	Dim         int              `yaml:"dim"`
	Ops         []string         `yaml:"ops"`
	Pattern     string           `yaml:"pattern"`
	Faults      FaultSpec        `yaml:"faults"`
}

// FaultSpec lists the faults injected into a simulated accelerator.
type FaultSpec struct {
	StuckOn       []string `yaml:"stuck_on"`
	CorruptOutput []int    `yaml:"corrupt_output"`
	Rounding      string   `yaml:"rounding"`
}

// Default returns the run file used when none is given: the three firmware
// variants at their shared base address, N=8.
func Default() *File {
	f := &File{
		Accelerators: []AcceleratorSpec{
			{Name: "Arithmetic", Preset: "arithmetic"},
			{Name: "Pooling", Preset: "pooling"},
			{Name: "Activation", Preset: "activation"},
		},
	}
	f.applyDefaults()

	return f
}

// Load reads and checks a run file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return f, nil
}

// Parse decodes a run file from YAML, fills in defaults and checks every
// accelerator.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse run file: %w", err)
	}

	f.applyDefaults()

	if err := f.Validate(); err != nil {
		return nil, err
	}

	return f, nil
}

func (f *File) applyDefaults() {
	if f.Run.Dim == 0 {
		f.Run.Dim = DefaultDim
	}

	if f.Sim.FreqMHz == 0 {
		f.Sim.FreqMHz = 1000
	}

	for i := range f.Accelerators {
		a := &f.Accelerators[i]
		if a.Name == "" {
			a.Name = fmt.Sprintf("Accel%d", i)
		}
		if a.Dim == 0 {
			a.Dim = f.Run.Dim
		}
		if len(a.Ops) == 0 {
			a.Ops = f.Run.Ops
		}
		if a.Pattern == "" {
			a.Pattern = f.Run.Pattern
		}
	}
}

// Validate checks that every accelerator resolves to a valid descriptor,
// names are unique and every requested opcode parses.
func (f *File) Validate() error {
	var errs []error

	if len(f.Accelerators) == 0 {
		errs = append(errs, errors.New("no accelerators"))
	}

	if f.Run.PollBudget < 0 {
		errs = append(errs, fmt.Errorf("negative poll budget %d", f.Run.PollBudget))
	}

	if f.Sim.Latency < 0 {
		errs = append(errs, fmt.Errorf("negative latency %d", f.Sim.Latency))
	}

	names := make(map[string]bool)
	for _, a := range f.Accelerators {
		if names[a.Name] {
			errs = append(errs, fmt.Errorf("duplicate accelerator %q", a.Name))
		}
		names[a.Name] = true

		if err := checkName(a.Name); err != nil {
			errs = append(errs, err)
		}

		if _, err := a.ToDescriptor(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
		}
		if _, err := ParseOps(a.Ops); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
		}
		if _, err := a.Faults.ToFaults(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", a.Name, err))
		}
	}

	return errors.Join(errs...)
}

// checkName accepts the names the simulator accepts for a component: dot
// separated elements, each a capital letter followed by letters or digits,
// optionally indexed like Tile[3].
func checkName(name string) error {
	for _, elem := range strings.Split(name, ".") {
		if !validElement(elem) {
			return fmt.Errorf("accelerator name %q: every dot separated element "+
				"must start with a capital letter and hold only letters and digits", name)
		}
	}

	return nil
}

func validElement(elem string) bool {
	base, index, indexed := strings.Cut(elem, "[")
	if base == "" || !isUpper(base[0]) {
		return false
	}

	for i := 0; i < len(base); i++ {
		if !isUpper(base[i]) && !isLower(base[i]) && !isDigit(base[i]) {
			return false
		}
	}

	if !indexed {
		return true
	}

	digits, rest, closed := strings.Cut(index, "]")
	if !closed || rest != "" || digits == "" {
		return false
	}

	for i := 0; i < len(digits); i++ {
		if !isDigit(digits[i]) {
			return false
		}
	}

	return true
}

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// ToDescriptor resolves the preset and applies the overrides.
func (a AcceleratorSpec) ToDescriptor() (accel.Descriptor, error) {
	desc, err := accel.Preset(a.Preset)
	if err != nil {
		return accel.Descriptor{}, err
	}

	desc.Name = a.Name

	if a.Base != 0 {
		desc.Base = a.Base
	}

	if a.MaxDim != 0 {
		desc.MaxDim = a.MaxDim
	}

	if a.Operands != 0 {
		desc.Operands = a.Operands
	}

	if desc.Dispatch, err = accel.ParseDispatch(a.Dispatch); err != nil {
		return accel.Descriptor{}, err
	}

	for name, code := range a.Opcodes {
		op, err := accel.ParseOpcode(name)
		if err != nil {
			return accel.Descriptor{}, err
		}
		desc.Opcodes[op] = code
	}

	if a.SigmoidGain != 0 {
		if desc.Curves == nil {
			desc.Curves = make(map[accel.Opcode]*accel.TransferCurve)
		}
		desc.Curves[accel.OpSigmoid] = accel.LogisticCurve(a.SigmoidGain)
	}

	if err := desc.Validate(); err != nil {
		return accel.Descriptor{}, err
	}

	return desc, nil
}

// ToFaults converts the fault list of a simulated accelerator.
func (s FaultSpec) ToFaults() (core.Faults, error) {
	stuck, err := ParseOps(s.StuckOn)
	if err != nil {
		return core.Faults{}, err
	}

	rounding, err := accel.ParseRounding(s.Rounding)
	if err != nil {
		return core.Faults{}, err
	}

	return core.Faults{
		StuckOn:       stuck,
		CorruptOutput: s.CorruptOutput,
		Rounding:      rounding,
	}, nil
}

// ParseOps parses a list of opcode names.
func ParseOps(names []string) ([]accel.Opcode, error) {
	ops := make([]accel.Opcode, 0, len(names))
	for _, name := range names {
		op, err := accel.ParseOpcode(name)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}

	return ops, nil
}
