package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/akita/v4/monitoring"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/api"
	"github.com/sarchlab/tensorbench/config"
	"github.com/sarchlab/tensorbench/core"
	"github.com/sarchlab/tensorbench/mmio"
	"github.com/sarchlab/tensorbench/verify"
	"github.com/tebeka/atexit"
)

type runOptions struct {
	target     string
	configPath string
	devMem     string
	dim        int
	ops        string
	pattern    string
	pollBudget int
	reportPath string
	logPath    string
	samples    int
	monitor    bool
	dumpState  bool
}

func parseRunFlags(args []string) (runOptions, error) {
	var o runOptions

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.StringVar(&o.target, "target", "sim", "Accelerators to verify: sim or mmio")
	fs.StringVar(&o.configPath, "config", "", "Run file (YAML); built-in variants if empty")
	fs.StringVar(&o.devMem, "mem", mmio.DevMem, "Physical memory device for the mmio target")
	fs.IntVar(&o.dim, "dim", 0, "Tensor side for every accelerator (overrides the run file)")
	fs.StringVar(&o.ops, "ops", "", "Comma separated operations (overrides the run file)")
	fs.StringVar(&o.pattern, "pattern", "", "Base operand pattern: default, modulo or sweep (overrides the run file)")
	fs.IntVar(&o.pollBudget, "poll-budget", 0, "STATUS reads per command before timeout")
	fs.StringVar(&o.reportPath, "report", "", "Also write the report to this file")
	fs.StringVar(&o.logPath, "log", "tensorverify.json.log", "JSON trace log")
	fs.IntVar(&o.samples, "samples", verify.DefaultSampleWords, "Packed words printed per operation")
	fs.BoolVar(&o.monitor, "monitor", false, "Serve the akita monitor for the sim target")
	fs.BoolVar(&o.dumpState, "dump-state", false, "Print the register file of every sim device")

	if err := fs.Parse(args); err != nil {
		return o, err
	}

	if o.target != "sim" && o.target != "mmio" {
		return o, fmt.Errorf("unknown target %q", o.target)
	}

	return o, nil
}

func loadRunFile(o runOptions) (*config.File, error) {
	f := config.Default()
	if o.configPath != "" {
		var err error
		if f, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	}

	if o.pollBudget > 0 {
		f.Run.PollBudget = o.pollBudget
	}

	var ops []string
	if o.ops != "" {
		ops = strings.Split(o.ops, ",")
	}

	for i := range f.Accelerators {
		if o.dim > 0 {
			f.Accelerators[i].Dim = o.dim
		}
		if ops != nil {
			f.Accelerators[i].Ops = ops
		}
		if o.pattern != "" {
			f.Accelerators[i].Pattern = o.pattern
		}
	}

	return f, f.Validate()
}

func newDriver(f *config.File, name string, port accel.RegisterPort, desc accel.Descriptor) api.Driver {
	b := api.DriverBuilder{}.
		WithPort(port).
		WithDescriptor(desc)
	if f.Run.PollBudget > 0 {
		b = b.WithPollBudget(f.Run.PollBudget)
	}

	return b.Build(name)
}

func newPlan(a config.AcceleratorSpec, desc *accel.Descriptor) (verify.Plan, error) {
	ops, err := config.ParseOps(a.Ops)
	if err != nil {
		return verify.Plan{}, err
	}
	if len(ops) == 0 {
		ops = desc.Ops()
	}

	pattern, err := verify.ParsePattern(a.Pattern)
	if err != nil {
		return verify.Plan{}, fmt.Errorf("%s: %w", a.Name, err)
	}

	return verify.Plan{
		Name:       a.Name,
		Descriptor: desc,
		Dim:        a.Dim,
		Ops:        ops,
		Pattern:    pattern,
	}, nil
}

// simSessions builds one simulated device per accelerator on a shared
// engine.
func simSessions(f *config.File, o runOptions) ([]verify.Session, *config.Platform, error) {
	engine := sim.NewSerialEngine()

	var monitor *monitoring.Monitor
	if o.monitor {
		monitor = monitoring.NewMonitor()
		monitor.RegisterEngine(engine)
	}

	platform, err := config.BuildPlatform(f, engine, monitor)
	if err != nil {
		return nil, nil, err
	}

	if monitor != nil {
		monitor.StartServer()
	}

	sessions := make([]verify.Session, 0, len(platform.Devices))
	for i, dev := range platform.Devices {
		dev.Unit.AcceptHook(core.NewCommandTracer())

		plan, err := newPlan(f.Accelerators[i], dev.Descriptor())
		if err != nil {
			return nil, nil, err
		}

		sessions = append(sessions, verify.Session{
			Plan:   plan,
			Driver: newDriver(f, dev.Name+".Driver", dev.Bus, *dev.Descriptor()),
		})
	}

	return sessions, platform, nil
}

// mmioSessions maps the register window of every accelerator.
func mmioSessions(f *config.File, o runOptions) ([]verify.Session, error) {
	sessions := make([]verify.Session, 0, len(f.Accelerators))
	for _, a := range f.Accelerators {
		desc, err := a.ToDescriptor()
		if err != nil {
			return nil, err
		}

		w, err := mmio.Open(o.devMem, desc.Base, desc.Layout.Span())
		if err != nil {
			return nil, err
		}
		atexit.Register(func() { w.Close() })

		plan, err := newPlan(a, &desc)
		if err != nil {
			return nil, err
		}

		sessions = append(sessions, verify.Session{
			Plan:   plan,
			Driver: newDriver(f, a.Name+".Driver", w, desc),
		})
	}

	return sessions, nil
}

func runCmd(args []string) int {
	o, err := parseRunFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	setupLog(o.logPath)

	f, err := loadRunFile(o)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	var (
		sessions []verify.Session
		platform *config.Platform
	)
	if o.target == "sim" {
		sessions, platform, err = simSessions(f, o)
	} else {
		sessions, err = mmioSessions(f, o)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	report := verify.GenerateReport(sessions)
	report.SampleWords = o.samples
	report.WriteReport(os.Stdout)

	if o.reportPath != "" {
		if err := report.SaveReportToFile(o.reportPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
	}

	if platform != nil {
		for _, dev := range platform.Devices {
			core.LogState(dev.Unit)
			if o.dumpState {
				core.PrintState(os.Stdout, dev.Unit, 4)
			}
		}
	}

	return report.ExitCode()
}
