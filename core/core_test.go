package core_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/api"
	"github.com/sarchlab/tensorbench/core"
	"github.com/sarchlab/tensorbench/tensor"
)

var _ = Describe("Unit", func() {
	var (
		engine sim.Engine
		unit   *core.Unit
		bus    *core.Bus
		l      accel.Layout
	)

	build := func(b core.Builder) {
		unit = b.WithEngine(engine).WithFreq(1 * sim.GHz).Build("Unit")
		bus = core.NewBus(unit)
		l = unit.Descriptor().Layout
	}

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		build(core.Builder{})
	})

	It("should mask DIM to eight bits", func() {
		bus.Write32(l.Dim, 0x1FF)

		Expect(bus.Read32(l.Dim)).To(Equal(uint32(0xFF)))
	})

	It("should map the tensor windows", func() {
		bus.Write32(l.WindowOffset(accel.WindowB)+8, 0xCAFEF00D)

		Expect(bus.Read32(l.WindowOffset(accel.WindowB) + 8)).
			To(Equal(uint32(0xCAFEF00D)))
		Expect(bus.Read32(l.WindowOffset(accel.WindowA) + 8)).
			To(Equal(uint32(0)))
		Expect(bus.Read32(0x800)).To(Equal(uint32(0)))
	})

	It("should be busy on the first poll and done on the next", func() {
		bus.Write32(l.Dim, 2)
		bus.Write32(l.WordIndex, 0)
		bus.Write32(l.Ctrl, accel.WordCommand(accel.OpReLU, 5, 0).CtrlWord())

		Expect(accel.Status(bus.Read32(l.Status)).Busy()).To(BeTrue())
		Expect(accel.Status(bus.Read32(l.Status)).Done()).To(BeTrue())
		Expect(unit.Completed()).To(Equal(1))
	})

	It("should complete commands issued back to back", func() {
		bus.Write32(l.Dim, 4)

		for w := uint32(0); w < 3; w++ {
			bus.Write32(l.Ctrl, 0)
			bus.Write32(l.WordIndex, w)
			bus.Write32(l.Ctrl, accel.WordCommand(accel.OpReLU, 5, w).CtrlWord())

			Expect(accel.Status(bus.Read32(l.Status)).Busy()).To(BeTrue())
			Expect(accel.Status(bus.Read32(l.Status)).Done()).To(BeTrue())
			Expect(unit.Completed()).To(Equal(int(w) + 1))
		}
	})

	It("should ignore an opcode the variant does not implement", func() {
		build(core.Builder{}.WithDescriptor(accel.PoolingUnit()))

		bus.Write32(l.Ctrl, accel.WordCommand(accel.OpSigmoid, 4, 0).CtrlWord())

		Expect(unit.Status().State()).To(Equal(accel.Idle))
	})

	It("should stay busy for the configured latency", func() {
		build(core.Builder{}.WithLatency(10))
		driver := api.DriverBuilder{}.
			WithPort(bus).
			WithDescriptor(*unit.Descriptor()).
			Build("Driver")

		_, err := driver.Run(accel.OpReLU, tensor.RampPattern(2))

		Expect(err).NotTo(HaveOccurred())
		Expect(driver.Stats().Polls).To(Equal(2))
		Expect(unit.Completed()).To(Equal(1))
	})

	It("should never complete a stuck opcode", func() {
		build(core.Builder{}.WithFaults(core.Faults{
			StuckOn: []accel.Opcode{accel.OpAvgPool},
		}))
		driver := api.DriverBuilder{}.
			WithPort(bus).
			WithDescriptor(*unit.Descriptor()).
			WithPollBudget(50).
			Build("Driver")

		_, err := driver.Run(accel.OpAvgPool, tensor.FillPattern(4))

		Expect(errors.Is(err, accel.ErrTimeout)).To(BeTrue())
		Expect(driver.Faulted()).To(BeTrue())
		Expect(unit.Status().Busy()).To(BeTrue())
	})

	It("should invoke the command hooks", func() {
		tracer := core.NewCommandTracer()
		unit.AcceptHook(tracer)
		driver := api.DriverBuilder{}.
			WithPort(bus).
			WithDescriptor(*unit.Descriptor()).
			Build("Driver")

		_, err := driver.Run(accel.OpMaxPool, tensor.FillPattern(6))

		Expect(err).NotTo(HaveOccurred())
		Expect(tracer.Started).To(Equal(9))
		Expect(tracer.Finished).To(Equal(9))
		Expect(tracer.ByOpcode[accel.OpMaxPool]).To(Equal(9))
		Expect(tracer.Pending()).To(Equal(0))
	})

	It("should clear everything on reset", func() {
		bus.Write32(l.Dim, 7)
		bus.Write32(l.WindowOffset(accel.WindowR), 1)

		unit.Reset()

		Expect(bus.Read32(l.Dim)).To(Equal(uint32(0)))
		Expect(bus.Read32(l.WindowOffset(accel.WindowR))).To(Equal(uint32(0)))
	})
})
