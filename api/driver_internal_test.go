package api

import (
	"errors"

	gomock "github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/tensor"
)

// echoPort is a register file whose datapath copies the addressed input
// element of TENSOR_A to the addressed output element of TENSOR_R.
type echoPort struct {
	desc   accel.Descriptor
	mem    map[uint32]uint32
	starts []uint32
	writes int
}

func newEchoPort(desc accel.Descriptor) *echoPort {
	return &echoPort{desc: desc, mem: make(map[uint32]uint32)}
}

func (p *echoPort) Read32(offset uint32) uint32 {
	return p.mem[offset]
}

func (p *echoPort) Write32(offset, value uint32) {
	p.writes++
	p.mem[offset] = value

	if offset == p.desc.Layout.Ctrl && value&accel.CtrlStart != 0 {
		p.starts = append(p.starts, value)
		p.execute(value)
	}
}

func (p *echoPort) execute(ctrl uint32) {
	l := p.desc.Layout
	a := l.WindowOffset(accel.WindowA)
	r := l.WindowOffset(accel.WindowR)

	code, _ := accel.DecodeCtrl(ctrl)
	op, _ := p.desc.Decode(code)
	if op.Class() == accel.ClassElementwise {
		w := p.mem[l.WordIndex]
		p.mem[r+4*w] = p.mem[a+4*w]
		return
	}

	base := p.mem[l.BaseIndex]
	out := p.mem[l.OutIndex]
	v := tensor.Lane(p.mem[a+4*(base/4)], int(base%4))
	p.mem[r+4*(out/4)] = tensor.SetLane(p.mem[r+4*(out/4)], int(out%4), v)
}

func (p *echoPort) window(w accel.Window, words int) []uint32 {
	base := p.desc.Layout.WindowOffset(w)
	out := make([]uint32, words)
	for i := range out {
		out[i] = p.mem[base+uint32(4*i)]
	}
	return out
}

var _ = Describe("Driver", func() {
	var (
		mockCtrl   *gomock.Controller
		mockPort   *MockRegisterPort
		mockWaiter *MockWaiter
		driver     *driverImpl
		l          accel.Layout
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		mockPort = NewMockRegisterPort(mockCtrl)
		mockWaiter = NewMockWaiter(mockCtrl)

		driver = DriverBuilder{}.
			WithPort(mockPort).
			WithDescriptor(accel.UnifiedUnit()).
			WithPollBudget(5).
			WithWaiter(mockWaiter).
			Build("Accel").(*driverImpl)
		l = driver.desc.Layout
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should issue an elementwise command in protocol order", func() {
		gomock.InOrder(
			mockPort.EXPECT().Write32(l.Ctrl, uint32(0)),
			mockPort.EXPECT().Write32(l.WordIndex, uint32(3)),
			mockPort.EXPECT().Write32(l.Ctrl, uint32(0x09)),
			mockPort.EXPECT().Read32(l.Status).Return(uint32(accel.StatusBusy)),
			mockWaiter.EXPECT().Wait(1),
			mockPort.EXPECT().Read32(l.Status).Return(uint32(accel.StatusDone)),
		)

		err := driver.Issue(accel.WordCommand(accel.OpSigmoid, 4, 3))

		Expect(err).NotTo(HaveOccurred())
		Expect(driver.Stats().Commands).To(Equal(1))
		Expect(driver.Stats().Polls).To(Equal(2))
	})

	It("should write base and output index for pooling", func() {
		gomock.InOrder(
			mockPort.EXPECT().Write32(l.Ctrl, uint32(0)),
			mockPort.EXPECT().Write32(l.BaseIndex, uint32(18)),
			mockPort.EXPECT().Write32(l.OutIndex, uint32(5)),
			mockPort.EXPECT().Write32(l.Ctrl, uint32(0x05)),
			mockPort.EXPECT().Read32(l.Status).Return(uint32(0)),
		)

		err := driver.Issue(accel.WindowCommand(accel.OpMaxPool, 2, 18, 5))

		Expect(err).NotTo(HaveOccurred())
	})

	It("should skip index registers for a whole-tensor command", func() {
		gomock.InOrder(
			mockPort.EXPECT().Write32(l.Ctrl, uint32(0)),
			mockPort.EXPECT().Write32(l.Ctrl, uint32(0x01)),
			mockPort.EXPECT().Read32(l.Status).Return(uint32(accel.StatusDone)),
		)

		Expect(driver.Issue(accel.TensorCommand(accel.OpAdd, 0))).To(Succeed())
	})

	It("should time out after exactly the poll budget", func() {
		mockPort.EXPECT().Write32(gomock.Any(), gomock.Any()).Times(3)
		mockPort.EXPECT().Read32(l.Status).
			Return(uint32(accel.StatusBusy)).
			Times(5)
		mockWaiter.EXPECT().Wait(gomock.Any()).Times(4)

		err := driver.Issue(accel.WordCommand(accel.OpReLU, 5, 0))

		Expect(errors.Is(err, accel.ErrTimeout)).To(BeTrue())
		var timeout *accel.TimeoutError
		Expect(errors.As(err, &timeout)).To(BeTrue())
		Expect(timeout.Polls).To(Equal(5))
		Expect(driver.Faulted()).To(BeTrue())
		Expect(driver.Stats().Timeouts).To(Equal(1))
	})

	It("should refuse commands once faulted", func() {
		driver.faulted = true

		err := driver.Issue(accel.WordCommand(accel.OpReLU, 5, 0))
		Expect(errors.Is(err, accel.ErrDeviceFaulted)).To(BeTrue())

		_, err = driver.Run(accel.OpReLU, tensor.New(2))
		Expect(errors.Is(err, accel.ErrDeviceFaulted)).To(BeTrue())
	})

	It("should reject an oversized tensor before touching any register", func() {
		_, err := driver.Run(accel.OpMaxPool, tensor.New(29))

		Expect(errors.Is(err, accel.ErrDimensionOutOfRange)).To(BeTrue())
	})

	It("should reject an unsupported opcode before touching any register", func() {
		driver.desc = accel.PoolingUnit()

		_, err := driver.Run(accel.OpAdd, tensor.New(4))

		Expect(errors.Is(err, accel.ErrUnsupportedOpcode)).To(BeTrue())
	})

	It("should reject too many operands", func() {
		driver.desc = accel.PoolingUnit()

		_, err := driver.Run(accel.OpAvgPool, tensor.New(4), tensor.New(4))

		Expect(errors.Is(err, accel.ErrOperandCount)).To(BeTrue())
	})

	It("should reject a nil operand before touching any register", func() {
		_, err := driver.Run(accel.OpAdd, tensor.New(4), nil)

		Expect(errors.Is(err, accel.ErrOperandCount)).To(BeTrue())
	})

	It("should program DIM with the low eight bits", func() {
		mockPort.EXPECT().Write32(l.Dim, uint32(28))

		Expect(driver.SetDimension(28)).To(Succeed())
		Expect(driver.dim).To(Equal(28))
	})

	It("should probe status", func() {
		mockPort.EXPECT().Read32(l.Status).Return(uint32(accel.StatusDone))

		Expect(driver.Probe().State()).To(Equal(accel.Done))
	})
})

var _ = Describe("Session", func() {
	var (
		port   *echoPort
		driver Driver
	)

	build := func(desc accel.Descriptor) {
		port = newEchoPort(desc)
		driver = DriverBuilder{}.
			WithPort(port).
			WithDescriptor(desc).
			Build("Accel")
	}

	It("should issue one command per pooled element at stride 2", func() {
		build(accel.PoolingUnit())
		a := tensor.FillPattern(8)

		r, err := driver.Run(accel.OpMaxPool, a)

		Expect(err).NotTo(HaveOccurred())
		Expect(r.N).To(Equal(4))
		Expect(port.starts).To(HaveLen(16))
		for row := 0; row < 4; row++ {
			for col := 0; col < 4; col++ {
				Expect(r.At(row, col)).To(Equal(a.At(2*row, 2*col)))
			}
		}
		Expect(port.mem[port.desc.Layout.Dim]).To(Equal(uint32(8)))
	})

	It("should issue one command per packed word for elementwise ops", func() {
		build(accel.ActivationUnit())
		a := tensor.RampPattern(5)

		r, err := driver.Run(accel.OpReLU, a)

		Expect(err).NotTo(HaveOccurred())
		Expect(port.starts).To(HaveLen(7))
		Expect(r.Data).To(Equal(a.Data))
	})

	It("should issue one command per element for arithmetic ops", func() {
		build(accel.ArithmeticUnit())
		a := tensor.FillPattern(3)

		r, err := driver.Run(accel.OpAdd, a, tensor.Offset(a, -50))

		Expect(err).NotTo(HaveOccurred())
		Expect(port.starts).To(HaveLen(9))
		Expect(r.Data).To(Equal(a.Data))
	})

	It("should zero-fill operand windows without an input", func() {
		build(accel.ArithmeticUnit())
		c := accel.WindowC
		port.mem[port.desc.Layout.WindowOffset(c)] = 0xDEADBEEF

		_, err := driver.Run(accel.OpSub, tensor.FillPattern(4))

		Expect(err).NotTo(HaveOccurred())
		Expect(port.window(accel.WindowB, 4)).To(Equal([]uint32{0, 0, 0, 0}))
		Expect(port.window(accel.WindowC, 4)).To(Equal([]uint32{0, 0, 0, 0}))
	})

	It("should start a whole-tensor unit once", func() {
		desc := accel.ArithmeticUnit()
		desc.Dispatch = accel.DispatchWholeTensor
		build(desc)

		_, err := driver.Run(accel.OpAdd, tensor.FillPattern(6))

		Expect(err).NotTo(HaveOccurred())
		Expect(port.starts).To(Equal([]uint32{0x01}))
	})

	It("should clear the output window before pooling", func() {
		build(accel.PoolingUnit())
		r := port.desc.Layout.WindowOffset(accel.WindowR)
		port.mem[r] = 0xFFFFFFFF
		port.mem[r+4] = 0xFFFFFFFF

		_, err := driver.Run(accel.OpAvgPool, tensor.FillPattern(4))

		Expect(err).NotTo(HaveOccurred())
		// One pooled element: lane 0 holds the echoed A[0] = -64, the
		// rest of word 0 was cleared and word 1 lies past the output.
		Expect(port.mem[r]).To(Equal(uint32(0xC0)))
		Expect(port.mem[r+4]).To(Equal(uint32(0xFFFFFFFF)))
	})

	It("should count commands the same way Run issues them", func() {
		desc := accel.UnifiedUnit()
		Expect(CommandCount(&desc, accel.OpAdd, 8)).To(Equal(64))
		Expect(CommandCount(&desc, accel.OpMaxPool, 8)).To(Equal(16))
		Expect(CommandCount(&desc, accel.OpSigmoid, 5)).To(Equal(7))
	})
})
