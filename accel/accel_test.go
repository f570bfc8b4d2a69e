package accel_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/tensorbench/accel"
)

var _ = Describe("Command", func() {
	It("should place the opcode in CTRL[5:1] with the start bit", func() {
		cmd := accel.WordCommand(accel.OpSigmoid, 0x04, 3)
		Expect(cmd.CtrlWord()).To(Equal(uint32(0x09)))

		cmd = accel.WindowCommand(accel.OpAvgPool, 0x03, 0, 0)
		Expect(cmd.CtrlWord()).To(Equal(uint32(0x07)))

		cmd = accel.TensorCommand(accel.OpAdd, 0x00)
		Expect(cmd.CtrlWord()).To(Equal(uint32(0x01)))
	})

	It("should mask codes wider than five bits", func() {
		cmd := accel.WordCommand(accel.OpReLU, 0x25, 0)
		Expect(cmd.CtrlWord()).To(Equal(uint32(0x0B)))
	})

	It("should decode CTRL", func() {
		code, start := accel.DecodeCtrl(0x0B)
		Expect(code).To(Equal(uint8(0x05)))
		Expect(start).To(BeTrue())

		code, start = accel.DecodeCtrl(0)
		Expect(code).To(Equal(uint8(0)))
		Expect(start).To(BeFalse())
	})

	It("should describe itself by class", func() {
		Expect(accel.WordCommand(accel.OpReLU, 5, 7).String()).
			To(Equal("relu(word=7)"))
		Expect(accel.WindowCommand(accel.OpMaxPool, 2, 18, 5).String()).
			To(Equal("maxpool(base=18, out=5)"))
		Expect(accel.TensorCommand(accel.OpSub, 1).String()).
			To(Equal("sub(tensor)"))
	})
})

var _ = Describe("Opcode", func() {
	It("should parse canonical names and firmware aliases", func() {
		for _, op := range accel.AllOpcodes {
			parsed, err := accel.ParseOpcode(op.String())
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(op))
		}

		op, err := accel.ParseOpcode(" AVG ")
		Expect(err).NotTo(HaveOccurred())
		Expect(op).To(Equal(accel.OpAvgPool))
	})

	It("should reject unknown names", func() {
		_, err := accel.ParseOpcode("conv")
		Expect(errors.Is(err, accel.ErrUnsupportedOpcode)).To(BeTrue())
	})

	It("should halve the side for pooling only", func() {
		Expect(accel.OpMaxPool.OutputSide(8)).To(Equal(4))
		Expect(accel.OpAvgPool.OutputSide(7)).To(Equal(3))
		Expect(accel.OpAdd.OutputSide(8)).To(Equal(8))
		Expect(accel.OpReLU.OutputSide(8)).To(Equal(8))
	})
})

var _ = Describe("Status", func() {
	It("should report busy before done", func() {
		Expect(accel.Status(0).State()).To(Equal(accel.Idle))
		Expect(accel.Status(1).State()).To(Equal(accel.Busy))
		Expect(accel.Status(3).State()).To(Equal(accel.Busy))
		Expect(accel.Status(2).State()).To(Equal(accel.Done))
	})
})

var _ = Describe("Descriptor", func() {
	It("should validate every preset", func() {
		for _, name := range []string{"arithmetic", "pooling", "activation", "unified"} {
			d, err := accel.Preset(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Validate()).To(Succeed(), name)
		}
	})

	It("should reject dimensions outside 1..MaxDim", func() {
		d := accel.PoolingUnit()
		Expect(d.CheckDim(1)).To(Succeed())
		Expect(d.CheckDim(28)).To(Succeed())

		err := d.CheckDim(29)
		Expect(errors.Is(err, accel.ErrDimensionOutOfRange)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("N=29"))

		Expect(errors.Is(d.CheckDim(0), accel.ErrDimensionOutOfRange)).To(BeTrue())
	})

	It("should refuse a max dim that overflows the windows", func() {
		d := accel.PoolingUnit()
		d.MaxDim = 70
		Expect(d.Validate()).To(MatchError(ContainSubstring("window holds 1024 words")))
	})

	It("should detect overlapping windows", func() {
		d := accel.UnifiedUnit()
		d.Layout.Windows[accel.WindowB] = 0x1800
		Expect(d.Validate()).To(MatchError(ContainSubstring("TENSOR_A overlaps TENSOR_B")))
	})

	It("should require a curve for elementwise opcodes", func() {
		d := accel.ActivationUnit()
		delete(d.Curves, accel.OpSigmoid)
		Expect(d.Validate()).To(MatchError(ContainSubstring("sigmoid has no transfer curve")))
	})

	It("should report opcode support and codes", func() {
		d := accel.ArithmeticUnit()
		Expect(d.Supports(accel.OpAdd)).To(BeTrue())
		Expect(d.Supports(accel.OpMaxPool)).To(BeFalse())
		Expect(d.Ops()).To(Equal([]accel.Opcode{accel.OpAdd, accel.OpSub}))

		_, err := d.Code(accel.OpReLU)
		Expect(errors.Is(err, accel.ErrUnsupportedOpcode)).To(BeTrue())

		op, ok := d.Decode(1)
		Expect(ok).To(BeTrue())
		Expect(op).To(Equal(accel.OpSub))
	})

	It("should cover every register in the span", func() {
		Expect(accel.DefaultLayout().Span()).To(Equal(uint32(0x5000)))
	})
})

var _ = Describe("TransferCurve", func() {
	It("should clamp negatives for ReLU", func() {
		c := accel.ReLUCurve()
		Expect(c.Apply(-128)).To(Equal(int8(0)))
		Expect(c.Apply(-1)).To(Equal(int8(0)))
		Expect(c.Apply(0)).To(Equal(int8(0)))
		Expect(c.Apply(127)).To(Equal(int8(127)))
	})

	It("should be monotonic and centred for the logistic curve", func() {
		c := accel.LogisticCurve(1)
		Expect(c.Apply(0)).To(Equal(int8(64)))
		for v := -128; v < 127; v++ {
			Expect(c.Apply(int8(v + 1))).To(BeNumerically(">=", c.Apply(int8(v))))
		}
	})
})
