package core

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/tensor"
)

var _ = Describe("InstEmulator", func() {
	var (
		desc accel.Descriptor
		ie   instEmulator
		s    unitState
	)

	load := func(w accel.Window, elems ...int8) {
		tensor.PackInto(s.Windows[w], elems, len(elems))
	}

	BeforeEach(func() {
		desc = accel.UnifiedUnit()
		ie = instEmulator{desc: &desc, corrupt: map[int]bool{}}
		s = newUnitState(desc.Layout.WindowWords())
	})

	Context("when running arithmetic", func() {
		It("should add every operand window with saturation", func() {
			s.Dim = 2
			load(accel.WindowA, 100, -100, 1, 0)
			load(accel.WindowB, 20, -20, 2, 0)
			load(accel.WindowC, 10, -10, 3, 0)

			for i := uint32(0); i < 4; i++ {
				ie.RunInst(accel.WindowCommand(accel.OpAdd, 0, i, i), &s)
			}

			Expect(s.element(accel.WindowR, 0)).To(Equal(int8(127)))
			Expect(s.element(accel.WindowR, 1)).To(Equal(int8(-128)))
			Expect(s.element(accel.WindowR, 2)).To(Equal(int8(6)))
		})

		It("should subtract every later operand window", func() {
			s.Dim = 1
			load(accel.WindowA, -100)
			load(accel.WindowB, 20)
			load(accel.WindowC, 10)

			ie.RunInst(accel.WindowCommand(accel.OpSub, 1, 0, 0), &s)

			Expect(s.element(accel.WindowR, 0)).To(Equal(int8(-128)))
		})

		It("should cover the whole tensor with one command", func() {
			s.Dim = 3
			a := tensor.FillPattern(3)
			load(accel.WindowA, a.Data...)

			ie.RunInst(accel.TensorCommand(accel.OpAdd, 0), &s)

			for i := 0; i < 9; i++ {
				Expect(s.element(accel.WindowR, i)).To(Equal(a.Data[i]))
			}
		})
	})

	Context("when running pooling", func() {
		It("should take the maximum of the 2x2 window", func() {
			s.Dim = 4
			load(accel.WindowA,
				1, 2, 0, 0,
				3, 9, 0, 0,
				0, 0, 0, 0,
				0, 0, 0, 0)

			ie.RunInst(accel.WindowCommand(accel.OpMaxPool, 2, 0, 0), &s)

			Expect(s.element(accel.WindowR, 0)).To(Equal(int8(9)))
		})

		It("should round the average to nearest", func() {
			s.Dim = 2
			load(accel.WindowA, -2, -1, -1, -1)

			ie.RunInst(accel.WindowCommand(accel.OpAvgPool, 3, 0, 0), &s)

			Expect(s.element(accel.WindowR, 0)).To(Equal(int8(-1)))
		})

		It("should truncate the average when configured", func() {
			ie.rounding = accel.RoundTruncate
			s.Dim = 2
			load(accel.WindowA, -2, -1, -1, -1)

			ie.RunInst(accel.WindowCommand(accel.OpAvgPool, 3, 0, 0), &s)

			Expect(s.element(accel.WindowR, 0)).To(Equal(int8(-2)))
		})
	})

	Context("when running elementwise ops", func() {
		It("should zero the lanes past the last element", func() {
			s.Dim = 3
			load(accel.WindowA, -5, -5, -5, -5, -5, -5, -5, -5, 3, 7, 7, 7)

			ie.RunInst(accel.WordCommand(accel.OpReLU, 5, 2), &s)

			Expect(s.element(accel.WindowR, 8)).To(Equal(int8(3)))
			Expect(s.element(accel.WindowR, 9)).To(Equal(int8(0)))
			Expect(s.element(accel.WindowR, 11)).To(Equal(int8(0)))
		})

		It("should pass every lane through the curve", func() {
			s.Dim = 2
			load(accel.WindowA, -5, 5, -128, 127)

			ie.RunInst(accel.WordCommand(accel.OpReLU, 5, 0), &s)

			Expect(s.Windows[accel.WindowR][0]).To(Equal(tensor.Pack4(0, 5, 0, 127)))
		})
	})

	It("should flip bit 0 of corrupted outputs", func() {
		ie.corrupt[0] = true
		s.Dim = 1
		load(accel.WindowA, 4)

		ie.RunInst(accel.WindowCommand(accel.OpAdd, 0, 0, 0), &s)

		Expect(s.element(accel.WindowR, 0)).To(Equal(int8(5)))
	})
})
