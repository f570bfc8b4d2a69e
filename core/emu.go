package core

import (
	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/fixed"
	"github.com/sarchlab/tensorbench/tensor"
)

type unitState struct {
	Ctrl      uint32
	Status    uint32
	Dim       uint32
	BaseIndex uint32
	OutIndex  uint32
	WordIndex uint32

	// Windows holds TENSOR_A, TENSOR_B, TENSOR_C and TENSOR_R as packed
	// words, indexed by accel.Window.
	Windows [4][]uint32

	Pending   *accel.Command
	Countdown int
	Completed int
}

func newUnitState(words int) unitState {
	s := unitState{}
	for i := range s.Windows {
		s.Windows[i] = make([]uint32, words)
	}

	return s
}

func (s *unitState) elements(w accel.Window) int {
	return len(s.Windows[w]) * tensor.LanesPerWord
}

// element reads one int8 of a window. Indices past the window read as zero.
func (s *unitState) element(w accel.Window, i int) int8 {
	if i < 0 || i >= s.elements(w) {
		return 0
	}

	return tensor.Lane(s.Windows[w][i/4], i%4)
}

func (s *unitState) setElement(w accel.Window, i int, v int8) {
	if i < 0 || i >= s.elements(w) {
		return
	}

	s.Windows[w][i/4] = tensor.SetLane(s.Windows[w][i/4], i%4, v)
}

// instEmulator models the datapath of the peripheral. It only touches the
// state it is handed.
type instEmulator struct {
	desc     *accel.Descriptor
	rounding accel.Rounding

	// corrupt lists output elements whose bit 0 is flipped on every store.
	corrupt map[int]bool
}

// RunInst executes one latched command.
func (i instEmulator) RunInst(cmd accel.Command, state *unitState) {
	n := int(state.Dim & accel.DimMask)

	switch cmd.Opcode.Class() {
	case accel.ClassArithmetic:
		i.runArithmetic(cmd, n, state)
	case accel.ClassPooling:
		i.runPooling(cmd, n, state)
	case accel.ClassElementwise:
		i.runElementwise(cmd, n, state)
	default:
		panic("unknown opcode class")
	}
}

func (i instEmulator) store(state *unitState, idx int, v int8) {
	if i.corrupt[idx] {
		v ^= 1
	}

	state.setElement(accel.WindowR, idx, v)
}

func (i instEmulator) runArithmetic(cmd accel.Command, n int, state *unitState) {
	if cmd.Whole {
		for idx := 0; idx < n*n; idx++ {
			i.store(state, idx, i.combine(cmd.Opcode, idx, state))
		}
		return
	}

	v := i.combine(cmd.Opcode, int(cmd.Primary), state)
	i.store(state, int(cmd.Secondary), v)
}

// combine adds or subtracts the element at idx of every operand window into
// a wide accumulator and saturates once.
func (i instEmulator) combine(op accel.Opcode, idx int, state *unitState) int8 {
	acc := int(state.element(accel.WindowA, idx))
	for k := 1; k < i.desc.Operands; k++ {
		v := int(state.element(accel.InputWindows[k], idx))
		if op == accel.OpSub {
			acc -= v
		} else {
			acc += v
		}
	}

	return fixed.Saturate(acc)
}

func (i instEmulator) runPooling(cmd accel.Command, n int, state *unitState) {
	if !cmd.Whole {
		i.store(state, int(cmd.Secondary), i.pool(cmd.Opcode, int(cmd.Primary), n, state))
		return
	}

	outN := n / 2
	for r := 0; r < outN; r++ {
		for c := 0; c < outN; c++ {
			v := i.pool(cmd.Opcode, 2*r*n+2*c, n, state)
			i.store(state, r*outN+c, v)
		}
	}
}

// pool reduces the 2x2 window whose top-left element is base.
func (i instEmulator) pool(op accel.Opcode, base, n int, state *unitState) int8 {
	w := [4]int8{
		state.element(accel.WindowA, base),
		state.element(accel.WindowA, base+1),
		state.element(accel.WindowA, base+n),
		state.element(accel.WindowA, base+n+1),
	}

	if op == accel.OpMaxPool {
		m := w[0]
		for _, v := range w[1:] {
			if v > m {
				m = v
			}
		}
		return m
	}

	sum := int(w[0]) + int(w[1]) + int(w[2]) + int(w[3])

	return i.average(sum)
}

func (i instEmulator) average(sum int) int8 {
	if i.rounding == accel.RoundTruncate {
		return fixed.Saturate(sum >> 2)
	}

	if sum >= 0 {
		return fixed.Saturate((sum + 2) >> 2)
	}

	return fixed.Saturate((sum + 1) >> 2)
}

func (i instEmulator) runElementwise(cmd accel.Command, n int, state *unitState) {
	curve := i.desc.Curve(cmd.Opcode)
	if curve == nil {
		return
	}

	if !cmd.Whole {
		i.transferWord(curve, int(cmd.Primary), n, state)
		return
	}

	for w := 0; w < tensor.WordCount(n*n); w++ {
		i.transferWord(curve, w, n, state)
	}
}

// transferWord passes the four lanes of one packed word through the curve.
// Lanes past the last tensor element are written as zero.
func (i instEmulator) transferWord(
	curve *accel.TransferCurve,
	word, n int,
	state *unitState,
) {
	for j := 0; j < tensor.LanesPerWord; j++ {
		idx := word*tensor.LanesPerWord + j

		var v int8
		if idx < n*n {
			v = curve.Apply(state.element(accel.WindowA, idx))
		}

		i.store(state, idx, v)
	}
}
