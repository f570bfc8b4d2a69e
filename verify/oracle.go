package verify

import (
	"fmt"

	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/fixed"
	"github.com/sarchlab/tensorbench/tensor"
)

// Add returns the elementwise sum of all operands, accumulated wide and
// saturated once.
func Add(a *tensor.Tensor, rest ...*tensor.Tensor) *tensor.Tensor {
	return combine(a, rest, 1)
}

// Sub returns a minus every other operand, accumulated wide and saturated
// once.
func Sub(a *tensor.Tensor, rest ...*tensor.Tensor) *tensor.Tensor {
	return combine(a, rest, -1)
}

func combine(a *tensor.Tensor, rest []*tensor.Tensor, sign int) *tensor.Tensor {
	r := tensor.New(a.N)
	for i := range r.Data {
		acc := int(a.Data[i])
		for _, t := range rest {
			acc += sign * int(t.Data[i])
		}
		r.Data[i] = fixed.Saturate(acc)
	}

	return r
}

// MaxPool2x2 returns the maximum of every 2x2 stride-2 block.
func MaxPool2x2(a *tensor.Tensor) *tensor.Tensor {
	return pool(a, func(v [4]int8) int8 {
		m := v[0]
		for _, x := range v[1:] {
			m = max(m, x)
		}
		return m
	})
}

// AvgPool2x2 returns the rounded average of every 2x2 stride-2 block.
func AvgPool2x2(a *tensor.Tensor) *tensor.Tensor {
	return pool(a, func(v [4]int8) int8 {
		return AvgSum(int(v[0]) + int(v[1]) + int(v[2]) + int(v[3]))
	})
}

// AvgSum divides the sum of a 2x2 block by four the way the pooling unit
// does: add 2 to non-negative sums and 1 to negative sums, shift right
// arithmetically by two and saturate. A sum of -5 gives -1.
func AvgSum(sum int) int8 {
	bias := 2
	if sum < 0 {
		bias = 1
	}

	return fixed.Saturate((sum + bias) >> 2)
}

func pool(a *tensor.Tensor, reduce func([4]int8) int8) *tensor.Tensor {
	outN := a.N / 2
	r := tensor.New(outN)
	for row := 0; row < outN; row++ {
		for col := 0; col < outN; col++ {
			r.Set(row, col, reduce([4]int8{
				a.At(2*row, 2*col),
				a.At(2*row, 2*col+1),
				a.At(2*row+1, 2*col),
				a.At(2*row+1, 2*col+1),
			}))
		}
	}

	return r
}

// Sigmoid applies the transfer curve published for the activation unit.
func Sigmoid(a *tensor.Tensor, curve *accel.TransferCurve) *tensor.Tensor {
	r := tensor.New(a.N)
	for i, x := range a.Data {
		r.Data[i] = curve.Apply(x)
	}

	return r
}

// ReLU clamps negative elements to zero.
func ReLU(a *tensor.Tensor) *tensor.Tensor {
	r := tensor.New(a.N)
	for i, x := range a.Data {
		r.Data[i] = max(x, 0)
	}

	return r
}

// Reference computes the expected result of op. Sigmoid takes its transfer
// curve from the descriptor.
func Reference(
	desc *accel.Descriptor,
	op accel.Opcode,
	inputs ...*tensor.Tensor,
) (*tensor.Tensor, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: %s needs an input", accel.ErrOperandCount, op)
	}

	a := inputs[0]
	switch op {
	case accel.OpAdd:
		return Add(a, inputs[1:]...), nil
	case accel.OpSub:
		return Sub(a, inputs[1:]...), nil
	case accel.OpMaxPool:
		return MaxPool2x2(a), nil
	case accel.OpAvgPool:
		return AvgPool2x2(a), nil
	case accel.OpSigmoid:
		curve := desc.Curve(op)
		if curve == nil {
			return nil, fmt.Errorf("%s has no sigmoid transfer curve", desc.Name)
		}
		return Sigmoid(a, curve), nil
	case accel.OpReLU:
		return ReLU(a), nil
	default:
		return nil, fmt.Errorf("%w: %s", accel.ErrUnsupportedOpcode, op)
	}
}

// Pattern selects the base operand A of a run.
type Pattern string

const (
	// PatternDefault uses 7r+3c-64 for arithmetic and pooling and the
	// activation ramp for elementwise ops.
	PatternDefault Pattern = ""

	// PatternModulo uses A[i] = i mod 100, the arithmetic test program's
	// operands.
	PatternModulo Pattern = "modulo"

	// PatternSweep walks A[i] = i-127 through every int8 code, wrapping.
	PatternSweep Pattern = "sweep"
)

// ParsePattern parses a pattern name. "default" and "fill" select
// PatternDefault.
func ParsePattern(s string) (Pattern, error) {
	switch Pattern(s) {
	case PatternDefault, "default", "fill":
		return PatternDefault, nil
	case PatternModulo, PatternSweep:
		return Pattern(s), nil
	default:
		return "", fmt.Errorf("unknown input pattern %q", s)
	}
}

func baseOperand(pattern Pattern, op accel.Opcode, n int) *tensor.Tensor {
	switch pattern {
	case PatternModulo:
		return tensor.ModuloPattern(n, 100, 0)
	case PatternSweep:
		return tensor.Generate(n, tensor.MakeIncreasingGen(-128))
	}

	if op.Class() == accel.ClassElementwise {
		return tensor.RampPattern(n)
	}

	return tensor.FillPattern(n)
}

// Inputs generates the deterministic operands of op on a tensor of side n.
// Arithmetic ops get B = A-50 and C = A+20 next to the base operand A, cut
// to the operand count of the descriptor.
func Inputs(
	desc *accel.Descriptor,
	op accel.Opcode,
	n int,
	pattern Pattern,
) []*tensor.Tensor {
	a := baseOperand(pattern, op, n)
	if op.Class() != accel.ClassArithmetic {
		return []*tensor.Tensor{a}
	}

	all := []*tensor.Tensor{a, tensor.Offset(a, -50), tensor.Offset(a, 20)}

	return all[:min(desc.InputCount(op), len(all))]
}

// Compare counts the elements where hw differs from sw and returns the index
// of the first one, or -1.
func Compare(hw, sw *tensor.Tensor) (mismatches, first int) {
	first = -1
	if hw.N != sw.N {
		return max(hw.Len(), sw.Len()), 0
	}

	for i := range sw.Data {
		if hw.Data[i] != sw.Data[i] {
			if first < 0 {
				first = i
			}
			mismatches++
		}
	}

	return mismatches, first
}
