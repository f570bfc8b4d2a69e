package api

import (
	"fmt"

	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/tensor"
)

// Run executes op over the inputs. Inputs fill the operand windows in order
// starting at TENSOR_A; operand windows without an input are zero-filled so
// the datapath never reads stale data.
func (d *driverImpl) Run(
	op accel.Opcode,
	inputs ...*tensor.Tensor,
) (*tensor.Tensor, error) {
	if d.faulted {
		return nil, fmt.Errorf("%s: %w", d.name, accel.ErrDeviceFaulted)
	}

	code, err := d.desc.Code(op)
	if err != nil {
		return nil, err
	}

	n, err := d.checkInputs(op, inputs)
	if err != nil {
		return nil, err
	}

	if err := d.SetDimension(n); err != nil {
		return nil, err
	}

	if err := d.loadOperands(op, n, inputs); err != nil {
		return nil, err
	}

	outN := op.OutputSide(n)
	if op.Class() == accel.ClassPooling {
		d.ClearOutput(outN * outN)
	}

	err = d.forEachCommand(op, code, n, func(cmd accel.Command) error {
		return d.Issue(cmd)
	})
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", op, d.name, err)
	}

	return tensor.FromSlice(outN, d.ReadOutput(outN*outN))
}

func (d *driverImpl) checkInputs(
	op accel.Opcode,
	inputs []*tensor.Tensor,
) (int, error) {
	maxInputs := d.desc.InputCount(op)
	if len(inputs) == 0 || len(inputs) > maxInputs {
		return 0, fmt.Errorf("%w: %s takes 1..%d inputs on %s, got %d",
			accel.ErrOperandCount, op, maxInputs, d.name, len(inputs))
	}

	for i, t := range inputs {
		if t == nil {
			return 0, fmt.Errorf("%w: input %d of %s is nil",
				accel.ErrOperandCount, i, op)
		}
	}

	n := inputs[0].N
	for i, t := range inputs {
		if t.N != n {
			return 0, fmt.Errorf("input %d has side %d, input 0 has side %d",
				i, t.N, n)
		}
	}

	if err := d.desc.CheckDim(n); err != nil {
		return 0, err
	}

	return n, nil
}

func (d *driverImpl) loadOperands(
	op accel.Opcode,
	n int,
	inputs []*tensor.Tensor,
) error {
	var zero *tensor.Tensor

	for i := 0; i < d.desc.InputCount(op); i++ {
		var t *tensor.Tensor
		if i < len(inputs) {
			t = inputs[i]
		} else {
			if zero == nil {
				zero = tensor.New(n)
			}
			t = zero
		}

		if err := d.LoadTensor(accel.InputWindows[i], t); err != nil {
			return err
		}
	}

	return nil
}

// forEachCommand yields the commands of one operation in issue order and
// stops at the first error.
func (d *driverImpl) forEachCommand(
	op accel.Opcode,
	code uint8,
	n int,
	fn func(accel.Command) error,
) error {
	if d.desc.Dispatch == accel.DispatchWholeTensor {
		return fn(accel.TensorCommand(op, code))
	}

	switch op.Class() {
	case accel.ClassArithmetic:
		for i := 0; i < n*n; i++ {
			if err := fn(accel.WindowCommand(op, code, uint32(i), uint32(i))); err != nil {
				return err
			}
		}
	case accel.ClassPooling:
		outN := n / 2
		for r := 0; r < outN; r++ {
			for c := 0; c < outN; c++ {
				base := uint32(2*r*n + 2*c)
				out := uint32(r*outN + c)
				if err := fn(accel.WindowCommand(op, code, base, out)); err != nil {
					return err
				}
			}
		}
	case accel.ClassElementwise:
		for w := 0; w < tensor.WordCount(n*n); w++ {
			if err := fn(accel.WordCommand(op, code, uint32(w))); err != nil {
				return err
			}
		}
	}

	return nil
}

// CommandCount returns how many commands Run issues for op on a tensor of
// side n.
func CommandCount(desc *accel.Descriptor, op accel.Opcode, n int) int {
	if desc.Dispatch == accel.DispatchWholeTensor {
		return 1
	}

	switch op.Class() {
	case accel.ClassArithmetic:
		return n * n
	case accel.ClassPooling:
		return (n / 2) * (n / 2)
	default:
		return tensor.WordCount(n * n)
	}
}
