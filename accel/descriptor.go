package accel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// DefaultBase is the bus address the tensor peripherals are mapped at.
const DefaultBase uint64 = 0x90000000

// DefaultMaxDim is the largest tensor side the on-device storage can hold.
const DefaultMaxDim = 28

// Layout holds the register offsets of a peripheral.
type Layout struct {
	Ctrl      uint32
	Status    uint32
	Dim       uint32
	BaseIndex uint32
	OutIndex  uint32
	WordIndex uint32

	// Windows holds the offsets of TENSOR_A, TENSOR_B, TENSOR_C and
	// TENSOR_R, indexed by Window.
	Windows [4]uint32

	// WindowBytes is the size of every tensor window.
	WindowBytes uint32
}

// DefaultLayout returns the register map shared by all variants.
func DefaultLayout() Layout {
	return Layout{
		Ctrl:        0x08,
		Status:      0x0C,
		Dim:         0x10,
		BaseIndex:   0x14,
		OutIndex:    0x18,
		WordIndex:   0x1C,
		Windows:     [4]uint32{0x1000, 0x2000, 0x3000, 0x4000},
		WindowBytes: 0x1000,
	}
}

// WindowOffset returns the offset of a tensor window.
func (l Layout) WindowOffset(w Window) uint32 {
	return l.Windows[w]
}

// WindowWords returns how many packed words fit in one window.
func (l Layout) WindowWords() int {
	return int(l.WindowBytes / 4)
}

// Span returns the number of bytes the register window covers.
func (l Layout) Span() uint32 {
	end := l.WordIndex + 4
	for _, off := range l.Windows {
		if off+l.WindowBytes > end {
			end = off + l.WindowBytes
		}
	}

	return end
}

// Dispatch tells how many commands an operation takes.
type Dispatch int

const (
	// DispatchPerElement issues one command per output element (arithmetic
	// and pooling) or per packed word (elementwise).
	DispatchPerElement Dispatch = iota

	// DispatchWholeTensor issues a single command for the whole tensor.
	DispatchWholeTensor
)

func (d Dispatch) String() string {
	switch d {
	case DispatchPerElement:
		return "per-element"
	case DispatchWholeTensor:
		return "whole-tensor"
	default:
		return fmt.Sprintf("dispatch(%d)", int(d))
	}
}

// ParseDispatch parses "per-element" or "whole-tensor". The empty string
// selects per-element.
func ParseDispatch(s string) (Dispatch, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "per-element", "element":
		return DispatchPerElement, nil
	case "whole-tensor", "tensor", "whole":
		return DispatchWholeTensor, nil
	default:
		return 0, fmt.Errorf("unknown dispatch %q", s)
	}
}

// Rounding selects how the average pooling datapath divides by four.
type Rounding int

const (
	// RoundNearest adds 2 to non-negative sums and 1 to negative sums before
	// the arithmetic shift.
	RoundNearest Rounding = iota

	// RoundTruncate shifts the raw sum, rounding toward negative infinity.
	RoundTruncate
)

func (r Rounding) String() string {
	switch r {
	case RoundNearest:
		return "nearest"
	case RoundTruncate:
		return "truncate"
	default:
		return fmt.Sprintf("rounding(%d)", int(r))
	}
}

// ParseRounding parses "nearest" or "truncate". The empty string selects
// nearest.
func ParseRounding(s string) (Rounding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nearest":
		return RoundNearest, nil
	case "truncate", "shift":
		return RoundTruncate, nil
	default:
		return 0, fmt.Errorf("unknown rounding %q", s)
	}
}

// Descriptor describes one accelerator variant.
type Descriptor struct {
	Name   string
	Base   uint64
	Layout Layout
	MaxDim int

	// Opcodes maps the primitives the variant implements to the code
	// written into CTRL[5:1].
	Opcodes map[Opcode]uint8

	// Operands is the number of input windows the arithmetic datapath
	// consumes, starting at TENSOR_A.
	Operands int

	Dispatch Dispatch

	// Curves holds the transfer function of every elementwise opcode.
	Curves map[Opcode]*TransferCurve
}

func standardCodes(ops ...Opcode) map[Opcode]uint8 {
	codes := make(map[Opcode]uint8, len(ops))
	for _, op := range ops {
		codes[op] = uint8(op)
	}

	return codes
}

func newDescriptor(name string, operands int, ops ...Opcode) Descriptor {
	return Descriptor{
		Name:     name,
		Base:     DefaultBase,
		Layout:   DefaultLayout(),
		MaxDim:   DefaultMaxDim,
		Opcodes:  standardCodes(ops...),
		Operands: operands,
		Dispatch: DispatchPerElement,
	}
}

// ArithmeticUnit describes the elementwise add/subtract peripheral. Its
// datapath combines TENSOR_A, TENSOR_B and TENSOR_C.
func ArithmeticUnit() Descriptor {
	return newDescriptor("tensor_arithmetic", 3, OpAdd, OpSub)
}

// PoolingUnit describes the 2x2 stride-2 pooling peripheral.
func PoolingUnit() Descriptor {
	return newDescriptor("pooling", 1, OpMaxPool, OpAvgPool)
}

// ActivationUnit describes the sigmoid/ReLU peripheral.
func ActivationUnit() Descriptor {
	d := newDescriptor("sigmoid", 1, OpSigmoid, OpReLU)
	d.Curves = DefaultCurves()

	return d
}

// UnifiedUnit describes a peripheral implementing every primitive.
func UnifiedUnit() Descriptor {
	d := newDescriptor("unified", 3, AllOpcodes...)
	d.Curves = DefaultCurves()

	return d
}

// DefaultCurves returns the sigmoid and ReLU transfer curves.
func DefaultCurves() map[Opcode]*TransferCurve {
	return map[Opcode]*TransferCurve{
		OpSigmoid: LogisticCurve(1),
		OpReLU:    ReLUCurve(),
	}
}

// Preset returns a descriptor by variant name.
func Preset(name string) (Descriptor, error) {
	switch strings.ToLower(name) {
	case "arithmetic", "tensor_arithmetic":
		return ArithmeticUnit(), nil
	case "pooling":
		return PoolingUnit(), nil
	case "activation", "sigmoid":
		return ActivationUnit(), nil
	case "unified", "":
		return UnifiedUnit(), nil
	default:
		return Descriptor{}, fmt.Errorf("unknown accelerator preset %q", name)
	}
}

// Supports reports whether the variant implements op.
func (d *Descriptor) Supports(op Opcode) bool {
	_, ok := d.Opcodes[op]
	return ok
}

// Code returns the CTRL opcode field for op.
func (d *Descriptor) Code(op Opcode) (uint8, error) {
	code, ok := d.Opcodes[op]
	if !ok {
		return 0, fmt.Errorf("%w: %s on %s", ErrUnsupportedOpcode, op, d.Name)
	}

	return code, nil
}

// Decode returns the opcode whose CTRL field is code.
func (d *Descriptor) Decode(code uint8) (Opcode, bool) {
	for op, c := range d.Opcodes {
		if c == code {
			return op, true
		}
	}

	return 0, false
}

// Ops returns the supported opcodes in opcode order.
func (d *Descriptor) Ops() []Opcode {
	ops := make([]Opcode, 0, len(d.Opcodes))
	for op := range d.Opcodes {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })

	return ops
}

// CheckDim rejects tensor sides outside [1, MaxDim].
func (d *Descriptor) CheckDim(n int) error {
	if n < 1 || n > d.MaxDim {
		return &DimensionError{N: n, Max: d.MaxDim}
	}

	return nil
}

// Curve returns the transfer curve of an elementwise opcode, or nil.
func (d *Descriptor) Curve(op Opcode) *TransferCurve {
	return d.Curves[op]
}

// InputCount returns how many input tensors an operation reads.
func (d *Descriptor) InputCount(op Opcode) int {
	if op.Class() == ClassArithmetic {
		return d.Operands
	}
	return 1
}

// Validate checks the descriptor for internal consistency.
func (d *Descriptor) Validate() error {
	var errs []error

	if d.MaxDim < 1 || uint32(d.MaxDim) > DimMask {
		errs = append(errs, fmt.Errorf("max dim %d does not fit DIM[7:0]", d.MaxDim))
	}

	need := (d.MaxDim*d.MaxDim + 3) / 4
	if d.Layout.WindowWords() < need {
		errs = append(errs, fmt.Errorf("window holds %d words, N=%d needs %d",
			d.Layout.WindowWords(), d.MaxDim, need))
	}

	for op, code := range d.Opcodes {
		if uint32(code) > CtrlOpcodeMask {
			errs = append(errs, fmt.Errorf("%s code %d does not fit CTRL[5:1]", op, code))
		}
		if op.Class() == ClassElementwise && d.Curves[op] == nil {
			errs = append(errs, fmt.Errorf("%s has no transfer curve", op))
		}
	}

	if d.Operands < 1 || d.Operands > len(InputWindows) {
		errs = append(errs, fmt.Errorf("operand count %d outside 1..%d",
			d.Operands, len(InputWindows)))
	}

	errs = append(errs, d.checkOverlap()...)

	return errors.Join(errs...)
}

func (d *Descriptor) checkOverlap() []error {
	var errs []error

	l := d.Layout
	for i := 0; i < len(l.Windows); i++ {
		if l.Windows[i] < l.WordIndex+4 {
			errs = append(errs, fmt.Errorf("%s overlaps the control registers",
				Window(i).Name()))
		}
		for j := i + 1; j < len(l.Windows); j++ {
			lo, hi := l.Windows[i], l.Windows[j]
			if lo > hi {
				lo, hi = hi, lo
			}
			if hi < lo+l.WindowBytes {
				errs = append(errs, fmt.Errorf("%s overlaps %s",
					Window(i).Name(), Window(j).Name()))
			}
		}
	}

	return errs
}
