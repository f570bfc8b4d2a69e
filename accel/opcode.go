package accel

import (
	"fmt"
	"strings"
)

// Opcode selects the primitive a command runs.
type Opcode uint8

const (
	OpAdd Opcode = iota
	OpSub
	OpMaxPool
	OpAvgPool
	OpSigmoid
	OpReLU
)

// AllOpcodes lists every primitive in opcode order.
var AllOpcodes = []Opcode{OpAdd, OpSub, OpMaxPool, OpAvgPool, OpSigmoid, OpReLU}

var opcodeNames = map[Opcode]string{
	OpAdd:     "add",
	OpSub:     "sub",
	OpMaxPool: "maxpool",
	OpAvgPool: "avgpool",
	OpSigmoid: "sigmoid",
	OpReLU:    "relu",
}

var opcodeAliases = map[string]Opcode{
	"subtract": OpSub,
	"max":      OpMaxPool,
	"max-pool": OpMaxPool,
	"avg":      OpAvgPool,
	"avg-pool": OpAvgPool,
	"sig":      OpSigmoid,
}

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// ParseOpcode accepts the canonical names and the short forms used by the
// firmware ("max", "avg", "sig", ...).
func ParseOpcode(s string) (Opcode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for op, name := range opcodeNames {
		if name == s {
			return op, nil
		}
	}
	if op, ok := opcodeAliases[s]; ok {
		return op, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnsupportedOpcode, s)
}

// Class groups opcodes by how they address the tensor windows.
type Class int

const (
	ClassArithmetic Class = iota
	ClassPooling
	ClassElementwise
)

// Class returns the addressing class of the opcode.
func (op Opcode) Class() Class {
	switch op {
	case OpAdd, OpSub:
		return ClassArithmetic
	case OpMaxPool, OpAvgPool:
		return ClassPooling
	default:
		return ClassElementwise
	}
}

// OutputSide returns the side of the output tensor for an input of side n.
func (op Opcode) OutputSide(n int) int {
	if op.Class() == ClassPooling {
		return n / 2
	}
	return n
}

// Command is one request to the accelerator. For arithmetic and pooling
// opcodes Primary is the base element index and Secondary the output element
// index. For elementwise opcodes Primary is the packed word index.
type Command struct {
	Opcode    Opcode
	Code      uint8
	Primary   uint32
	Secondary uint32
	Whole     bool
}

// WindowCommand creates a pooling or arithmetic command.
func WindowCommand(op Opcode, code uint8, base, out uint32) Command {
	return Command{Opcode: op, Code: code, Primary: base, Secondary: out}
}

// WordCommand creates an elementwise command over one packed word.
func WordCommand(op Opcode, code uint8, word uint32) Command {
	return Command{Opcode: op, Code: code, Primary: word}
}

// TensorCommand creates a command that covers the whole tensor with a single
// start strobe.
func TensorCommand(op Opcode, code uint8) Command {
	return Command{Opcode: op, Code: code, Whole: true}
}

// CtrlWord returns the CTRL value that starts the command.
func (c Command) CtrlWord() uint32 {
	return (uint32(c.Code)&CtrlOpcodeMask)<<CtrlOpcodeLSB | CtrlStart
}

// DecodeCtrl splits a CTRL value into the opcode field and the start bit.
func DecodeCtrl(v uint32) (code uint8, start bool) {
	return uint8(v >> CtrlOpcodeLSB & CtrlOpcodeMask), v&CtrlStart != 0
}

func (c Command) String() string {
	switch {
	case c.Whole:
		return fmt.Sprintf("%s(tensor)", c.Opcode)
	case c.Opcode.Class() == ClassElementwise:
		return fmt.Sprintf("%s(word=%d)", c.Opcode, c.Primary)
	default:
		return fmt.Sprintf("%s(base=%d, out=%d)", c.Opcode, c.Primary, c.Secondary)
	}
}
