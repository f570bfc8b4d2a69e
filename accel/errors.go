package accel

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the busy bit does not clear within the poll
	// budget.
	ErrTimeout = errors.New("accelerator busy timeout")

	// ErrDimensionOutOfRange is returned when a tensor side is outside
	// [1, MaxDim]. It is always reported before any register is written.
	ErrDimensionOutOfRange = errors.New("tensor dimension out of range")

	// ErrDeviceFaulted is returned by a driver that has already seen a
	// timeout. The device state is unknown, so no further access is made.
	ErrDeviceFaulted = errors.New("accelerator faulted")

	// ErrUnsupportedOpcode is returned for an opcode the accelerator does not
	// implement.
	ErrUnsupportedOpcode = errors.New("unsupported opcode")

	// ErrOperandCount is returned when an operation receives more input
	// tensors than the accelerator has operand windows, or none at all.
	ErrOperandCount = errors.New("wrong number of operands")
)

// TimeoutError describes a command whose busy bit never cleared.
type TimeoutError struct {
	Command Command
	Polls   int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s still busy after %d polls",
		ErrTimeout, e.Command, e.Polls)
}

// Is makes errors.Is(err, ErrTimeout) hold.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// DimensionError describes a rejected tensor side.
type DimensionError struct {
	N   int
	Max int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: N=%d, want 1..%d", ErrDimensionOutOfRange, e.N, e.Max)
}

// Is makes errors.Is(err, ErrDimensionOutOfRange) hold.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionOutOfRange
}
