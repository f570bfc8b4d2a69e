// Package verify checks tensor accelerators against a software reference.
//
// Verification runs in two stages:
//
// 1. Lint (lint.go): structural checks on every plan before any register is
// touched. Dimension limits, opcode support, pooling on odd sides and
// missing transfer curves are reported as STRUCT issues.
//
// 2. Run (verify.go): for every opcode of a plan, deterministic operands are
// generated, the accelerator session runs them, the oracle (oracle.go)
// computes the expected tensor and the two are compared element by element.
//
// # Operands
//
// Inputs are closed-form functions of the element position so runs are
// reproducible:
//
//   - add, sub: A[r,c] = 7r + 3c - 64, B = A - 50, C = A + 20
//   - maxpool, avgpool: A[r,c] = 7r + 3c - 64
//   - sigmoid, relu: word w carries 4w-128, 4w-112, 4w-96, 4w-80
//
// A plan may replace A with another Pattern; B and C follow A.
//
// # Failures
//
// A timeout fails the operation and faults the driver; every later
// operation on the same accelerator is recorded as skipped. Accelerators
// are independent, so a fault on one never stops the others. A run fails
// when any operation mismatches, times out, is skipped or errors, or when
// lint reports an issue.
package verify

import (
	"errors"
	"log/slog"

	"github.com/sarchlab/tensorbench/accel"
	"github.com/sarchlab/tensorbench/api"
	"github.com/sarchlab/tensorbench/tensor"
)

// IssueType categorizes lint issues
type IssueType string

const (
	IssueStruct IssueType = "STRUCT" // Plan cannot run on the accelerator
)

// Issue represents a single lint issue
type Issue struct {
	Type        IssueType
	Accelerator string
	Op          string
	Message     string
	Details     map[string]interface{}
}

// Plan lists what to verify on one accelerator.
type Plan struct {
	Name       string
	Descriptor *accel.Descriptor
	Dim        int
	Ops        []accel.Opcode
	Pattern    Pattern
}

// OpResult is the outcome of one operation.
type OpResult struct {
	Accelerator string
	Op          accel.Opcode
	Dim         int

	Compared      int
	Mismatches    int
	FirstMismatch int

	Timeout bool
	Skipped bool
	Err     error

	Commands int
	Polls    int

	Inputs []*tensor.Tensor
	HW     *tensor.Tensor
	SW     *tensor.Tensor
}

// Failed reports whether the operation did not verify.
func (r *OpResult) Failed() bool {
	return r.Err != nil || r.Mismatches > 0
}

// Status returns a one-word summary of the result.
func (r *OpResult) Status() string {
	switch {
	case r.Timeout:
		return "TIMEOUT"
	case r.Skipped:
		return "SKIPPED"
	case r.Err != nil:
		return "ERROR"
	case r.Mismatches > 0:
		return "MISMATCH"
	default:
		return "PASS"
	}
}

// Verifier runs the operations of one plan on one driver.
type Verifier struct {
	plan   Plan
	driver api.Driver
}

// NewVerifier creates a verifier.
func NewVerifier(plan Plan, driver api.Driver) *Verifier {
	return &Verifier{plan: plan, driver: driver}
}

// Run verifies every operation of the plan in order.
func (v *Verifier) Run() []OpResult {
	results := make([]OpResult, 0, len(v.plan.Ops))
	for _, op := range v.plan.Ops {
		results = append(results, v.RunOp(op))
	}

	return results
}

// RunOp verifies one operation.
func (v *Verifier) RunOp(op accel.Opcode) OpResult {
	desc := v.driver.Descriptor()
	res := OpResult{
		Accelerator:   v.plan.Name,
		Op:            op,
		Dim:           v.plan.Dim,
		FirstMismatch: -1,
	}

	if err := desc.CheckDim(v.plan.Dim); err != nil {
		res.Err = err
		return res
	}

	res.Inputs = Inputs(desc, op, v.plan.Dim, v.plan.Pattern)

	sw, err := Reference(desc, op, res.Inputs...)
	if err != nil {
		res.Err = err
		return res
	}
	res.SW = sw

	before := v.driver.Stats()
	hw, err := v.driver.Run(op, res.Inputs...)
	after := v.driver.Stats()
	res.Commands = after.Commands - before.Commands
	res.Polls = after.Polls - before.Polls

	if err != nil {
		res.Err = err
		res.Timeout = errors.Is(err, accel.ErrTimeout)
		res.Skipped = errors.Is(err, accel.ErrDeviceFaulted)

		slog.Error("operation failed",
			"Accelerator", v.plan.Name,
			"Op", op.String(),
			"Error", err,
		)

		return res
	}

	res.HW = hw
	res.Compared = sw.Len()
	res.Mismatches, res.FirstMismatch = Compare(hw, sw)

	accel.Trace("Verify",
		"Accelerator", v.plan.Name,
		"Op", op.String(),
		"Dim", v.plan.Dim,
		"Compared", res.Compared,
		"Mismatches", res.Mismatches,
		"Commands", res.Commands,
		"Polls", res.Polls,
	)

	return res
}
