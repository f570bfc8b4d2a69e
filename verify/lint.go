package verify

import (
	"errors"
	"fmt"

	"github.com/sarchlab/tensorbench/accel"
)

// RunLint performs static checks on the plans. It never touches a device.
// Returns a list of issues found, or empty list if no issues.
func RunLint(plans []Plan) []Issue {
	var issues []Issue

	names := make(map[string]bool)
	for _, p := range plans {
		if names[p.Name] {
			issues = append(issues, structIssue(p.Name, "",
				"accelerator listed more than once", nil))
		}
		names[p.Name] = true

		issues = append(issues, lintPlan(p)...)
	}

	return issues
}

func structIssue(
	name, op, msg string,
	details map[string]interface{},
) Issue {
	return Issue{
		Type:        IssueStruct,
		Accelerator: name,
		Op:          op,
		Message:     msg,
		Details:     details,
	}
}

func lintPlan(p Plan) []Issue {
	var issues []Issue

	desc := p.Descriptor
	if desc == nil {
		return []Issue{structIssue(p.Name, "", "no accelerator descriptor", nil)}
	}

	if err := desc.Validate(); err != nil {
		issues = append(issues, structIssue(p.Name, "",
			fmt.Sprintf("invalid descriptor: %v", err), nil))
	}

	if err := desc.CheckDim(p.Dim); err != nil {
		var dimErr *accel.DimensionError
		details := map[string]interface{}{}
		if errors.As(err, &dimErr) {
			details["dim"] = dimErr.N
			details["max_dim"] = dimErr.Max
		}
		issues = append(issues, structIssue(p.Name, "", err.Error(), details))
	}

	if len(p.Ops) == 0 {
		issues = append(issues, structIssue(p.Name, "", "no operations to verify", nil))
	}

	seen := make(map[accel.Opcode]bool)
	for _, op := range p.Ops {
		issues = append(issues, lintOp(p, op, seen)...)
	}

	return issues
}

func lintOp(p Plan, op accel.Opcode, seen map[accel.Opcode]bool) []Issue {
	var issues []Issue

	if seen[op] {
		issues = append(issues, structIssue(p.Name, op.String(),
			"operation listed more than once", nil))
	}
	seen[op] = true

	desc := p.Descriptor
	if !desc.Supports(op) {
		return append(issues, structIssue(p.Name, op.String(),
			fmt.Sprintf("%s does not implement %s", desc.Name, op),
			map[string]interface{}{"supported": desc.Ops()}))
	}

	switch op.Class() {
	case accel.ClassPooling:
		if p.Dim%2 != 0 {
			issues = append(issues, structIssue(p.Name, op.String(),
				fmt.Sprintf("2x2 stride-2 pooling needs an even side, got %d", p.Dim),
				map[string]interface{}{"dim": p.Dim}))
		}
	case accel.ClassElementwise:
		if desc.Curve(op) == nil {
			issues = append(issues, structIssue(p.Name, op.String(),
				"no transfer curve to check against", nil))
		}
	}

	return issues
}
