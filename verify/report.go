package verify

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/tensorbench/api"
	"github.com/sarchlab/tensorbench/fixed"
	"github.com/sarchlab/tensorbench/tensor"
)

// DefaultSampleWords is how many packed words of every operation are printed
// in the sample section.
const DefaultSampleWords = 2

// Session pairs a plan with the driver of its accelerator.
type Session struct {
	Plan   Plan
	Driver api.Driver
}

// VerificationReport represents a complete verification report
type VerificationReport struct {
	LintIssues []Issue
	Results    []OpResult

	// SampleWords is how many packed words of each operation WriteReport
	// prints as IN/HW/SW rows.
	SampleWords int
}

// GenerateReport lints every plan, then runs the plans without issues.
func GenerateReport(sessions []Session) *VerificationReport {
	report := &VerificationReport{SampleWords: DefaultSampleWords}

	plans := make([]Plan, 0, len(sessions))
	for _, s := range sessions {
		plans = append(plans, s.Plan)
	}
	report.LintIssues = RunLint(plans)

	blocked := make(map[string]bool)
	for _, issue := range report.LintIssues {
		blocked[issue.Accelerator] = true
	}

	for _, s := range sessions {
		if blocked[s.Plan.Name] {
			continue
		}

		v := NewVerifier(s.Plan, s.Driver)
		report.Results = append(report.Results, v.Run()...)
	}

	return report
}

// Mismatches returns the total mismatch count.
func (r *VerificationReport) Mismatches() int {
	n := 0
	for _, res := range r.Results {
		n += res.Mismatches
	}

	return n
}

// Failed reports whether lint found an issue or any operation failed.
func (r *VerificationReport) Failed() bool {
	if len(r.LintIssues) > 0 {
		return true
	}

	for i := range r.Results {
		if r.Results[i].Failed() {
			return true
		}
	}

	return false
}

// ExitCode returns the process status for the report.
func (r *VerificationReport) ExitCode() int {
	if r.Failed() {
		return 1
	}

	return 0
}

// WriteReport writes a formatted report to a writer
func (r *VerificationReport) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "TENSOR ACCELERATOR VERIFICATION REPORT")
	fmt.Fprintln(w, separator)

	// STAGE 1: LINT
	fmt.Fprintln(w, "\nSTAGE 1: STATIC LINT CHECKS")
	if len(r.LintIssues) == 0 {
		fmt.Fprintln(w, "No lint issues found")
	} else {
		r.writeIssues(w)
	}

	// STAGE 2: RUN
	fmt.Fprintln(w, "\nSTAGE 2: HARDWARE VS REFERENCE")
	r.writeResults(w)

	if r.SampleWords > 0 {
		fmt.Fprintln(w, "\nSAMPLES")
		for i := range r.Results {
			r.writeSamples(w, &r.Results[i])
		}
	}

	// STAGE 3: SUMMARY
	fmt.Fprintln(w, "\n"+separator)
	failed := 0
	for i := range r.Results {
		if r.Results[i].Failed() {
			failed++
		}
	}
	fmt.Fprintf(w, "Operations: %d run, %d failed, %d mismatching elements\n",
		len(r.Results), failed, r.Mismatches())
	fmt.Fprintf(w, "Lint: %d issues\n", len(r.LintIssues))

	if r.Failed() {
		fmt.Fprintln(w, "RESULT: FAIL")
	} else {
		fmt.Fprintln(w, "RESULT: PASS")
	}
	fmt.Fprintln(w, separator)
}

func (r *VerificationReport) writeIssues(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Type", "Accelerator", "Op", "Message"})
	for _, issue := range r.LintIssues {
		t.AppendRow(table.Row{issue.Type, issue.Accelerator, issue.Op, issue.Message})
	}
	t.Render()
}

func (r *VerificationReport) writeResults(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{
		"Accelerator", "Op", "N", "Commands", "Polls",
		"Compared", "Mismatches", "Status",
	})

	for i := range r.Results {
		res := &r.Results[i]
		t.AppendRow(table.Row{
			res.Accelerator, res.Op, res.Dim, res.Commands, res.Polls,
			res.Compared, res.Mismatches, res.Status(),
		})
	}
	t.Render()

	for i := range r.Results {
		res := &r.Results[i]
		if res.Err != nil {
			fmt.Fprintf(w, "  %s/%s: %v\n", res.Accelerator, res.Op, res.Err)
		}
	}
}

// writeSamples prints the first packed words of an operation, one Q0.7 row
// per tensor, starting at the word holding the first mismatch if any.
func (r *VerificationReport) writeSamples(w io.Writer, res *OpResult) {
	if res.HW == nil || res.SW == nil {
		return
	}

	start := 0
	if res.FirstMismatch > 0 {
		start = res.FirstMismatch / tensor.LanesPerWord
	}

	fmt.Fprintf(w, "%s/%s (N=%d):\n", res.Accelerator, res.Op, res.Dim)

	in := res.Inputs[0].Words()
	hw := res.HW.Words()
	sw := res.SW.Words()
	for k := start; k < start+r.SampleWords && k < len(sw) && k < len(hw); k++ {
		if res.Op.OutputSide(res.Dim) == res.Dim && k < len(in) {
			fmt.Fprintf(w, "  IN :%s\n", formatWord(in[k]))
		}
		fmt.Fprintf(w, "  HW :%s\n", formatWord(hw[k]))
		fmt.Fprintf(w, "  SW :%s\n", formatWord(sw[k]))
	}
}

func formatWord(word uint32) string {
	var b strings.Builder
	for j := 0; j < tensor.LanesPerWord; j++ {
		b.WriteString(" ")
		b.WriteString(fixed.Format(fixed.Q07(tensor.Lane(word, j))))
	}

	return b.String()
}

// SaveReportToFile saves the report to a file
func (r *VerificationReport) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.WriteReport(file)
	return nil
}
