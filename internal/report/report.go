// Package report collects the outcome of reconciliation passes: which
// VMs were processed, what each pass did, what it warned about, and
// whether it failed. A pass failure never aborts the run, so the run
// report is how callers learn that something went wrong at all.
package report

import (
	"fmt"
	"strings"
	"time"
)

// Outcome classifies how a pass ended.
type Outcome string

const (
	// OutcomeSucceeded means the pass converged the VM.
	OutcomeSucceeded Outcome = "Succeeded"

	// OutcomeFailed means the pass aborted before converging.
	OutcomeFailed Outcome = "Failed"

	// OutcomeSkipped means the pass never ran, e.g. the store has no
	// entry for the requested name.
	OutcomeSkipped Outcome = "Skipped"
)

// Pass is the record of one VM's reconciliation pass.
type Pass struct {
	// Name is the VM the pass ran for.
	Name string

	// Outcome classifies how the pass ended.
	Outcome Outcome

	// Err is the failure that aborted the pass, nil on success.
	Err error

	// Warnings are the non-fatal findings reported during the pass.
	Warnings []string

	// Started and Finished bound the pass in wall-clock time.
	Started  time.Time
	Finished time.Time
}

// Failed reports whether the pass aborted.
func (p *Pass) Failed() bool { return p.Outcome == OutcomeFailed }

// Warn records a non-fatal finding on the pass.
func (p *Pass) Warn(format string, args ...any) {
	p.Warnings = append(p.Warnings, fmt.Sprintf(format, args...))
}

// Run aggregates the passes of one engine invocation.
type Run struct {
	Passes []*Pass
}

// Begin starts a pass record for a VM.
func (r *Run) Begin(name string) *Pass {
	p := &Pass{Name: name, Started: time.Now()}
	r.Passes = append(r.Passes, p)
	return p
}

// End closes a pass record with its outcome. A nil error marks the
// pass succeeded.
func (p *Pass) End(err error) {
	p.Finished = time.Now()
	p.Err = err
	if err != nil {
		p.Outcome = OutcomeFailed
		return
	}
	p.Outcome = OutcomeSucceeded
}

// Skip closes a pass record without having run it.
func (p *Pass) Skip(err error) {
	p.Finished = time.Now()
	p.Err = err
	p.Outcome = OutcomeSkipped
}

// Failed reports whether any pass in the run failed or was skipped
// with an error. This drives the process exit code.
func (r *Run) Failed() bool {
	for _, p := range r.Passes {
		if p.Err != nil {
			return true
		}
	}
	return false
}

// Summary renders the run as human-readable lines, one per pass, with
// warnings indented under their pass.
func (r *Run) Summary() string {
	var b strings.Builder
	for _, p := range r.Passes {
		switch {
		case p.Err != nil:
			fmt.Fprintf(&b, "%s: %s: %v\n", p.Name, strings.ToLower(string(p.Outcome)), p.Err)
		default:
			fmt.Fprintf(&b, "%s: %s\n", p.Name, strings.ToLower(string(p.Outcome)))
		}
		for _, w := range p.Warnings {
			fmt.Fprintf(&b, "  warning: %s\n", w)
		}
	}
	return b.String()
}
