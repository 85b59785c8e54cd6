package omero

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Outcome classifies how a unit of work ended.
type Outcome uint8

const (
	Success Outcome = iota
	Skipped
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "success":
		return Success, nil
	case "skipped":
		return Skipped, nil
	case "failed":
		return Failed, nil
	}
	return Failed, fmt.Errorf("unknown outcome %q", s)
}

// Result is the outcome of one unit of work: a user, an image or an output sink.
type Result struct {
	Unit    string
	Outcome Outcome
	Message string
	Err     error
}

func (r Result) String() string {
	s := fmt.Sprintf("[%s] %s", r.Outcome, r.Unit)
	if r.Message != "" {
		s += ": " + r.Message
	}
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}

// Report aggregates the results of one script run.
type Report struct {
	ID       string
	Script   string
	Started  time.Time
	Finished time.Time

	// Message is the one-line summary of the run, e.g. "Exported 12 shapes".
	Message string
	Results []Result
}

// NewReport starts a report for the named script.
func NewReport(script string) *Report {
	return &Report{Script: script, Started: time.Now()}
}

// Add appends results to the report.
func (r *Report) Add(results ...Result) {
	r.Results = append(r.Results, results...)
}

// Succeed records and logs a successful unit.
func (r *Report) Succeed(unit, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	Infof("%s: %s\n", unit, msg)
	r.Add(Result{Unit: unit, Outcome: Success, Message: msg})
}

// Skip records and logs a unit that had nothing to do.
func (r *Report) Skip(unit, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	Warningf("%s skipped: %s\n", unit, msg)
	r.Add(Result{Unit: unit, Outcome: Skipped, Message: msg})
}

// Fail records and logs a failed unit.  A "not found" error is recorded as
// skipped instead.
func (r *Report) Fail(unit string, err error) {
	if errors.Is(err, ErrNotFound) {
		r.Skip(unit, "%v", err)
		return
	}
	Errorf("%s failed: %v\n", unit, err)
	r.Add(Result{Unit: unit, Outcome: Failed, Err: err})
}

// Merge appends the results of another report.
func (r *Report) Merge(other *Report) {
	if other != nil {
		r.Results = append(r.Results, other.Results...)
	}
}

// Finish stamps the end time and sets the summary message.
func (r *Report) Finish(format string, args ...interface{}) {
	r.Finished = time.Now()
	if format != "" {
		r.Message = fmt.Sprintf(format, args...)
	}
}

// Counts returns the number of results per outcome.
func (r *Report) Counts() (succeeded, skipped, failed int) {
	for _, res := range r.Results {
		switch res.Outcome {
		case Success:
			succeeded++
		case Skipped:
			skipped++
		case Failed:
			failed++
		}
	}
	return
}

// Failed returns true if any unit failed.
func (r *Report) Failed() bool {
	_, _, failed := r.Counts()
	return failed > 0
}

// Err joins the errors of all failed units or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Outcome == Failed && res.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.Unit, res.Err))
		}
	}
	return errors.Join(errs...)
}

// String returns a multi-line human readable report.
func (r *Report) String() string {
	var sb strings.Builder
	succeeded, skipped, failed := r.Counts()
	fmt.Fprintf(&sb, "%s: %d succeeded, %d skipped, %d failed", r.Script, succeeded, skipped, failed)
	if !r.Finished.IsZero() {
		fmt.Fprintf(&sb, " in %s", r.Finished.Sub(r.Started).Round(time.Millisecond))
	}
	sb.WriteString("\n")
	for _, res := range r.Results {
		sb.WriteString("  " + res.String() + "\n")
	}
	if r.Message != "" {
		sb.WriteString(r.Message + "\n")
	}
	return sb.String()
}
