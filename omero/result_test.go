package omero

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestReport(t *testing.T) {
	SetLogMode(SilentMode)
	defer SetLogMode(InfoMode)

	r := NewReport("calibrate")
	r.Succeed("user-1", "updated %d images", 3)
	r.Skip("user-2", "no dataset")
	r.Fail("user-3", fmt.Errorf("dataset lookup: %w", ErrNotFound))
	r.Fail("user-4", errors.New("connection refused"))
	r.Finish("Calibrated %d users", 1)

	succeeded, skipped, failed := r.Counts()
	if succeeded != 1 || skipped != 2 || failed != 1 {
		t.Errorf("bad counts: %d %d %d", succeeded, skipped, failed)
	}
	if !r.Failed() {
		t.Errorf("report should be failed")
	}
	err := r.Err()
	if err == nil || !strings.Contains(err.Error(), "user-4: connection refused") {
		t.Errorf("bad joined error: %v", err)
	}
	if !strings.Contains(r.String(), "Calibrated 1 users") {
		t.Errorf("report string missing message:\n%s", r.String())
	}
}

func TestReportNoFailures(t *testing.T) {
	r := NewReport("hello")
	r.Add(Result{Unit: "image 1", Outcome: Success})
	if r.Failed() || r.Err() != nil {
		t.Errorf("report without failures should not error")
	}
}
