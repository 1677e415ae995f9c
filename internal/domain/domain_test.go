package domain

import (
	"testing"
	"time"
)

func TestNewNodeRejectsEmptyHostname(t *testing.T) {
	if _, err := NewNode("", nil, 1, NodeStarted, time.Now()); err == nil {
		t.Fatal("expected error for empty hostname, got nil")
	}
}

func TestNewNodeRejectsNonPositiveParallelism(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewNode("host-a", nil, n, NodeStarted, time.Now()); err == nil {
			t.Fatalf("num_parallel_jobs=%d: expected error, got nil", n)
		}
	}
}

func TestNewNodeDefaultsNilTags(t *testing.T) {
	n, err := NewNode("host-a", nil, 1, NodeStarted, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Tags == nil {
		t.Fatal("want non-nil Tags slice, got nil")
	}
	if len(n.Tags) != 0 {
		t.Fatalf("want empty Tags, got %v", n.Tags)
	}
}

func TestNewProcessorRejectsNegativeID(t *testing.T) {
	if _, err := NewProcessor(-1, "host-a", ProcessorIdle, time.Now()); err == nil {
		t.Fatal("expected error for negative processor id, got nil")
	}
}

func TestNewProcessorRejectsEmptyParent(t *testing.T) {
	if _, err := NewProcessor(0, "", ProcessorIdle, time.Now()); err == nil {
		t.Fatal("expected error for empty parent_node, got nil")
	}
}

func TestHandlingStatus(t *testing.T) {
	want := "handling 42"
	if got := HandlingStatus(42); got != want {
		t.Fatalf("want=%q got=%q", want, got)
	}
}

func TestNewJobRejectsEmptyPayload(t *testing.T) {
	if _, err := NewJob("", nil, nil, nil, time.Now()); err == nil {
		t.Fatal("expected error for empty payload, got nil")
	}
}

func TestNewJobDefaults(t *testing.T) {
	now := time.Now()
	j, err := NewJob("echo hi", []string{"gpu"}, nil, nil, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if j.Status != JobPending {
		t.Fatalf("want status=%q got=%q", JobPending, j.Status)
	}
	if j.AssignedNode != UnassignedHostname {
		t.Fatalf("want assigned_node=%q got=%q", UnassignedHostname, j.AssignedNode)
	}
	if !j.LastUpdated.Equal(now) || !j.SubmissionTime.Equal(now) {
		t.Fatal("want last_updated and submission_time to both equal now")
	}
}

func TestJobResultReturnCode(t *testing.T) {
	cases := []struct {
		name     string
		metadata map[string]any
		wantCode int
		wantOK   bool
	}{
		{"absent metadata", nil, 0, false},
		{"missing key", map[string]any{}, 0, false},
		{"int value", map[string]any{"returncode": 2}, 2, true},
		{"float64 value (json round-trip)", map[string]any{"returncode": float64(3)}, 3, true},
		{"int64 value", map[string]any{"returncode": int64(4)}, 4, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			j := Job{ResultMetadata: c.metadata}
			code, ok := j.ResultReturnCode()
			if ok != c.wantOK || code != c.wantCode {
				t.Fatalf("want=(%d,%v) got=(%d,%v)", c.wantCode, c.wantOK, code, ok)
			}
		})
	}
}

func TestIsTerminalJobStatus(t *testing.T) {
	terminal := []string{JobCompleted, JobFailed, JobInterrupted}
	for _, s := range terminal {
		if !IsTerminalJobStatus(s) {
			t.Fatalf("want %q to be terminal", s)
		}
	}
	nonTerminal := []string{JobPending, JobClaimed, JobRunning}
	for _, s := range nonTerminal {
		if IsTerminalJobStatus(s) {
			t.Fatalf("want %q to be non-terminal", s)
		}
	}
}
