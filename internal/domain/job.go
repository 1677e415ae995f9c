package domain

import (
	"fmt"
	"time"
)

// Job is a unit of work: an opaque shell command plus the capability tags a
// node must provide to run it (spec C2, grounded on scheduler/models/job.py).
type Job struct {
	ID                    int64
	Payload               string
	EnvVariables          map[string]string
	Tags                  []string
	Status                string
	LastUpdated           time.Time
	SubmissionTime        time.Time
	AssignedNode          string
	AssignedNodeProcessor *int
	ResultMetadata        map[string]any
	Metadata              map[string]any
}

// NewJob validates and builds a PENDING Job ready for submission. Per the
// data model, an unclaimed job's assigned_node defaults to the UNASSIGNED
// sentinel rather than null.
func NewJob(payload string, tags []string, env map[string]string, metadata map[string]any, now time.Time) (Job, error) {
	if payload == "" {
		return Job{}, fmt.Errorf("domain: job payload must not be empty")
	}
	return Job{
		Payload:        payload,
		EnvVariables:   env,
		Tags:           tags,
		Status:         JobPending,
		LastUpdated:    now,
		SubmissionTime: now,
		AssignedNode:   UnassignedHostname,
		Metadata:       metadata,
	}, nil
}

// ResultReturnCode extracts result_metadata.returncode as an int, returning
// ok=false if the job hasn't completed or the field is absent/malformed.
func (j Job) ResultReturnCode() (code int, ok bool) {
	if j.ResultMetadata == nil {
		return 0, false
	}
	v, present := j.ResultMetadata["returncode"]
	if !present {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func (j Job) String() string {
	return fmt.Sprintf("%s (%s)", j.Payload, j.Status)
}
