package domain

import (
	"fmt"
	"time"
)

// Node represents a host running one or more processors (spec C2,
// grounded on scheduler/models/node.py's field set, translated from a
// pydantic BaseModel into a plain validated struct).
type Node struct {
	Hostname        string
	Status          string
	Tags            []string
	NumParallelJobs int
	LastSeen        time.Time
}

// NewNode validates and builds a Node. A non-positive NumParallelJobs is
// rejected: the data model calls it "a positive integer" and a node that
// can run zero processors can never pick up a job.
func NewNode(hostname string, tags []string, numParallelJobs int, status string, lastSeen time.Time) (Node, error) {
	if hostname == "" {
		return Node{}, fmt.Errorf("domain: node hostname must not be empty")
	}
	if numParallelJobs < 1 {
		return Node{}, fmt.Errorf("domain: node num_parallel_jobs must be positive, got %d", numParallelJobs)
	}
	if tags == nil {
		tags = []string{}
	}
	return Node{
		Hostname:        hostname,
		Status:          status,
		Tags:            tags,
		NumParallelJobs: numParallelJobs,
		LastSeen:        lastSeen,
	}, nil
}

func (n Node) String() string {
	return fmt.Sprintf("%s (%s)", n.Hostname, n.Status)
}
