// Package queue implements the claim protocol (spec C4) and the
// submission/admin operations (spec C8) on top of the store adapter (C1).
// Apart from the DDL in domain/ddl.go, it is the only package that knows the
// jobs/nodes/processors table shape; everything else talks to it in terms of
// domain values.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/store"
)

type Service struct {
	Store store.Store
}

func New(s store.Store) *Service {
	return &Service{Store: s}
}

// Submit inserts a PENDING job row and returns its generated id.
func (s *Service) Submit(ctx context.Context, job domain.Job) (int64, error) {
	if job.Payload == "" {
		return 0, fmt.Errorf("queue: submit: %w", errEmptyPayload)
	}
	now := time.Now().UTC()
	if job.SubmissionTime.IsZero() {
		job.SubmissionTime = now
	}
	if job.LastUpdated.IsZero() {
		job.LastUpdated = now
	}
	if job.Status == "" {
		job.Status = domain.JobPending
	}
	if job.AssignedNode == "" {
		job.AssignedNode = domain.UnassignedHostname
	}

	v, err := s.Store.FetchOne(ctx, `
		INSERT INTO jobs (payload, env_variables, tags, status, last_updated, submission_time,
			assigned_node, assigned_node_processor, result_metadata, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING job_id`,
		job.Payload,
		envToJSONMap(job.EnvVariables),
		store.TagSet(job.Tags),
		job.Status,
		job.LastUpdated,
		job.SubmissionTime,
		job.AssignedNode,
		job.AssignedNodeProcessor,
		store.JSONMap(job.ResultMetadata),
		store.JSONMap(job.Metadata),
	)
	if err != nil {
		return 0, fmt.Errorf("queue: submit: %w", err)
	}
	id, ok := asInt64(v)
	if !ok {
		return 0, fmt.Errorf("queue: submit: unexpected id type %T", v)
	}
	return id, nil
}

// GetByID fetches a single job by id.
func (s *Service) GetByID(ctx context.Context, jobID int64) (domain.Job, error) {
	rows, err := s.Store.Query(ctx, `SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("queue: get job %d: %w", jobID, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return domain.Job{}, store.ErrNotFound
	}
	return scanJob(rows)
}

// UpdateStatus writes a job's status unconditionally. Neither the worker
// loop nor the reaper calls it: the worker loop uses the RUNNING-guarded
// Complete/Fail, and the reaper uses ReapStaleRunning.
func (s *Service) UpdateStatus(ctx context.Context, jobID int64, status string) error {
	_, err := s.Store.Execute(ctx, `UPDATE jobs SET status = ?, last_updated = ? WHERE job_id = ?`,
		status, time.Now().UTC(), jobID)
	if err != nil {
		return fmt.Errorf("queue: update status: %w", err)
	}
	return nil
}

// ListNodes and ListProcessors back the admin HTTP surface.
func (s *Service) ListNodes(ctx context.Context) ([]domain.Node, error) {
	rows, err := s.Store.Query(ctx, `SELECT hostname, status, tags, num_parallel_jobs, last_seen FROM nodes ORDER BY hostname`)
	if err != nil {
		return nil, fmt.Errorf("queue: list nodes: %w", err)
	}
	defer rows.Close()
	var out []domain.Node
	for rows.Next() {
		var (
			hostname, status string
			tagSet           store.TagSet
			numParallel      int
			lastSeen         time.Time
		)
		if err := rows.Scan(&hostname, &status, &tagSet, &numParallel, &lastSeen); err != nil {
			return nil, fmt.Errorf("queue: list nodes: scan: %w", err)
		}
		out = append(out, domain.Node{
			Hostname:        hostname,
			Status:          status,
			Tags:            []string(tagSet),
			NumParallelJobs: numParallel,
			LastSeen:        lastSeen,
		})
	}
	return out, nil
}

func (s *Service) ListProcessors(ctx context.Context, hostname string) ([]domain.Processor, error) {
	rows, err := s.Store.Query(ctx,
		`SELECT processor_id, parent_node, status, last_seen FROM processors WHERE parent_node = ? ORDER BY processor_id`,
		hostname)
	if err != nil {
		return nil, fmt.Errorf("queue: list processors: %w", err)
	}
	defer rows.Close()
	var out []domain.Processor
	for rows.Next() {
		var p domain.Processor
		if err := rows.Scan(&p.ProcessorID, &p.ParentNode, &p.Status, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("queue: list processors: scan: %w", err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Service) ListJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Store.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY job_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("queue: list jobs: %w", err)
	}
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

var errEmptyPayload = fmt.Errorf("payload must not be empty")
