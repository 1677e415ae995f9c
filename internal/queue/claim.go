package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/store"
)

var tracer = otel.Tracer("github.com/clusterqueue/clusterqueue/internal/queue")

// Claim implements the heart of the scheduling protocol (spec C4): a
// processor polls for eligible PENDING jobs, then attempts an atomic
// conditional update on each candidate in order until one succeeds. The
// conditional WHERE status = 'PENDING' is what makes two processors racing
// on the same row safe: only one UPDATE can match, because the loser's
// WHERE clause no longer holds once the winner commits. The read-back after
// the write confirms which side of the race this call landed on, rather
// than trusting RowsAffected alone, so a driver that can't report affected
// rows accurately still behaves correctly.
func (s *Service) Claim(ctx context.Context, hostname string, processorID int, nodeTags []string) (*domain.Job, error) {
	return s.ClaimWithBatch(ctx, hostname, processorID, nodeTags, 10)
}

// ClaimWithBatch is Claim with an explicit poll batch size (spec §4.4's
// "up to N, default 10, minimum 1").
func (s *Service) ClaimWithBatch(ctx context.Context, hostname string, processorID int, nodeTags []string, batchSize int) (*domain.Job, error) {
	ctx, span := tracer.Start(ctx, "queue.Claim",
		trace.WithAttributes(
			attribute.String("hostname", hostname),
			attribute.Int("processor_id", processorID),
		))
	defer span.End()

	if batchSize < 1 {
		batchSize = 1
	}
	candidates, err := s.PollCandidates(ctx, nodeTags, batchSize)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("queue: claim: %w", err)
	}

	for _, candidate := range candidates {
		now := time.Now().UTC()
		n, err := s.Store.Execute(ctx, `
			UPDATE jobs SET status = ?, assigned_node = ?, assigned_node_processor = ?, last_updated = ?
			WHERE job_id = ? AND status = ?`,
			domain.JobClaimed, hostname, processorID, now, candidate.ID, domain.JobPending)
		if err != nil {
			return nil, fmt.Errorf("queue: claim job %d: %w", candidate.ID, err)
		}
		if n == 0 {
			// Another processor claimed it first; try the next candidate.
			continue
		}

		won, err := s.confirmClaim(ctx, candidate.ID, hostname, processorID)
		if err != nil {
			return nil, fmt.Errorf("queue: claim job %d: confirm: %w", candidate.ID, err)
		}
		if !won {
			continue
		}

		job, err := s.GetByID(ctx, candidate.ID)
		if err != nil {
			return nil, fmt.Errorf("queue: claim job %d: reload: %w", candidate.ID, err)
		}
		span.SetAttributes(attribute.Int64("job_id", job.ID))
		return &job, nil
	}
	return nil, nil
}

// confirmClaim reads back the row the UPDATE just touched and verifies it
// landed with this processor's identity, guarding against drivers whose
// RowsAffected cannot be trusted under concurrent writers.
func (s *Service) confirmClaim(ctx context.Context, jobID int64, hostname string, processorID int) (bool, error) {
	rows, err := s.Store.Query(ctx,
		`SELECT status, assigned_node, assigned_node_processor FROM jobs WHERE job_id = ?`, jobID)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return false, store.ErrNotFound
	}
	var (
		status       string
		assignedNode string
		assignedProc sql.NullInt64
	)
	if err := rows.Scan(&status, &assignedNode, &assignedProc); err != nil {
		return false, err
	}
	return status == domain.JobClaimed && assignedNode == hostname &&
		assignedProc.Valid && int(assignedProc.Int64) == processorID, nil
}

// MarkRunning transitions a job this processor just claimed from CLAIMED to
// RUNNING, immediately before the executor spawns the subprocess.
func (s *Service) MarkRunning(ctx context.Context, jobID int64) error {
	_, err := s.Store.Execute(ctx,
		`UPDATE jobs SET status = ?, last_updated = ? WHERE job_id = ? AND status = ?`,
		domain.JobRunning, time.Now().UTC(), jobID, domain.JobClaimed)
	if err != nil {
		return fmt.Errorf("queue: mark running job %d: %w", jobID, err)
	}
	return nil
}

// Complete records a successful (possibly non-zero exit code) execution.
// The guard on status = 'RUNNING' stops a slow completion write from
// clobbering a row a concurrent node-stop already marked INTERRUPTED.
func (s *Service) Complete(ctx context.Context, jobID int64, resultMetadata map[string]any) error {
	return s.finish(ctx, jobID, domain.JobCompleted, resultMetadata)
}

// Fail records a spawn/executor-level failure (not a non-zero exit code,
// which is still JobCompleted). Guarded the same way as Complete: a node
// stopping mid-execution owns the INTERRUPTED transition and should win.
func (s *Service) Fail(ctx context.Context, jobID int64, resultMetadata map[string]any) error {
	return s.finish(ctx, jobID, domain.JobFailed, resultMetadata)
}

func (s *Service) finish(ctx context.Context, jobID int64, status string, resultMetadata map[string]any) error {
	_, err := s.Store.Execute(ctx,
		`UPDATE jobs SET status = ?, result_metadata = ?, last_updated = ? WHERE job_id = ? AND status = ?`,
		status, store.JSONMap(resultMetadata), time.Now().UTC(), jobID, domain.JobRunning)
	if err != nil {
		return fmt.Errorf("queue: finish job %d as %s: %w", jobID, status, err)
	}
	return nil
}
