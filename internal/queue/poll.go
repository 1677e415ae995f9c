package queue

import (
	"context"
	"fmt"

	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/store"
	"github.com/clusterqueue/clusterqueue/internal/tags"
)

// PollCandidates returns up to limit PENDING jobs eligible for a node
// carrying nodeTags, oldest submission first (spec C4's poll step).
//
// Postgres can push the eligibility test into SQL with the array
// containment operator: tags IS NULL OR tags <@ nodeTags covers both the
// untagged-job and subset cases in one expression. SQLite has no array
// type to contain against, so it fetches PENDING rows in submission order
// and filters in Go; that backend is test-only so the extra scan is fine.
func (s *Service) PollCandidates(ctx context.Context, nodeTags []string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 10
	}
	switch s.Store.Dialect() {
	case store.Postgres:
		return s.pollPostgres(ctx, nodeTags, limit)
	default:
		return s.pollFiltered(ctx, nodeTags, limit)
	}
}

func (s *Service) pollPostgres(ctx context.Context, nodeTags []string, limit int) ([]domain.Job, error) {
	rows, err := s.Store.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = ? AND (tags IS NULL OR tags <@ ?::text[])
		ORDER BY submission_time ASC, job_id ASC
		LIMIT ?`,
		domain.JobPending, store.TagSet(nodeTags), limit)
	if err != nil {
		return nil, fmt.Errorf("queue: poll: %w", err)
	}
	defer rows.Close()
	return scanJobRows(rows)
}

func (s *Service) pollFiltered(ctx context.Context, nodeTags []string, limit int) ([]domain.Job, error) {
	rows, err := s.Store.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = ?
		ORDER BY submission_time ASC, job_id ASC`,
		domain.JobPending)
	if err != nil {
		return nil, fmt.Errorf("queue: poll: %w", err)
	}
	defer rows.Close()
	all, err := scanJobRows(rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Job, 0, limit)
	for _, j := range all {
		if !tags.Eligible(nodeTags, j.Tags) {
			continue
		}
		out = append(out, j)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type jobRowSet interface {
	Next() bool
	Scan(dest ...any) error
}

func scanJobRows(rows jobRowSet) ([]domain.Job, error) {
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
