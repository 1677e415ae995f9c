package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/store"
)

// RegisterNode upserts a node row on startup (spec C7). Re-registering an
// existing hostname refreshes its tags, capacity, and status rather than
// failing, so a restarted node doesn't need a separate first-run path.
func (s *Service) RegisterNode(ctx context.Context, node domain.Node) error {
	switch s.Store.Dialect() {
	case store.Postgres:
		_, err := s.Store.Execute(ctx, `
			INSERT INTO nodes (hostname, status, tags, num_parallel_jobs, last_seen)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (hostname) DO UPDATE SET
				status = EXCLUDED.status,
				tags = EXCLUDED.tags,
				num_parallel_jobs = EXCLUDED.num_parallel_jobs,
				last_seen = EXCLUDED.last_seen`,
			node.Hostname, node.Status, store.TagSet(node.Tags), node.NumParallelJobs, node.LastSeen)
		if err != nil {
			return fmt.Errorf("queue: register node %s: %w", node.Hostname, err)
		}
		return nil
	default:
		// SQLite's upsert syntax differs and the test backend never needs
		// cross-dialect parity here; a delete-then-insert is simplest.
		stmts := []store.Statement{
			{SQL: `DELETE FROM nodes WHERE hostname = ?`, Args: []any{node.Hostname}},
			{SQL: `INSERT INTO nodes (hostname, status, tags, num_parallel_jobs, last_seen) VALUES (?, ?, ?, ?, ?)`,
				Args: []any{node.Hostname, node.Status, store.TagSet(node.Tags), node.NumParallelJobs, node.LastSeen}},
		}
		if _, err := s.Store.ExecuteMany(ctx, stmts); err != nil {
			return fmt.Errorf("queue: register node %s: %w", node.Hostname, err)
		}
		return nil
	}
}

// HeartbeatNode refreshes a node's status and last_seen.
func (s *Service) HeartbeatNode(ctx context.Context, hostname, status string) error {
	_, err := s.Store.Execute(ctx, `UPDATE nodes SET status = ?, last_seen = ? WHERE hostname = ?`,
		status, time.Now().UTC(), hostname)
	if err != nil {
		return fmt.Errorf("queue: heartbeat node %s: %w", hostname, err)
	}
	return nil
}

// HeartbeatProcessor upserts a processor row and refreshes its parent
// node's last_seen in the same call, matching spec §4.6's description of
// the heartbeat as touching both rows.
func (s *Service) HeartbeatProcessor(ctx context.Context, hostname string, processorID int, status string) error {
	now := time.Now().UTC()
	switch s.Store.Dialect() {
	case store.Postgres:
		stmts := []store.Statement{
			{SQL: `
				INSERT INTO processors (processor_id, parent_node, status, last_seen)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (processor_id, parent_node) DO UPDATE SET
					status = EXCLUDED.status, last_seen = EXCLUDED.last_seen`,
				Args: []any{processorID, hostname, status, now}},
			{SQL: `UPDATE nodes SET last_seen = ? WHERE hostname = ?`, Args: []any{now, hostname}},
		}
		_, err := s.Store.ExecuteMany(ctx, stmts)
		if err != nil {
			return fmt.Errorf("queue: heartbeat processor %d@%s: %w", processorID, hostname, err)
		}
		return nil
	default:
		stmts := []store.Statement{
			{SQL: `DELETE FROM processors WHERE processor_id = ? AND parent_node = ?`, Args: []any{processorID, hostname}},
			{SQL: `INSERT INTO processors (processor_id, parent_node, status, last_seen) VALUES (?, ?, ?, ?)`,
				Args: []any{processorID, hostname, status, now}},
			{SQL: `UPDATE nodes SET last_seen = ? WHERE hostname = ?`, Args: []any{now, hostname}},
		}
		_, err := s.Store.ExecuteMany(ctx, stmts)
		if err != nil {
			return fmt.Errorf("queue: heartbeat processor %d@%s: %w", processorID, hostname, err)
		}
		return nil
	}
}

// StopNode implements the orderly-stop batch from spec §4.7: the node
// flips to STOPPED and every RUNNING job it owns becomes INTERRUPTED, in
// one transaction so a reader never observes the node stopped with its
// jobs still claiming to run.
func (s *Service) StopNode(ctx context.Context, hostname string) (interrupted int64, err error) {
	now := time.Now().UTC()
	stmts := []store.Statement{
		{SQL: `UPDATE nodes SET status = ?, last_seen = ? WHERE hostname = ?`, Args: []any{domain.NodeStopped, now, hostname}},
		{SQL: `UPDATE jobs SET status = ?, last_updated = ? WHERE assigned_node = ? AND status = ?`,
			Args: []any{domain.JobInterrupted, now, hostname, domain.JobRunning}},
	}
	affected, err := s.Store.ExecuteMany(ctx, stmts)
	if err != nil {
		return 0, fmt.Errorf("queue: stop node %s: %w", hostname, err)
	}
	// affected is the batch total; take out the node row, when it exists.
	if v, err := s.Store.FetchOne(ctx, `SELECT COUNT(*) FROM nodes WHERE hostname = ?`, hostname); err == nil {
		if nodeRows, ok := asInt64(v); ok {
			affected -= nodeRows
		}
	}
	return affected, nil
}

// ReapStaleRunning moves RUNNING jobs whose owning node has not been seen
// since before cutoff to INTERRUPTED (the reaper, spec §9 Open Question).
func (s *Service) ReapStaleRunning(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.Store.Execute(ctx, `
		UPDATE jobs SET status = ?, last_updated = ?
		WHERE status = ? AND assigned_node IN (
			SELECT hostname FROM nodes WHERE last_seen < ?
		)`,
		domain.JobInterrupted, time.Now().UTC(), domain.JobRunning, cutoff)
	if err != nil {
		return 0, fmt.Errorf("queue: reap stale running: %w", err)
	}
	return n, nil
}
