// Package worker implements the per-processor state machine (spec C6):
// heartbeat, poll, claim, run, report, snooze. A Processor is a single
// sequential loop; concurrency across a node comes from running several
// Processors side by side, not from anything inside this package.
package worker

import (
	"context"
	"time"

	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/executor"
	"github.com/clusterqueue/clusterqueue/internal/logger"
	"github.com/clusterqueue/clusterqueue/internal/notify"
	"github.com/clusterqueue/clusterqueue/internal/queue"
)

// Config bundles the per-node settings every Processor shares.
type Config struct {
	Hostname       string
	Tags           []string
	SnoozeDuration time.Duration
	JobLogsRoot    string
	Interruptible  bool // true only when the node runs a single processor
	PollBatchSize  int
}

// Processor is one worker slot within a node (spec's (hostname, processor_idx)
// identity). It holds no state across loop iterations beyond what it reads
// back from the store each time.
type Processor struct {
	ID     int
	cfg    Config
	queue  *queue.Service
	notify notify.Notifier
	log    *logger.Logger
}

func New(id int, cfg Config, q *queue.Service, n notify.Notifier, log *logger.Logger) *Processor {
	return &Processor{
		ID:     id,
		cfg:    cfg,
		queue:  q,
		notify: n,
		log:    log.With("component", "processor", "hostname", cfg.Hostname, "processor_id", id),
	}
}

// Run executes the loop described in spec §4.6 until ctx is cancelled or,
// with a zero snooze (batch mode), until a poll finds no eligible job.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if p.cfg.SnoozeDuration <= 0 {
			candidates, err := p.queue.PollCandidates(ctx, p.cfg.Tags, 1)
			if err == nil && len(candidates) == 0 {
				return nil
			}
		}
		if err := p.tick(ctx); err != nil {
			p.log.Warn("processor tick failed, continuing", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// tick runs a single iteration: heartbeat, poll, and either claim-and-run or
// snooze. It returns an error only for conditions the caller should log and
// continue past; lost claim races and empty polls are not errors.
func (p *Processor) tick(ctx context.Context) error {
	if err := p.heartbeat(ctx, domain.ProcessorPolling); err != nil {
		return err
	}

	job, err := p.queue.ClaimWithBatch(ctx, p.cfg.Hostname, p.ID, p.cfg.Tags, p.cfg.PollBatchSize)
	if err != nil {
		return err
	}
	if job == nil {
		return p.snoozeEmpty(ctx)
	}

	if err := p.heartbeat(ctx, domain.HandlingStatus(job.ID)); err != nil {
		p.log.Warn("heartbeat during claim failed", "job_id", job.ID, "error", err)
	}
	if err := p.queue.MarkRunning(ctx, job.ID); err != nil {
		return err
	}

	// Run and report on a context decoupled from the node's shutdown
	// cancellation: a still-living job's child process is not killed by an
	// operator stopping the node (spec §4.7/§5), and the eventual
	// Complete/Fail write must still be able to reach the store even after
	// the node's runCtx has been cancelled. StopNode's own INTERRUPTED write
	// guards the same row, so whichever side loses is a harmless no-op.
	p.execute(context.WithoutCancel(ctx), *job)

	return p.heartbeat(ctx, domain.ProcessorIdle)
}

// execute runs the job payload and writes its terminal status. An executor
// error (log file setup or spawn failure) becomes FAILED; everything
// else, including a non-zero exit code, becomes COMPLETED. A panic escaping
// the executor (or anything it calls) is recovered and written as FAILED
// instead of crashing the processor loop, mirroring the handler-panic
// recovery of the job worker this loop is modeled on.
func (p *Processor) execute(ctx context.Context, job domain.Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job execution panicked", "job_id", job.ID, "panic", r)
			if failErr := p.queue.Fail(ctx, job.ID, map[string]any{"error": "panic: unexpected error"}); failErr != nil {
				p.log.Error("failed to write FAILED status after panic", "job_id", job.ID, "error", failErr)
			}
		}
	}()

	result, err := executor.Run(ctx, job, p.cfg.JobLogsRoot)
	if err != nil {
		p.log.Error("job spawn failed", "job_id", job.ID, "error", err)
		if failErr := p.queue.Fail(ctx, job.ID, map[string]any{"error": err.Error()}); failErr != nil {
			p.log.Error("failed to write FAILED status", "job_id", job.ID, "error", failErr)
		}
		return
	}
	if err := p.queue.Complete(ctx, job.ID, result.Metadata()); err != nil {
		p.log.Error("failed to write COMPLETED status", "job_id", job.ID, "error", err)
	}
}

func (p *Processor) heartbeat(ctx context.Context, status string) error {
	return p.queue.HeartbeatProcessor(ctx, p.cfg.Hostname, p.ID, status)
}

// snoozeEmpty is entered when a poll finds no eligible PENDING job. A
// snooze of zero means batch mode: return immediately rather than sleeping;
// Run then returns as soon as its next poll finds no eligible job.
func (p *Processor) snoozeEmpty(ctx context.Context) error {
	if err := p.heartbeat(ctx, domain.ProcessorSnoozing); err != nil {
		p.log.Warn("heartbeat before snooze failed", "error", err)
	}
	if p.cfg.SnoozeDuration > 0 {
		if p.cfg.Interruptible {
			select {
			case <-ctx.Done():
			case <-p.notify.Wait(ctx, p.cfg.SnoozeDuration):
			}
		} else {
			// Multi-processor nodes snooze non-interruptibly: an operator
			// stops the whole node through C7, not one processor at a time.
			timer := time.NewTimer(p.cfg.SnoozeDuration)
			defer timer.Stop()
			<-timer.C
		}
	}
	return p.heartbeat(ctx, domain.ProcessorIdle)
}
