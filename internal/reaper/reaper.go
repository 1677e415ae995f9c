// Package reaper ages out RUNNING jobs whose owning node has gone silent
// (spec §9 Open Question: "a future reaper... would age-out RUNNING rows
// past a threshold"). It is disabled unless configured with a positive
// threshold.
package reaper

import (
	"context"
	"time"

	"github.com/robfig/cron"

	"github.com/clusterqueue/clusterqueue/internal/logger"
	"github.com/clusterqueue/clusterqueue/internal/queue"
)

// Reaper wraps a cron schedule that periodically interrupts RUNNING jobs
// whose node hasn't heartbeat within StaleAfter.
type Reaper struct {
	queue      *queue.Service
	log        *logger.Logger
	staleAfter time.Duration
	cron       *cron.Cron
}

// New builds a Reaper. staleAfter <= 0 disables it; callers should check
// Enabled() before calling Start.
func New(q *queue.Service, staleAfter time.Duration, log *logger.Logger) *Reaper {
	return &Reaper{
		queue:      q,
		log:        log.With("component", "reaper"),
		staleAfter: staleAfter,
		cron:       cron.New(),
	}
}

func (r *Reaper) Enabled() bool {
	return r.staleAfter > 0
}

// Start schedules the sweep to run once a minute and begins the cron
// scheduler. It returns immediately; Stop shuts it down.
func (r *Reaper) Start(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	if err := r.cron.AddFunc("@every 1m", func() { r.sweep(ctx) }); err != nil {
		return err
	}
	r.cron.Start()
	r.log.Info("reaper started", "stale_after", r.staleAfter)
	return nil
}

func (r *Reaper) Stop() {
	if r.Enabled() {
		r.cron.Stop()
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.staleAfter)
	n, err := r.queue.ReapStaleRunning(ctx, cutoff)
	if err != nil {
		r.log.Error("reap sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.log.Info("reaped stale running jobs", "count", n, "cutoff", cutoff)
	}
}
