// Package node implements node registration, the processor fan-out, and
// orderly stop (spec C7).
package node

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/logger"
	"github.com/clusterqueue/clusterqueue/internal/notify"
	"github.com/clusterqueue/clusterqueue/internal/queue"
	"github.com/clusterqueue/clusterqueue/internal/worker"
)

// Options configures one compute-node run (one OS process).
type Options struct {
	Hostname        string
	Tags            []string
	NumParallelJobs int
	SnoozeDuration  time.Duration
	JobLogsRoot     string
	PollBatchSize   int
}

// Run registers the node, spawns NumParallelJobs processors under one
// cancellation scope, and blocks until a processor returns a fatal error,
// an OS signal or ctx triggers an orderly stop, or (with a zero snooze)
// every processor has found the queue empty. It returns nil on an
// orderly stop, matching the CLI's "exit 0 on orderly stop" contract.
func Run(ctx context.Context, opts Options, q *queue.Service, n notify.Notifier, log *logger.Logger) error {
	log = log.With("component", "node", "hostname", opts.Hostname)

	if opts.NumParallelJobs < 1 {
		return fmt.Errorf("node: num_parallel_jobs must be at least 1, got %d", opts.NumParallelJobs)
	}

	now := time.Now().UTC()
	nd, err := domain.NewNode(opts.Hostname, opts.Tags, opts.NumParallelJobs, domain.NodeStarted, now)
	if err != nil {
		return fmt.Errorf("node: invalid node: %w", err)
	}
	if err := q.RegisterNode(ctx, nd); err != nil {
		return fmt.Errorf("node: register: %w", err)
	}
	log.Info("node registered", "tags", opts.Tags, "num_parallel_jobs", opts.NumParallelJobs)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, stopping node", "signal", sig.String())
			cancel()
		case <-runCtx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(runCtx)
	interruptible := opts.NumParallelJobs == 1

	for i := 0; i < opts.NumParallelJobs; i++ {
		procID := i
		cfg := worker.Config{
			Hostname:       opts.Hostname,
			Tags:           opts.Tags,
			SnoozeDuration: opts.SnoozeDuration,
			JobLogsRoot:    opts.JobLogsRoot,
			Interruptible:  interruptible,
			PollBatchSize:  opts.PollBatchSize,
		}
		proc := worker.New(procID, cfg, q, n, log)
		g.Go(func() error {
			return proc.Run(gctx)
		})
	}

	// The STOPPED/INTERRUPTED batch fires the moment runCtx is cancelled
	// (signal received, or a processor's fatal error propagates through
	// cancel() below), independent of how long any in-flight job's child
	// process keeps running. g.Wait() only gates when Run itself returns,
	// not when the stop is recorded.
	stopDone := make(chan struct{})
	go func() {
		defer close(stopDone)
		<-runCtx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		interrupted, err := q.StopNode(stopCtx, opts.Hostname)
		if err != nil {
			log.Error("failed to record orderly stop", "error", err)
			return
		}
		log.Info("node stopped", "jobs_interrupted", interrupted)
	}()

	waitErr := g.Wait()
	cancel()
	<-stopDone
	return waitErr
}
