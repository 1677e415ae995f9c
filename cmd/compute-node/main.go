// Command compute-node registers a node, fans out num_parallel_jobs
// processors, and runs until an orderly stop (spec §6 CLI surface).
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/clusterqueue/clusterqueue/internal/config"
	"github.com/clusterqueue/clusterqueue/internal/httpapi"
	"github.com/clusterqueue/clusterqueue/internal/logger"
	"github.com/clusterqueue/clusterqueue/internal/node"
	"github.com/clusterqueue/clusterqueue/internal/notify"
	"github.com/clusterqueue/clusterqueue/internal/queue"
	"github.com/clusterqueue/clusterqueue/internal/reaper"
	"github.com/clusterqueue/clusterqueue/internal/store"
	"github.com/clusterqueue/clusterqueue/internal/telemetry"
)

func main() {
	numParallelJobs := flag.Int("num_parallel_jobs", 1, "number of processors this node runs")
	tagsFlag := flag.String("tags", "", "comma-separated capability tags this node provides")
	hostnameFlag := flag.String("hostname", "", "override the detected hostname")
	flag.Parse()

	cfg, err := config.LoadFromRepoRoot()
	if err != nil {
		fmt.Fprintln(os.Stderr, "compute-node: config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "compute-node: logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	hostname := *hostnameFlag
	if hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			log.Fatal("could not determine hostname", "error", err)
		}
		hostname = h
	}

	db, err := store.Open(store.Dialect(cfg.Store.Driver), cfg.Store.DSN)
	if err != nil {
		log.Fatal("failed to open store", "error", err)
	}
	defer db.Close()

	_, shutdownTracing, err := telemetry.Init(context.Background(), "clusterqueue-compute-node", cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Fatal("failed to init telemetry", "error", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	q := queue.New(db)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.RedisAddr != "" {
		notifier = notify.NewRedis(cfg.Notify.RedisAddr, log)
	}

	var rp *reaper.Reaper
	if cfg.Orchestration.StaleRunningAfterMinutes > 0 {
		rp = reaper.New(q, cfg.StaleAfterDuration(), log)
		if err := rp.Start(context.Background()); err != nil {
			log.Fatal("failed to start reaper", "error", err)
		}
		defer rp.Stop()
	}

	if cfg.HTTP.Addr != "" {
		srv := httpapi.New(q, log)
		go func() {
			log.Info("admin http surface listening", "addr", cfg.HTTP.Addr)
			if err := startHTTP(cfg.HTTP.Addr, srv.Handler()); err != nil {
				log.Error("admin http server exited", "error", err)
			}
		}()
	}

	opts := node.Options{
		Hostname:        hostname,
		Tags:            splitTags(*tagsFlag),
		NumParallelJobs: *numParallelJobs,
		SnoozeDuration:  cfg.SnoozeDuration(),
		JobLogsRoot:     cfg.Orchestration.JobLogsRoot,
		PollBatchSize:   cfg.PollLimit(),
	}

	if err := node.Run(context.Background(), opts, q, notifier, log); err != nil {
		log.Error("node exited with error", "error", err)
		os.Exit(1)
	}
}

func startHTTP(addr string, handler http.Handler) error {
	return http.ListenAndServe(addr, handler)
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
