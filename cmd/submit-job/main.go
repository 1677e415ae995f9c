// Command submit-job inserts a PENDING job row from a command-line job
// description and prints the generated job_id on success (spec §6 CLI
// surface, supplemented per scheduler/scripts/submit_test_job.py's
// echo-the-id behavior).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/clusterqueue/clusterqueue/internal/config"
	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/logger"
	"github.com/clusterqueue/clusterqueue/internal/queue"
	"github.com/clusterqueue/clusterqueue/internal/store"
)

func main() {
	payload := flag.String("payload", "", "shell command to run (required)")
	tagsFlag := flag.String("tags", "", "comma-separated required capability tags")
	envFlag := flag.String("env", "", "JSON object of environment variables; omit to inherit")
	metadataFlag := flag.String("metadata", "", "JSON object of job metadata (e.g. CWD)")
	flag.Parse()

	if *payload == "" {
		fmt.Fprintln(os.Stderr, "submit-job: --payload is required")
		os.Exit(1)
	}

	cfg, err := config.LoadFromRepoRoot()
	if err != nil {
		fmt.Fprintln(os.Stderr, "submit-job: config:", err)
		os.Exit(1)
	}
	log := logger.NewNop()

	env, err := parseJSONStringMap(*envFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "submit-job: --env:", err)
		os.Exit(1)
	}
	metadata, err := parseJSONMap(*metadataFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "submit-job: --metadata:", err)
		os.Exit(1)
	}

	job, err := domain.NewJob(*payload, splitTags(*tagsFlag), env, metadata, time.Now().UTC())
	if err != nil {
		fmt.Fprintln(os.Stderr, "submit-job:", err)
		os.Exit(1)
	}

	db, err := store.Open(store.Dialect(cfg.Store.Driver), cfg.Store.DSN)
	if err != nil {
		log.Fatal("submit-job: open store", "error", err)
	}
	defer db.Close()

	id, err := queue.New(db).Submit(context.Background(), job)
	if err != nil {
		fmt.Fprintln(os.Stderr, "submit-job:", err)
		os.Exit(1)
	}
	fmt.Println(id)
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

func parseJSONStringMap(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func parseJSONMap(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}
