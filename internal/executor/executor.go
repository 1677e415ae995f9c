// Package executor runs a job's payload as a child process under the
// system shell and captures its result (spec C5).
//
// The payload is a shell command, not an argv vector: it is spawned via
// `/bin/sh -c payload` deliberately, because operators submit shell
// snippets expecting pipes, redirection, and variable expansion to work.
// This is a trust boundary, not an oversight; the executor never escapes
// or sanitizes the payload.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clusterqueue/clusterqueue/internal/domain"
)

var tracer = otel.Tracer("github.com/clusterqueue/clusterqueue/internal/executor")

// Paths locates the stdout/stderr sinks for one execution.
type Paths struct {
	Stdout string
	Stderr string
}

// ForJob derives the stdout/stderr log paths for a job under logsRoot,
// following the job_<id>_stdout.log / job_<id>_stderr.log convention.
func ForJob(logsRoot string, jobID int64) Paths {
	return Paths{
		Stdout: filepath.Join(logsRoot, fmt.Sprintf("job_%d_stdout.log", jobID)),
		Stderr: filepath.Join(logsRoot, fmt.Sprintf("job_%d_stderr.log", jobID)),
	}
}

// Result is the outcome of a single execution, written back into the
// job's result_metadata on a successful spawn.
type Result struct {
	ReturnCode int
	StartedAt  time.Time
	EndedAt    time.Time
	DurationS  float64
	TraceID    string
}

func (r Result) Metadata() map[string]any {
	return map[string]any{
		"returncode":      r.ReturnCode,
		"start_timestamp": r.StartedAt.Format(time.RFC3339Nano),
		"end_timestamp":   r.EndedAt.Format(time.RFC3339Nano),
		"duration_s":      r.DurationS,
		"trace_id":        r.TraceID,
	}
}

// Run spawns the job's payload, blocks until it exits, and returns the
// result. It returns an error only when the logs root or the log files
// cannot be created or the shell cannot be started at all; a non-zero exit
// code is not an error, it is recorded in Result.ReturnCode, per spec
// C5/§4.4.
//
// ctx is expected to outlive node shutdown: the caller is responsible for
// decoupling it from any cancellation tied to an operator stopping the
// node, since a still-running job's child process must not be killed by
// that stop.
func Run(ctx context.Context, job domain.Job, logsRoot string) (Result, error) {
	ctx, span := tracer.Start(ctx, "executor.Run", trace.WithAttributes(attribute.Int64("job_id", job.ID)))
	defer span.End()

	paths := ForJob(logsRoot, job.ID)
	if err := os.MkdirAll(logsRoot, 0o755); err != nil {
		return Result{}, fmt.Errorf("executor: create logs root %s: %w", logsRoot, err)
	}

	stdout, err := os.Create(paths.Stdout)
	if err != nil {
		return Result{}, fmt.Errorf("executor: open stdout log: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.Create(paths.Stderr)
	if err != nil {
		return Result{}, fmt.Errorf("executor: open stderr log: %w", err)
	}
	defer stderr.Close()

	traceID := uuid.NewString()
	start := time.Now().UTC()
	writeStartBanner(stdout, job, traceID, start)

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", job.Payload)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = resolveEnv(job.EnvVariables)
	cmd.Dir = resolveCWD(job.Metadata)

	runErr := cmd.Run()
	end := time.Now().UTC()

	returnCode, spawnErr := exitCode(cmd, runErr)
	if spawnErr != nil {
		span.RecordError(spawnErr)
		return Result{}, fmt.Errorf("executor: spawn job %d: %w", job.ID, spawnErr)
	}

	result := Result{
		ReturnCode: returnCode,
		StartedAt:  start,
		EndedAt:    end,
		DurationS:  end.Sub(start).Seconds(),
		TraceID:    traceID,
	}
	span.SetAttributes(attribute.Int("returncode", returnCode))
	writeEndBanner(stdout, result)
	return result, nil
}

// resolveEnv implements the "inherit or replace wholly" rule: an absent
// (nil) env map inherits the current process environment verbatim; a
// non-nil map, even if empty, replaces it entirely. Merging is deliberately
// not supported.
func resolveEnv(env map[string]string) []string {
	if env == nil {
		return os.Environ()
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func resolveCWD(metadata map[string]any) string {
	if metadata == nil {
		return ""
	}
	if v, ok := metadata["CWD"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// exitCode distinguishes "the shell ran and exited" (any return code,
// including non-zero, is not an error) from "the shell never started"
// (a genuine spawn failure that the caller must surface as FAILED).
func exitCode(cmd *exec.Cmd, runErr error) (int, error) {
	if runErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if ok := asExitError(runErr, &exitErr); ok {
		return exitErr.ExitCode(), nil
	}
	return 0, runErr
}

func asExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

func writeStartBanner(w *os.File, job domain.Job, traceID string, start time.Time) {
	var b strings.Builder
	b.WriteString("===== job start =====\n")
	fmt.Fprintf(&b, "job_id: %d\n", job.ID)
	fmt.Fprintf(&b, "trace_id: %s\n", traceID)
	fmt.Fprintf(&b, "payload: %s\n", job.Payload)
	fmt.Fprintf(&b, "tags: %s\n", strings.Join(job.Tags, ","))
	fmt.Fprintf(&b, "submission_time: %s\n", job.SubmissionTime.Format(time.RFC3339))
	fmt.Fprintf(&b, "start_time: %s\n", start.Format(time.RFC3339))
	fmt.Fprintf(&b, "metadata: %v\n", job.Metadata)
	b.WriteString("======================\n")
	w.WriteString(b.String())
}

func writeEndBanner(w *os.File, result Result) {
	var b strings.Builder
	b.WriteString("===== job end =====\n")
	for k, v := range result.Metadata() {
		fmt.Fprintf(&b, "%s: %v\n", k, v)
	}
	b.WriteString("====================\n")
	w.WriteString(b.String())
}
