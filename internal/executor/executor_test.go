package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/clusterqueue/clusterqueue/internal/domain"
)

func TestRunCapturesExitCode(t *testing.T) {
	dir := t.TempDir()
	job := domain.Job{ID: 1, Payload: "exit 2"}

	result, err := Run(context.Background(), job, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ReturnCode != 2 {
		t.Fatalf("want returncode=2 got=%d", result.ReturnCode)
	}
	if result.DurationS < 0 {
		t.Fatalf("want duration_s >= 0, got %f", result.DurationS)
	}
}

func TestRunZeroExitIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	job := domain.Job{ID: 2, Payload: "true"}

	result, err := Run(context.Background(), job, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ReturnCode != 0 {
		t.Fatalf("want returncode=0 got=%d", result.ReturnCode)
	}
}

func TestRunWritesBannersToStdout(t *testing.T) {
	dir := t.TempDir()
	job := domain.Job{ID: 3, Payload: "echo hello-world"}

	if _, err := Run(context.Background(), job, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "job_3_stdout.log"))
	if err != nil {
		t.Fatalf("read stdout log: %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, "job start") || !strings.Contains(out, "job end") {
		t.Fatalf("want start/end banners in stdout log, got:\n%s", out)
	}
	if !strings.Contains(out, "hello-world") {
		t.Fatalf("want payload output in stdout log, got:\n%s", out)
	}
}

func TestRunEnvReplacesNotMerges(t *testing.T) {
	dir := t.TempDir()
	os.Setenv("CLUSTERQUEUE_TEST_AMBIENT", "should-not-appear")
	defer os.Unsetenv("CLUSTERQUEUE_TEST_AMBIENT")

	job := domain.Job{
		ID:           4,
		Payload:      `echo "$CLUSTERQUEUE_TEST_AMBIENT|$ONLY_VAR"`,
		EnvVariables: map[string]string{"ONLY_VAR": "present"},
	}
	if _, err := Run(context.Background(), job, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "job_4_stdout.log"))
	if err != nil {
		t.Fatalf("read stdout log: %v", err)
	}
	out := string(raw)
	if strings.Contains(out, "should-not-appear") {
		t.Fatalf("ambient env leaked into replaced environment:\n%s", out)
	}
	if !strings.Contains(out, "|present") {
		t.Fatalf("want ONLY_VAR=present in output, got:\n%s", out)
	}
}

func TestRunSurvivesCallerContextCancellation(t *testing.T) {
	dir := t.TempDir()
	job := domain.Job{ID: 6, Payload: "sleep 0.2 && echo still-alive"}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	// Run hands ctx to exec.CommandContext, so a cancelled ctx would kill the
	// child. A caller that must not kill it passes a context decoupled from
	// its own shutdown signal, as worker.Processor does with
	// context.WithoutCancel; cancelling the parent then leaves the child alone.
	result, err := Run(context.WithoutCancel(ctx), job, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ReturnCode != 0 {
		t.Fatalf("want returncode=0 got=%d", result.ReturnCode)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "job_6_stdout.log"))
	if err != nil {
		t.Fatalf("read stdout log: %v", err)
	}
	if !strings.Contains(string(raw), "still-alive") {
		t.Fatalf("want child to run to completion despite caller ctx cancellation, got:\n%s", string(raw))
	}
}

func TestRunUsesMetadataCWD(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	job := domain.Job{
		ID:       5,
		Payload:  "pwd",
		Metadata: map[string]any{"CWD": sub},
	}
	if _, err := Run(context.Background(), job, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "job_5_stdout.log"))
	if err != nil {
		t.Fatalf("read stdout log: %v", err)
	}
	if !strings.Contains(string(raw), sub) {
		t.Fatalf("want cwd %q in output, got:\n%s", sub, string(raw))
	}
}
