package worker

import (
	"context"
	"testing"
	"time"

	"github.com/clusterqueue/clusterqueue/internal/domain"
	"github.com/clusterqueue/clusterqueue/internal/logger"
	"github.com/clusterqueue/clusterqueue/internal/notify"
	"github.com/clusterqueue/clusterqueue/internal/queue"
	"github.com/clusterqueue/clusterqueue/internal/store"
)

func newTestQueue(t *testing.T) *queue.Service {
	t.Helper()
	db, err := store.Open(store.SQLite, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.ExecuteMany(context.Background(), domain.CreateTableStatements(store.SQLite)); err != nil {
		t.Fatalf("create tables: %v", err)
	}
	return queue.New(db)
}

func TestProcessorTickRunsClaimedJobToCompletion(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := domain.NewJob("exit 0", nil, nil, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	id, err := q.Submit(ctx, job)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	p := New(0, Config{
		Hostname:      "host-a",
		JobLogsRoot:   t.TempDir(),
		PollBatchSize: 10,
	}, q, notify.Noop{}, logger.NewNop())

	if err := p.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	final, err := q.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != domain.JobCompleted {
		t.Fatalf("want status=%q got=%q", domain.JobCompleted, final.Status)
	}
	code, ok := final.ResultReturnCode()
	if !ok || code != 0 {
		t.Fatalf("want returncode=0, got (%d, %v)", code, ok)
	}
	if final.AssignedNode != "host-a" {
		t.Fatalf("want assigned_node=host-a got=%q", final.AssignedNode)
	}
}

func TestProcessorTickNonZeroExitIsCompletedNotFailed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	job, err := domain.NewJob("exit 7", nil, nil, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	id, err := q.Submit(ctx, job)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	p := New(0, Config{Hostname: "host-a", JobLogsRoot: t.TempDir(), PollBatchSize: 10}, q, notify.Noop{}, logger.NewNop())
	if err := p.tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	final, err := q.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != domain.JobCompleted {
		t.Fatalf("want status=%q got=%q", domain.JobCompleted, final.Status)
	}
	code, _ := final.ResultReturnCode()
	if code != 7 {
		t.Fatalf("want returncode=7 got=%d", code)
	}
}

func TestProcessorTickSurvivesContextCancellationDuringExecution(t *testing.T) {
	q := newTestQueue(t)
	submitCtx := context.Background()

	job, err := domain.NewJob("sleep 0.2 && exit 0", nil, nil, nil, time.Now().UTC())
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}
	id, err := q.Submit(submitCtx, job)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	p := New(0, Config{Hostname: "host-a", JobLogsRoot: t.TempDir(), PollBatchSize: 10}, q, notify.Noop{}, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// Give the processor time to claim and start running the job (fast
		// DB operations) before pulling the rug out from under the loop's
		// context, the way a node shutdown would mid-execution.
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	// tick's final heartbeat legitimately fails once ctx is cancelled; the
	// point of this test is that the job itself still reaches COMPLETED
	// rather than being killed or left RUNNING.
	_ = p.tick(ctx)

	final, err := q.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != domain.JobCompleted {
		t.Fatalf("want status=%q (job survives node shutdown), got=%q", domain.JobCompleted, final.Status)
	}
}

func TestProcessorTickSnoozesWhenQueueEmpty(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	p := New(0, Config{
		Hostname:       "host-a",
		JobLogsRoot:    t.TempDir(),
		SnoozeDuration: 0,
		PollBatchSize:  10,
	}, q, notify.Noop{}, logger.NewNop())

	if err := p.tick(ctx); err != nil {
		t.Fatalf("tick on empty queue: %v", err)
	}
}
