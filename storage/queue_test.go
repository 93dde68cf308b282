package storage

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"serpwatch/models"
)

func newTestQueue(t *testing.T) *QueueStore {
	t.Helper()
	store, err := NewQueueStore(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("failed to open queue store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testJob(query string) *models.Job {
	return &models.Job{
		ID:          uuid.New(),
		Query:       query,
		Location:    "Austin, Texas, United States",
		Platform:    "google",
		SubmittedAt: time.Now(),
	}
}

func TestQueueLifecycle(t *testing.T) {
	store := newTestQueue(t)
	job := testJob("car insurance")

	if err := store.Enqueue(job); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	record, err := store.PeekSubmitted()
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if record == nil {
		t.Fatalf("expected a submitted record")
	}
	if record.Job.ID != job.ID {
		t.Fatalf("unexpected job id %s", record.Job.ID)
	}
	if record.Job.Query != "car insurance" {
		t.Fatalf("unexpected query %q", record.Job.Query)
	}

	if err := store.MoveToInProgress(job.ID); err != nil {
		t.Fatalf("move to in_progress failed: %v", err)
	}
	if err := store.MoveToCompleted(job.ID); err != nil {
		t.Fatalf("move to completed failed: %v", err)
	}

	// exactly one pool holds the job at the end
	for _, pool := range []models.Pool{models.PoolSubmitted, models.PoolInProgress} {
		records, err := store.ListByPool(pool)
		if err != nil {
			t.Fatalf("list %s failed: %v", pool, err)
		}
		if len(records) != 0 {
			t.Fatalf("expected %s empty, found %d records", pool, len(records))
		}
	}

	completed, err := store.ListByPool(models.PoolCompleted)
	if err != nil {
		t.Fatalf("list completed failed: %v", err)
	}
	if len(completed) != 1 {
		t.Fatalf("expected 1 completed record, got %d", len(completed))
	}
	if completed[0].MovedToProgressAt == nil || completed[0].CompletedAt == nil {
		t.Fatalf("expected transition timestamps to be set")
	}
}

func TestMoveFromWrongPool(t *testing.T) {
	store := newTestQueue(t)
	job := testJob("plumber near me")

	if err := store.Enqueue(job); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	// completed requires the job to be in in_progress
	err := store.MoveToCompleted(job.ID)
	if !errors.Is(err, ErrNotInPool) {
		t.Fatalf("expected ErrNotInPool, got %v", err)
	}

	// job must be untouched in submitted
	records, err := store.ListByPool(models.PoolSubmitted)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("failed transition must not move the job, submitted has %d", len(records))
	}
}

func TestMoveUnknownJob(t *testing.T) {
	store := newTestQueue(t)

	err := store.MoveToInProgress(uuid.New())
	if !errors.Is(err, ErrNotInPool) {
		t.Fatalf("expected ErrNotInPool for unknown job, got %v", err)
	}
}

func TestSubmittedPoolBackups(t *testing.T) {
	store := newTestQueue(t)

	if err := store.Enqueue(testJob("first")); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if err := store.Enqueue(testJob("second")); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM queue_backups`).Scan(&count); err != nil {
		t.Fatalf("count backups: %v", err)
	}
	// one snapshot per submitted-pool mutation
	if count != 2 {
		t.Fatalf("expected 2 backup snapshots, got %d", count)
	}

	// the second snapshot was taken before the second enqueue mutated the pool
	var snapshot string
	if err := store.db.QueryRow(`SELECT snapshot FROM queue_backups ORDER BY id DESC LIMIT 1`).Scan(&snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot == "" || snapshot == "null" {
		t.Fatalf("expected a JSON snapshot, got %q", snapshot)
	}
}

func TestDrainActive(t *testing.T) {
	store := newTestQueue(t)

	first := testJob("first")
	second := testJob("second")
	third := testJob("third")
	for _, job := range []*models.Job{first, second, third} {
		if err := store.Enqueue(job); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	if err := store.MoveToInProgress(first.ID); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	drained, err := store.DrainActive()
	if err != nil {
		t.Fatalf("drain failed: %v", err)
	}
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained records, got %d", len(drained))
	}

	completed, err := store.ListByPool(models.PoolCompleted)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(completed) != 3 {
		t.Fatalf("expected 3 completed records, got %d", len(completed))
	}

	record, err := store.PeekSubmitted()
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if record != nil {
		t.Fatalf("submitted pool should be empty after drain")
	}
}

func TestPeekEmptyQueue(t *testing.T) {
	store := newTestQueue(t)

	record, err := store.PeekSubmitted()
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record on empty queue")
	}
}

func TestCommands(t *testing.T) {
	store := newTestQueue(t)

	_, err := store.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`,
		string(models.CmdRunPlatform), `{"platform": "bing"}`)
	if err != nil {
		t.Fatalf("insert command: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending commands: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("expected 1 pending command, got %d", len(cmds))
	}
	if cmds[0].Command != models.CmdRunPlatform {
		t.Fatalf("unexpected command %s", cmds[0].Command)
	}

	params, err := store.ParseCommandParams(&cmds[0])
	if err != nil {
		t.Fatalf("parse params: %v", err)
	}
	if params.Platform != "bing" {
		t.Fatalf("unexpected platform param %q", params.Platform)
	}

	if err := store.MarkCommandProcessed(cmds[0].ID); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	cmds, err = store.GetPendingCommands()
	if err != nil {
		t.Fatalf("get pending commands: %v", err)
	}
	if len(cmds) != 0 {
		t.Fatalf("expected no pending commands, got %d", len(cmds))
	}
}
