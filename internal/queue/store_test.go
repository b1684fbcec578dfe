package queue_test

import (
	"context"
	"errors"
	"testing"

	"quenc/internal/queue"
	"quenc/internal/testsupport"
)

func TestInsertAndGet(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask("t1", "/media/in.mkv", "/media/out.mkv")
	if err := store.Insert(ctx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != queue.StatusQueued {
		t.Fatalf("expected queued, got %s", got.Status)
	}
	if got.Input != "/media/in.mkv" || got.Output != "/media/out.mkv" {
		t.Fatalf("round trip lost paths: %+v", got)
	}
	if got.TargetScore != 97 || got.MaxCRF != 28 {
		t.Fatalf("round trip lost encoding settings: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("timestamps not recorded")
	}
}

func TestInsertRejectsActiveDuplicate(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask("t1", "/media/in.mkv", "/media/out.mkv")
	if err := store.Insert(ctx, task); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := store.Insert(ctx, testsupport.NewTask("t1", "/media/other.mkv", "/media/other-out.mkv"))
	if !errors.Is(err, queue.ErrDuplicateTask) {
		t.Fatalf("expected ErrDuplicateTask, got %v", err)
	}
}

func TestInsertReplacesFinishedDuplicate(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.Insert(ctx, testsupport.NewTask("t1", "/a.mkv", "/a-out.mkv")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.UpdateStatus(ctx, "t1", queue.StatusCompleted, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.Insert(ctx, testsupport.NewTask("t1", "/b.mkv", "/b-out.mkv")); err != nil {
		t.Fatalf("re-insert after completion: %v", err)
	}
	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Input != "/b.mkv" || got.Status != queue.StatusQueued {
		t.Fatalf("expected fresh queued task, got %+v", got)
	}
}

func TestInsertValidates(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	task := testsupport.NewTask("t1", "/a.mkv", "/a-out.mkv")
	task.TargetScore = 150
	if err := store.Insert(context.Background(), task); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNextQueuedOrdersByCreation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Insert(ctx, testsupport.NewTask(id, "/"+id+".mkv", "/"+id+"-out.mkv")); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	next, err := store.NextQueued(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next == nil || next.ID != "a" {
		t.Fatalf("expected task a first, got %+v", next)
	}
	if err := store.UpdateStatus(ctx, "a", queue.StatusRunning, ""); err != nil {
		t.Fatalf("start a: %v", err)
	}
	next, err = store.NextQueued(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next == nil || next.ID != "b" {
		t.Fatalf("expected task b next, got %+v", next)
	}
}

func TestNextQueuedEmpty(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	next, err := store.NextQueued(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil on empty queue, got %+v", next)
	}
}

func TestRemoveRules(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.Insert(ctx, testsupport.NewTask("t1", "/a.mkv", "/a-out.mkv")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.UpdateStatus(ctx, "t1", queue.StatusRunning, ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := store.Remove(ctx, "t1"); !errors.Is(err, queue.ErrTaskRunning) {
		t.Fatalf("expected ErrTaskRunning, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "t1", queue.StatusCompleted, ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.Remove(ctx, "t1"); err != nil {
		t.Fatalf("remove completed: %v", err)
	}
	if _, err := store.GetByID(ctx, "t1"); !errors.Is(err, queue.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
	if err := store.Remove(ctx, "missing"); !errors.Is(err, queue.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound for missing id, got %v", err)
	}
}

func TestMarkInterrupted(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := store.Insert(ctx, testsupport.NewTask(id, "/"+id+".mkv", "/"+id+"-out.mkv")); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := store.UpdateStatus(ctx, "a", queue.StatusRunning, ""); err != nil {
		t.Fatalf("start a: %v", err)
	}

	affected, err := store.MarkInterrupted(ctx, "daemon restarted")
	if err != nil {
		t.Fatalf("mark interrupted: %v", err)
	}
	if affected != 1 {
		t.Fatalf("expected 1 affected, got %d", affected)
	}
	got, err := store.GetByID(ctx, "a")
	if err != nil {
		t.Fatalf("get a: %v", err)
	}
	if got.Status != queue.StatusFailed || got.ErrorMessage != "daemon restarted" {
		t.Fatalf("expected failed with cause, got %+v", got)
	}
	got, err = store.GetByID(ctx, "b")
	if err != nil {
		t.Fatalf("get b: %v", err)
	}
	if got.Status != queue.StatusQueued {
		t.Fatalf("queued task should be untouched, got %s", got.Status)
	}
}

func TestRecordResult(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := store.Insert(ctx, testsupport.NewTask("t1", "/a.mkv", "/a-out.mkv")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.RecordResult(ctx, "t1", 19, 97.4, true); err != nil {
		t.Fatalf("record result: %v", err)
	}
	got, err := store.GetByID(ctx, "t1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ResultCRF != 19 || got.ResultScore != 97.4 || !got.TargetMet {
		t.Fatalf("result not recorded: %+v", got)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Insert(ctx, testsupport.NewTask(id, "/"+id+".mkv", "/"+id+"-out.mkv")); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := store.UpdateStatus(ctx, "b", queue.StatusFailed, "boom"); err != nil {
		t.Fatalf("fail b: %v", err)
	}

	failed, err := store.List(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "b" || failed[0].ErrorMessage != "boom" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}
	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(all))
	}
}

func TestStats(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := store.Insert(ctx, testsupport.NewTask(id, "/"+id+".mkv", "/"+id+"-out.mkv")); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := store.UpdateStatus(ctx, "a", queue.StatusRunning, ""); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := store.UpdateStatus(ctx, "b", queue.StatusCompleted, ""); err != nil {
		t.Fatalf("complete b: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Queued != 1 || stats.Running != 1 || stats.Completed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Total() != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total())
	}
}
