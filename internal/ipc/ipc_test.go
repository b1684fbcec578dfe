package ipc_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"quenc/internal/ipc"
	"quenc/internal/queue"
	"quenc/internal/testsupport"
)

// fakeBackend implements ipc.Backend in memory.
type fakeBackend struct {
	tasks     map[string]*queue.Task
	order     []string
	snapshots map[string]queue.Snapshot
	cancelled []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		tasks:     make(map[string]*queue.Task),
		snapshots: make(map[string]queue.Snapshot),
	}
}

func (b *fakeBackend) Enqueue(_ context.Context, task *queue.Task) (string, error) {
	if task.ID == "" {
		task.ID = fmt.Sprintf("task-%d", len(b.order)+1)
	}
	if existing, ok := b.tasks[task.ID]; ok && !existing.Status.Terminal() {
		return "", queue.ErrDuplicateTask
	}
	task.Status = queue.StatusQueued
	b.tasks[task.ID] = task
	b.order = append(b.order, task.ID)
	return task.ID, nil
}

func (b *fakeBackend) List(context.Context) ([]*queue.Task, error) {
	tasks := make([]*queue.Task, 0, len(b.order))
	for _, id := range b.order {
		if task, ok := b.tasks[id]; ok {
			tasks = append(tasks, task)
		}
	}
	return tasks, nil
}

func (b *fakeBackend) Progress(id string) (queue.Snapshot, bool) {
	snapshot, ok := b.snapshots[id]
	return snapshot, ok
}

func (b *fakeBackend) AllProgress() []queue.Snapshot {
	all := make([]queue.Snapshot, 0, len(b.snapshots))
	for _, snapshot := range b.snapshots {
		all = append(all, snapshot)
	}
	return all
}

func (b *fakeBackend) Cancel(_ context.Context, id string) error {
	if _, ok := b.tasks[id]; !ok {
		return queue.ErrTaskNotFound
	}
	b.cancelled = append(b.cancelled, id)
	b.tasks[id].Status = queue.StatusCancelled
	return nil
}

func (b *fakeBackend) Remove(_ context.Context, id string) error {
	task, ok := b.tasks[id]
	if !ok {
		return queue.ErrTaskNotFound
	}
	if task.Status == queue.StatusRunning {
		return queue.ErrTaskRunning
	}
	delete(b.tasks, id)
	return nil
}

func (b *fakeBackend) Stats(context.Context) (queue.Stats, error) {
	var stats queue.Stats
	for _, task := range b.tasks {
		switch task.Status {
		case queue.StatusQueued:
			stats.Queued++
		case queue.StatusRunning:
			stats.Running++
		case queue.StatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

func startServer(t *testing.T, backend ipc.Backend) *ipc.Client {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "quencd.sock")
	factory := func(input string) *queue.Task {
		return testsupport.NewTask("", input, input+".out.mkv")
	}
	server, err := ipc.NewServer(context.Background(), socket, backend, factory, nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	server.Serve()
	t.Cleanup(server.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestSubmitListRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	client := startServer(t, backend)

	resp, err := client.Submit(*testsupport.NewTask("", "/media/in.mkv", "/media/out.mkv"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("expected assigned id")
	}

	list, err := client.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(list.Tasks))
	}
	if list.Tasks[0].Input != "/media/in.mkv" || list.Tasks[0].Status != "queued" {
		t.Fatalf("unexpected summary: %+v", list.Tasks[0])
	}
}

func TestProgressRoundTrip(t *testing.T) {
	backend := newFakeBackend()
	backend.snapshots["t1"] = queue.Snapshot{TaskID: "t1", Frame: 1234, Percent: 40}
	client := startServer(t, backend)

	resp, err := client.Progress("t1")
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if !resp.Found || resp.Snapshot.Frame != 1234 {
		t.Fatalf("unexpected progress: %+v", resp)
	}

	missing, err := client.Progress("absent")
	if err != nil {
		t.Fatalf("progress absent: %v", err)
	}
	if missing.Found {
		t.Fatal("absent task should not report progress")
	}

	all, err := client.AllProgress()
	if err != nil {
		t.Fatalf("all progress: %v", err)
	}
	if len(all.Snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(all.Snapshots))
	}
}

func TestScanEnqueuesDiscoveredFiles(t *testing.T) {
	backend := newFakeBackend()
	client := startServer(t, backend)

	root := t.TempDir()
	for _, name := range []string{"a.mkv", "b.mp4", "ignore.txt"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	resp, err := client.Scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(resp.IDs) != 2 {
		t.Fatalf("expected 2 enqueued, got %v", resp.IDs)
	}

	progress, err := client.ScanProgress()
	if err != nil {
		t.Fatalf("scan progress: %v", err)
	}
	if progress.Total != 2 {
		t.Fatalf("expected counter 2, got %d", progress.Total)
	}
}

func TestCancelAndRemove(t *testing.T) {
	backend := newFakeBackend()
	client := startServer(t, backend)

	resp, err := client.Submit(*testsupport.NewTask("t1", "/a.mkv", "/a-out.mkv"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	cancelResp, err := client.Cancel(resp.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !cancelResp.Cancelled {
		t.Fatal("expected cancelled ack")
	}

	removeResp, err := client.Remove(resp.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !removeResp.Removed {
		t.Fatal("expected removed ack")
	}

	if _, err := client.Remove("missing"); err == nil {
		t.Fatal("expected error for missing id")
	} else if errors.Is(err, queue.ErrTaskNotFound) {
		t.Fatal("rpc errors arrive as strings, not wrapped sentinels")
	}
}

func TestStatus(t *testing.T) {
	backend := newFakeBackend()
	client := startServer(t, backend)

	if _, err := client.Submit(*testsupport.NewTask("t1", "/a.mkv", "/a-out.mkv")); err != nil {
		t.Fatalf("submit: %v", err)
	}

	status, err := client.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected running daemon")
	}
	if status.QueueStats["queued"] != 1 {
		t.Fatalf("unexpected stats: %+v", status.QueueStats)
	}
	if status.PID == 0 {
		t.Fatal("expected pid")
	}
}
