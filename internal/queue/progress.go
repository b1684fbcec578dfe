package queue

import "sync"

// Snapshot is the live progress of one running task. Snapshots are
// replaced wholesale; only the latest write is kept.
type Snapshot struct {
	TaskID      string
	FPS         float64
	Frame       int64
	TotalFrames int64
	Percent     float64
	Bytes       int64
	CurrentFile int
	TotalFiles  int
	FileName    string
}

// ProgressTable keeps the current snapshot per running task.
type ProgressTable struct {
	mu        sync.RWMutex
	snapshots map[string]Snapshot
}

// NewProgressTable returns an empty table.
func NewProgressTable() *ProgressTable {
	return &ProgressTable{snapshots: make(map[string]Snapshot)}
}

// Set replaces the snapshot for a task.
func (t *ProgressTable) Set(snapshot Snapshot) {
	t.mu.Lock()
	t.snapshots[snapshot.TaskID] = snapshot
	t.mu.Unlock()
}

// Get returns the snapshot for a task, if one exists.
func (t *ProgressTable) Get(taskID string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot, ok := t.snapshots[taskID]
	return snapshot, ok
}

// Drop removes a finished task's snapshot.
func (t *ProgressTable) Drop(taskID string) {
	t.mu.Lock()
	delete(t.snapshots, taskID)
	t.mu.Unlock()
}

// All returns every current snapshot.
func (t *ProgressTable) All() []Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	all := make([]Snapshot, 0, len(t.snapshots))
	for _, snapshot := range t.snapshots {
		all = append(all, snapshot)
	}
	return all
}
