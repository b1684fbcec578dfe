package ipc

import "quenc/internal/queue"

// SubmitRequest enqueues one task. An empty ID gets one assigned.
type SubmitRequest struct {
	Task queue.Task
}

// SubmitResponse carries the stored task id.
type SubmitResponse struct {
	ID string
}

// ListRequest fetches queue contents.
type ListRequest struct{}

// TaskSummary is the wire form of a queued task.
type TaskSummary struct {
	ID           string
	Input        string
	Output       string
	Encoder      string
	Mode         string
	Status       string
	ErrorMessage string
	ResultCRF    int
	ResultScore  float64
	TargetMet    bool
	CreatedAt    string
	UpdatedAt    string
}

// ListResponse carries task summaries in creation order.
type ListResponse struct {
	Tasks []TaskSummary
}

// ProgressRequest fetches the live snapshot for one task.
type ProgressRequest struct {
	ID string
}

// ProgressResponse carries the snapshot; Found is false when the task
// is not running.
type ProgressResponse struct {
	Found    bool
	Snapshot queue.Snapshot
}

// AllProgressRequest fetches every live snapshot.
type AllProgressRequest struct{}

// AllProgressResponse carries the snapshots.
type AllProgressResponse struct {
	Snapshots []queue.Snapshot
}

// ScanRequest enqueues every media file under Root.
type ScanRequest struct {
	Root string
}

// ScanResponse reports what the scan enqueued.
type ScanResponse struct {
	IDs     []string
	Skipped []string
}

// ScanProgressRequest fetches the running scan counter.
type ScanProgressRequest struct{}

// ScanProgressResponse carries the count of files found so far.
type ScanProgressResponse struct {
	Total int64
}

// RemoveRequest deletes a non-running task.
type RemoveRequest struct {
	ID string
}

// RemoveResponse acknowledges the removal.
type RemoveResponse struct {
	Removed bool
}

// CancelRequest stops a running or queued task.
type CancelRequest struct {
	ID string
}

// CancelResponse acknowledges the cancellation.
type CancelResponse struct {
	Cancelled bool
}

// StatusRequest fetches daemon health.
type StatusRequest struct{}

// StatusResponse reports daemon health and queue occupancy.
type StatusResponse struct {
	Running    bool
	PID        int
	SocketPath string
	QueueStats map[string]int
}
