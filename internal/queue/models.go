package queue

import (
	"fmt"
	"strings"
	"time"

	"quenc/internal/encode"
	"quenc/internal/vmaf"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Mode selects the encode strategy.
type Mode string

const (
	// ModeDefault searches once over the whole file and encodes it in
	// one pass.
	ModeDefault Mode = "default"
	// ModeChunked splits at scene cuts and encodes chunks in parallel.
	ModeChunked Mode = "chunked"
)

// Task is one queued encode.
type Task struct {
	ID            string
	Input         string
	Output        string
	Encoder       string
	Mode          Mode
	TargetScore   float64
	MaxCRF        int
	Pool          string
	VMAFThreads   int
	VMAFSubsample int
	PixelFormat   string
	Preset        string
	ExtraParams   string
	SceneSplitMin float64
	SampleEvery   string
	Status        Status
	ErrorMessage  string
	ResultCRF     int
	ResultScore   float64
	TargetMet     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks the task is runnable.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task id must be set")
	}
	if strings.TrimSpace(t.Input) == "" {
		return fmt.Errorf("task input must be set")
	}
	if strings.TrimSpace(t.Output) == "" {
		return fmt.Errorf("task output must be set")
	}
	if _, err := encode.ParseEncoder(t.Encoder); err != nil {
		return err
	}
	if t.Mode != ModeDefault && t.Mode != ModeChunked {
		return fmt.Errorf("unknown mode %q", t.Mode)
	}
	if t.TargetScore <= 0 || t.TargetScore > 100 {
		return fmt.Errorf("target score %v outside (0, 100]", t.TargetScore)
	}
	if t.MaxCRF < 0 {
		return fmt.Errorf("max crf must not be negative")
	}
	if _, err := vmaf.ParsePool(t.Pool); err != nil {
		return err
	}
	if t.VMAFThreads < 1 {
		return fmt.Errorf("vmaf threads must be at least 1")
	}
	if t.VMAFSubsample < 1 {
		return fmt.Errorf("vmaf subsample must be at least 1")
	}
	if t.Mode == ModeChunked && t.SceneSplitMin <= 0 {
		return fmt.Errorf("scene split minimum must be positive")
	}
	if t.SampleEvery != "" {
		if _, err := time.ParseDuration(t.SampleEvery); err != nil {
			return fmt.Errorf("sample interval: %w", err)
		}
	}
	return nil
}

// Stats summarizes queue occupancy by status.
type Stats struct {
	Queued    int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

// Total returns the task count across all statuses.
func (s Stats) Total() int {
	return s.Queued + s.Running + s.Completed + s.Failed + s.Cancelled
}
