package queue

import "errors"

var (
	// ErrDuplicateTask means the id is already queued or running.
	ErrDuplicateTask = errors.New("task id already exists")
	// ErrTaskNotFound means no task has the id.
	ErrTaskNotFound = errors.New("task not found")
	// ErrTaskRunning means the operation only applies to idle tasks.
	ErrTaskRunning = errors.New("task is running")
)
