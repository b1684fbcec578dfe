// Package scheduler starts queued tasks, bounds how many run at once,
// and owns their cancellation.
//
// The run loop polls the store and launches one goroutine per task; a
// buffered channel caps concurrency. Cancel is synchronous: it returns
// only after the task's goroutine has torn down its processes and
// temp files.
package scheduler
