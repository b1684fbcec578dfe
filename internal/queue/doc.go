// Package queue persists encode tasks in sqlite and keeps live
// progress snapshots in memory.
package queue
