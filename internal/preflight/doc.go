// Package preflight verifies the daemon's environment before work
// starts: directory access, free disk space, and external binaries.
package preflight
