// Package ipc exposes daemon control via JSON-RPC over a Unix domain
// socket and provides the matching client.
package ipc
