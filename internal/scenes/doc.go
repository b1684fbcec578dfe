// Package scenes detects scene cuts and turns them into a chunk plan
// for parallel encoding.
//
// Cuts come from ffmpeg's select/showinfo filters. Cuts closer
// together than the configured minimum are merged, and when detection
// fails or finds nothing the planner falls back to fixed-length
// chunks so chunked encodes always have a plan.
package scenes
