// Package chunks encodes a scene plan in parallel and reassembles the
// pieces losslessly.
//
// Non-video streams are held aside before the chunk encodes start and
// merged back after the video concat, so the final artifact keeps its
// audio and subtitles without re-encoding them. A failing chunk
// cancels its siblings and removes every intermediate; a partial final
// artifact is never left behind.
package chunks
