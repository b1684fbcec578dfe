// Package services holds the shared error taxonomy used by components
// that wrap external tools (ffmpeg, ffprobe). Sentinel markers let
// callers classify failures with errors.Is without parsing messages.
package services
