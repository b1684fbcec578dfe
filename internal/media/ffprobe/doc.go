// Package ffprobe inspects media files through the ffprobe binary.
//
// Frame counts favor container metadata over decoding: matroska tags
// first, then stream frame counts, then a full packet count as the
// last resort.
package ffprobe
