// Package encode runs ffmpeg video encodes and reports their progress.
//
// Encodes produce video-only output; container metadata and the other
// streams are reattached after assembly. Cancellation kills the ffmpeg
// process and removes the partial output file.
package encode
