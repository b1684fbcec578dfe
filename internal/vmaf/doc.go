// Package vmaf measures perceptual quality with ffmpeg's libvmaf
// filter and pools per-frame scores into a single number.
package vmaf
