package encode

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"quenc/internal/deps"
	"quenc/internal/services"
)

// commandContext is swapped out by tests.
var commandContext = exec.CommandContext

// ErrEncode tags encode invocations that fail or die mid-stream. It
// wraps the external-tool marker while staying distinguishable from
// measurement failures.
var ErrEncode = fmt.Errorf("%w: encode failed", services.ErrExternalTool)

// Spec describes one encode invocation.
type Spec struct {
	Input       string
	Output      string
	Encoder     Encoder
	CRF         int
	Preset      string
	PixelFormat string
	// ExtraParams is an encoder-specific flag string appended verbatim.
	ExtraParams string
	// Start and End bound the encode to a slice of the input, in
	// seconds. Both zero means the whole file.
	Start float64
	End   float64
}

// ProgressFunc receives status updates while an encode runs.
type ProgressFunc func(Progress)

// Runner executes encodes.
type Runner interface {
	Encode(ctx context.Context, spec Spec, onProgress ProgressFunc) error
}

// FFmpeg runs encodes through the ffmpeg binary.
type FFmpeg struct{}

// NewFFmpeg returns an ffmpeg-backed Runner.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{}
}

// Encode runs ffmpeg per spec, streaming parsed progress to onProgress.
// On failure or cancellation the partial output file is removed.
func (f *FFmpeg) Encode(ctx context.Context, spec Spec, onProgress ProgressFunc) error {
	binary, err := deps.ResolveFFmpegPath()
	if err != nil {
		return services.Wrap(ErrEncode, "encode", "resolve", "", err)
	}

	args := buildArgs(spec)
	cmd := commandContext(ctx, binary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return services.Wrap(ErrEncode, "encode", "start", "open stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return services.Wrap(ErrEncode, "encode", "start", "", err)
	}

	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitStatusLines)
	for scanner.Scan() {
		line := scanner.Text()
		if p, ok := parseProgress(line); ok {
			if onProgress != nil {
				onProgress(p)
			}
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			tail = append(tail, trimmed)
			if len(tail) > 8 {
				tail = tail[1:]
			}
		}
	}

	if err := cmd.Wait(); err != nil {
		os.Remove(spec.Output)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := strings.Join(tail, " | ")
		return services.Wrap(ErrEncode, "encode", "run", detail, err)
	}
	if ctx.Err() != nil {
		os.Remove(spec.Output)
		return ctx.Err()
	}
	return nil
}

// buildArgs assembles the ffmpeg command line for a spec. Output is
// video-only; audio and subtitles travel separately until assembly.
func buildArgs(spec Spec) []string {
	args := []string{"-hide_banner", "-y"}
	args = append(args, "-i", spec.Input)
	if spec.Start > 0 || spec.End > 0 {
		args = append(args, "-ss", formatSeconds(spec.Start))
		if spec.End > 0 {
			args = append(args, "-to", formatSeconds(spec.End))
		}
	}
	args = append(args,
		"-map", "0:v:0",
		"-map_metadata", "-1",
		"-c:v", spec.Encoder.CodecName(),
	)
	if spec.Preset != "" {
		args = append(args, "-preset", spec.Preset)
	}
	if spec.ExtraParams != "" {
		args = append(args, strings.Fields(spec.ExtraParams)...)
	}
	args = append(args, spec.Encoder.qualityArgs(spec.CRF)...)
	if spec.PixelFormat != "" {
		args = append(args, "-pix_fmt", spec.PixelFormat)
	}
	args = append(args, "-an", "-sn", "-dn", spec.Output)
	return args
}

func formatSeconds(v float64) string {
	return fmt.Sprintf("%.3f", v)
}
