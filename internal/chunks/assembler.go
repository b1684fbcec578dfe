package chunks

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"quenc/internal/deps"
	"quenc/internal/services"
)

// commandContext is swapped out by tests.
var commandContext = exec.CommandContext

// Assembler covers the lossless remux steps around the chunk encodes.
type Assembler interface {
	// ExtractStreams copies the non-video streams of input to output.
	// Returns false with a nil error when input has none.
	ExtractStreams(ctx context.Context, input, output string) (bool, error)
	// Concat joins the files named by an ffmpeg concat demuxer list
	// into output with stream copy.
	Concat(ctx context.Context, listPath, output string) error
	// Merge combines the encoded video with the held-aside streams.
	Merge(ctx context.Context, video, streams, output string) error
}

// FFmpegAssembler remuxes through the ffmpeg binary.
type FFmpegAssembler struct{}

// NewFFmpegAssembler returns an ffmpeg-backed Assembler.
func NewFFmpegAssembler() *FFmpegAssembler {
	return &FFmpegAssembler{}
}

func (a *FFmpegAssembler) ExtractStreams(ctx context.Context, input, output string) (bool, error) {
	err := a.run(ctx, "extract_streams",
		"-hide_banner", "-y",
		"-i", input,
		"-vn",
		"-acodec", "copy",
		"-scodec", "copy",
		output)
	if err != nil {
		if strings.Contains(err.Error(), "does not contain any stream") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *FFmpegAssembler) Concat(ctx context.Context, listPath, output string) error {
	return a.run(ctx, "concat",
		"-hide_banner", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		output)
}

func (a *FFmpegAssembler) Merge(ctx context.Context, video, streams, output string) error {
	return a.run(ctx, "merge",
		"-hide_banner", "-y",
		"-i", video,
		"-i", streams,
		"-map", "0:v",
		"-map", "1",
		"-c", "copy",
		output)
}

func (a *FFmpegAssembler) run(ctx context.Context, operation string, args ...string) error {
	binary, err := deps.ResolveFFmpegPath()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "assembler", operation, "", err)
	}
	var stderr bytes.Buffer
	cmd := commandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, "assembler", operation, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}
