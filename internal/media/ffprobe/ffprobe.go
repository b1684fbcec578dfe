package ffprobe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"quenc/internal/deps"
	"quenc/internal/services"
)

// commandContext is swapped out by tests.
var commandContext = exec.CommandContext

// Inspector answers media questions for the rest of the pipeline.
type Inspector interface {
	Duration(ctx context.Context, path string) (float64, error)
	FrameRate(ctx context.Context, path string) (float64, error)
	FrameCount(ctx context.Context, path string) (int64, error)
	FileSize(path string) (int64, error)
}

// CLI shells out to ffprobe.
type CLI struct{}

// NewCLI returns an ffprobe-backed Inspector.
func NewCLI() *CLI {
	return &CLI{}
}

// Duration returns the container duration in seconds.
func (c *CLI) Duration(ctx context.Context, path string) (float64, error) {
	out, err := c.run(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "ffprobe", "duration", fmt.Sprintf("parse %q", strings.TrimSpace(out)), err)
	}
	return duration, nil
}

// FrameRate returns the average video frame rate in frames per second.
func (c *CLI) FrameRate(ctx context.Context, path string) (float64, error) {
	out, err := c.run(ctx,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	if err != nil {
		return 0, err
	}
	rate, err := parseRational(strings.TrimSpace(out))
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "ffprobe", "frame_rate", "", err)
	}
	return rate, nil
}

// FrameCount returns the number of video frames in path. Matroska
// frame-count tags are consulted first; decoding the stream to count
// packets is the fallback for containers without the metadata.
func (c *CLI) FrameCount(ctx context.Context, path string) (int64, error) {
	attempts := [][]string{
		{
			"-v", "error",
			"-select_streams", "v:0",
			"-show_entries", "stream_tags=NUMBER_OF_FRAMES-eng",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path,
		},
		{
			"-v", "error",
			"-select_streams", "v:0",
			"-show_entries", "stream_tags=NUMBER_OF_FRAMES",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path,
		},
		{
			"-v", "error",
			"-select_streams", "v:0",
			"-count_packets",
			"-show_entries", "stream=nb_read_packets",
			"-of", "default=noprint_wrappers=1:nokey=1",
			path,
		},
	}
	var lastErr error
	for _, args := range attempts {
		out, err := c.run(ctx, args...)
		if err != nil {
			lastErr = err
			continue
		}
		count, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
		if err != nil || count <= 0 {
			continue
		}
		return count, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no frame count reported for %s", path)
	}
	return 0, services.Wrap(services.ErrExternalTool, "ffprobe", "frame_count", "", lastErr)
}

// FileSize returns the size of path in bytes.
func (c *CLI) FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}

func (c *CLI) run(ctx context.Context, args ...string) (string, error) {
	binary, err := deps.ResolveFFprobePath()
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "ffprobe", "resolve", "", err)
	}
	var stdout, stderr bytes.Buffer
	cmd := commandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		return "", services.Wrap(services.ErrExternalTool, "ffprobe", "run", detail, err)
	}
	return stdout.String(), nil
}

// parseRational converts ffprobe rate strings like "24000/1001" or
// "25" to a float.
func parseRational(value string) (float64, error) {
	if value == "" || value == "0/0" || value == "N/A" {
		return 0, fmt.Errorf("no frame rate reported")
	}
	num, den, found := strings.Cut(value, "/")
	if !found {
		return strconv.ParseFloat(value, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", value, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("parse frame rate %q: bad denominator", value)
	}
	return n / d, nil
}
