package crfsearch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"quenc/internal/deps"
	"quenc/internal/media"
	"quenc/internal/media/ffprobe"
	"quenc/internal/services"
)

// commandContext is swapped out by tests.
var commandContext = exec.CommandContext

// sampleSliceSeconds is how much video each sample slice keeps.
const sampleSliceSeconds = 15.0

// FFmpegSampler builds a short reference for long inputs by stream
// copying one slice per interval and concatenating them. Inputs no
// longer than twice the interval are probed whole.
type FFmpegSampler struct {
	inspector ffprobe.Inspector
	interval  time.Duration
}

// NewFFmpegSampler returns a sampler slicing every interval.
func NewFFmpegSampler(inspector ffprobe.Inspector, interval time.Duration) *FFmpegSampler {
	return &FFmpegSampler{inspector: inspector, interval: interval}
}

// Sample returns a condensed reference for input, or input itself when
// it is short enough. cleanup removes any temporaries and is non-nil
// on success.
func (s *FFmpegSampler) Sample(ctx context.Context, input, workDir, taskID string) (string, func(), error) {
	duration, err := s.inspector.Duration(ctx, input)
	if err != nil {
		return "", nil, err
	}
	interval := s.interval.Seconds()
	if interval <= 0 || duration <= 2*interval {
		return input, func() {}, nil
	}

	var temps []string
	cleanup := func() {
		for _, path := range temps {
			os.Remove(path)
		}
	}

	var slices []string
	for i := 0; ; i++ {
		start := float64(i) * interval
		if start >= duration {
			break
		}
		length := sampleSliceSeconds
		if start+length > duration {
			length = duration - start
		}
		slice := filepath.Join(workDir, fmt.Sprintf("%s.sample%03d.mkv", taskID, i))
		if err := s.cut(ctx, input, slice, start, length); err != nil {
			cleanup()
			return "", nil, err
		}
		temps = append(temps, slice)
		slices = append(slices, slice)
	}

	listPath := filepath.Join(workDir, taskID+".samples.txt")
	temps = append(temps, listPath)
	if err := media.WriteConcatList(listPath, slices); err != nil {
		cleanup()
		return "", nil, err
	}
	sample := filepath.Join(workDir, taskID+".sample.mkv")
	temps = append(temps, sample)
	if err := s.concat(ctx, listPath, sample); err != nil {
		cleanup()
		return "", nil, err
	}
	return sample, cleanup, nil
}

func (s *FFmpegSampler) cut(ctx context.Context, input, output string, start, length float64) error {
	return s.run(ctx, "sample",
		"-hide_banner", "-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-i", input,
		"-t", fmt.Sprintf("%.3f", length),
		"-map", "0:v:0",
		"-c", "copy",
		"-an", "-sn", "-dn",
		output)
}

func (s *FFmpegSampler) concat(ctx context.Context, listPath, output string) error {
	return s.run(ctx, "concat",
		"-hide_banner", "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		output)
}

func (s *FFmpegSampler) run(ctx context.Context, operation string, args ...string) error {
	binary, err := deps.ResolveFFmpegPath()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "sampler", operation, "", err)
	}
	var stderr bytes.Buffer
	cmd := commandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, "sampler", operation, strings.TrimSpace(stderr.String()), err)
	}
	return nil
}
