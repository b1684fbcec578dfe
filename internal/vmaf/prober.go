package vmaf

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"quenc/internal/deps"
	"quenc/internal/services"
)

// commandContext is swapped out by tests.
var commandContext = exec.CommandContext

// ErrMeasurement tags failures to produce a usable score. It wraps the
// external-tool marker while staying distinguishable from encode
// failures.
var ErrMeasurement = fmt.Errorf("%w: measurement failed", services.ErrExternalTool)

// Options tune a measurement run.
type Options struct {
	Pool      PoolMethod
	Threads   int
	Subsample int
	// RefStart and RefEnd trim the reference to a slice, in seconds,
	// for scoring a distorted file that covers only part of it. Both
	// zero compares against the whole reference.
	RefStart float64
	RefEnd   float64
}

// Prober scores an encoded file against its reference.
type Prober interface {
	Score(ctx context.Context, distorted, reference string, opts Options) (float64, error)
}

// FFmpeg measures through ffmpeg's libvmaf filter.
type FFmpeg struct{}

// NewFFmpeg returns a libvmaf-backed Prober.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{}
}

// Score runs libvmaf over the distorted and reference files and returns
// the pooled score.
func (f *FFmpeg) Score(ctx context.Context, distorted, reference string, opts Options) (float64, error) {
	binary, err := deps.ResolveFFmpegPath()
	if err != nil {
		return 0, services.Wrap(ErrMeasurement, "vmaf", "resolve", "", err)
	}

	args := []string{"-hide_banner", "-i", distorted}
	if opts.RefStart > 0 || opts.RefEnd > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", opts.RefStart))
		if opts.RefEnd > 0 {
			args = append(args, "-to", fmt.Sprintf("%.3f", opts.RefEnd))
		}
	}
	args = append(args,
		"-i", reference,
		"-lavfi", filterSpec(opts),
		"-f", "null", "-",
	)
	cmd := commandContext(ctx, binary, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, services.Wrap(ErrMeasurement, "vmaf", "start", "open stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, services.Wrap(ErrMeasurement, "vmaf", "start", "", err)
	}

	score := -1.0
	found := false
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if v, ok := parseScore(scanner.Text()); ok {
			score, found = v, true
		}
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, services.Wrap(ErrMeasurement, "vmaf", "run", "", err)
	}
	if !found {
		return 0, services.Wrap(ErrMeasurement, "vmaf", "run", "no VMAF score in output", nil)
	}
	return score, nil
}

func filterSpec(opts Options) string {
	parts := []string{"pool=" + string(opts.Pool)}
	if opts.Threads > 0 {
		parts = append(parts, fmt.Sprintf("n_threads=%d", opts.Threads))
	}
	if opts.Subsample > 1 {
		parts = append(parts, fmt.Sprintf("n_subsample=%d", opts.Subsample))
	}
	return "libvmaf=" + strings.Join(parts, ":")
}

// parseScore extracts the pooled score from libvmaf's summary line.
func parseScore(line string) (float64, bool) {
	const marker = "VMAF score:"
	idx := strings.Index(line, marker)
	if idx < 0 {
		return 0, false
	}
	value := strings.TrimSpace(line[idx+len(marker):])
	score, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return score, true
}
