package scenes

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"

	"quenc/internal/deps"
	"quenc/internal/logging"
	"quenc/internal/media/ffprobe"
)

// commandContext is swapped out by tests.
var commandContext = exec.CommandContext

// ErrSceneDetection tags cut detection failures. Planning recovers by
// falling back to fixed-length chunks instead of failing the encode.
var ErrSceneDetection = errors.New("scene detection failed")

// sceneThreshold is the scene change score above which a frame counts
// as a cut.
const sceneThreshold = "0.4"

var ptsTimeRe = regexp.MustCompile(`pts_time:(\d+(?:\.\d+)?)`)

// Splitter produces chunk plans for inputs.
type Splitter struct {
	inspector ffprobe.Inspector
	log       *slog.Logger
}

// NewSplitter returns a Splitter using inspector for durations.
func NewSplitter(inspector ffprobe.Inspector, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Splitter{
		inspector: inspector,
		log:       logging.WithComponent(logger, "scenes"),
	}
}

// Plan detects scene cuts in input and builds a chunk plan. Detection
// failures degrade to a fixed-length plan rather than failing the
// encode.
func (s *Splitter) Plan(ctx context.Context, input string, minChunk float64) (Plan, float64, error) {
	duration, err := s.inspector.Duration(ctx, input)
	if err != nil {
		return Plan{}, 0, err
	}

	cuts, err := s.detectCuts(ctx, input)
	if err != nil {
		if ctx.Err() != nil {
			return Plan{}, 0, ctx.Err()
		}
		s.log.Warn("scene detection failed, using fixed chunks",
			logging.String("input", input),
			logging.Error(fmt.Errorf("%w: %w", ErrSceneDetection, err)))
		return fixedPlan(duration, minChunk), duration, nil
	}
	if len(cuts) == 0 {
		s.log.Info("no scene cuts found, using fixed chunks",
			logging.String("input", input))
		return fixedPlan(duration, minChunk), duration, nil
	}
	return buildPlan(cuts, duration, minChunk), duration, nil
}

// detectCuts runs the select filter and collects cut timestamps from
// showinfo output.
func (s *Splitter) detectCuts(ctx context.Context, input string) ([]float64, error) {
	binary, err := deps.ResolveFFmpegPath()
	if err != nil {
		return nil, err
	}
	cmd := commandContext(ctx, binary,
		"-hide_banner",
		"-i", input,
		"-vf", "select='gt(scene,"+sceneThreshold+")',showinfo",
		"-f", "null", "-")
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var cuts []float64
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if m := ptsTimeRe.FindStringSubmatch(scanner.Text()); m != nil {
			if ts, err := strconv.ParseFloat(m[1], 64); err == nil {
				cuts = append(cuts, ts)
			}
		}
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return cuts, nil
}
