package crfsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"quenc/internal/encode"
	"quenc/internal/logging"
	"quenc/internal/vmaf"
)

// DefaultMaxProbes bounds the number of probe encodes per search.
const DefaultMaxProbes = 10

// ErrTargetUnreachable reports that even the lowest CRF scored below
// the target. Search returns it alongside a usable floor result, so
// callers decide between proceeding at the floor and giving up.
var ErrTargetUnreachable = errors.New("quality target unreachable")

// Request describes one search.
type Request struct {
	TaskID      string
	Input       string
	WorkDir     string
	Encoder     encode.Encoder
	Preset      string
	ExtraParams string
	PixelFormat string
	TargetScore float64
	MinCRF      int
	MaxCRF      int
	MaxProbes   int
	VMAF        vmaf.Options
	// Start and End restrict the search to a slice of the input, in
	// seconds, for per-chunk searches. Both zero searches the whole
	// file. Incompatible with a Sampler.
	Start float64
	End   float64
}

// Result reports the search outcome. TargetMet is false when even the
// lowest CRF could not reach the target; the caller decides whether to
// proceed at MinCRF or give up.
type Result struct {
	CRF       int
	Score     float64
	TargetMet bool
	Probes    int
}

// Sampler condenses a long input into a short representative reference
// before probing. A nil Sampler probes against the full input.
type Sampler interface {
	Sample(ctx context.Context, input, workDir, taskID string) (path string, cleanup func(), err error)
}

// Engine runs searches.
type Engine struct {
	runner  encode.Runner
	prober  vmaf.Prober
	sampler Sampler
	log     *slog.Logger
}

// NewEngine assembles a search engine. sampler may be nil.
func NewEngine(runner encode.Runner, prober vmaf.Prober, sampler Sampler, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		runner:  runner,
		prober:  prober,
		sampler: sampler,
		log:     logging.WithComponent(logger, "crfsearch"),
	}
}

// Search locates the highest CRF meeting req.TargetScore.
func (e *Engine) Search(ctx context.Context, req Request) (Result, error) {
	if req.MaxCRF < req.MinCRF {
		return Result{}, fmt.Errorf("crf interval [%d, %d] is empty", req.MinCRF, req.MaxCRF)
	}
	maxProbes := req.MaxProbes
	if maxProbes <= 0 {
		maxProbes = DefaultMaxProbes
	}

	reference := req.Input
	if e.sampler != nil && req.Start == 0 && req.End == 0 {
		sample, cleanup, err := e.sampler.Sample(ctx, req.Input, req.WorkDir, req.TaskID)
		if err != nil {
			return Result{}, err
		}
		if cleanup != nil {
			defer cleanup()
		}
		reference = sample
	}

	scores := map[int]float64{}
	probes := 0
	measure := func(crf int) (float64, error) {
		if score, ok := scores[crf]; ok {
			return score, nil
		}
		score, err := e.probe(ctx, req, reference, crf)
		if err != nil {
			return 0, err
		}
		scores[crf] = score
		probes++
		e.log.Info("probe complete",
			logging.String(logging.FieldTaskID, req.TaskID),
			logging.Int("crf", crf),
			logging.Float64("score", score),
			logging.Float64("target", req.TargetScore))
		return score, nil
	}

	lo, hi := req.MinCRF, req.MaxCRF
	best := req.MinCRF - 1
	bestScore := 0.0
	for lo < hi && probes < maxProbes {
		cand := (lo + hi + 1) / 2
		score, err := measure(cand)
		if err != nil {
			return Result{}, err
		}
		if score >= req.TargetScore {
			best, bestScore = cand, score
			lo = cand
		} else {
			hi = cand - 1
		}
	}

	if best >= req.MinCRF {
		return Result{CRF: best, Score: bestScore, TargetMet: true, Probes: probes}, nil
	}

	// Nothing in the interval passed. The floor gets one direct probe
	// before conceding the target is out of reach.
	floorScore, err := measure(req.MinCRF)
	if err != nil {
		return Result{}, err
	}
	if floorScore >= req.TargetScore {
		return Result{CRF: req.MinCRF, Score: floorScore, TargetMet: true, Probes: probes}, nil
	}
	e.log.Warn("target unreachable at lowest crf",
		logging.String(logging.FieldTaskID, req.TaskID),
		logging.Int("crf", req.MinCRF),
		logging.Float64("score", floorScore),
		logging.Float64("target", req.TargetScore))
	return Result{CRF: req.MinCRF, Score: floorScore, TargetMet: false, Probes: probes},
		fmt.Errorf("%w: crf %d scored %.2f against target %.2f", ErrTargetUnreachable, req.MinCRF, floorScore, req.TargetScore)
}

// probe encodes the reference at crf and scores the result. The probe
// file is removed before returning.
func (e *Engine) probe(ctx context.Context, req Request, reference string, crf int) (float64, error) {
	output := filepath.Join(req.WorkDir, fmt.Sprintf("%s.probe.crf%d.mkv", req.TaskID, crf))
	defer os.Remove(output)

	spec := encode.Spec{
		Input:       reference,
		Output:      output,
		Encoder:     req.Encoder,
		CRF:         crf,
		Preset:      req.Preset,
		ExtraParams: req.ExtraParams,
		PixelFormat: req.PixelFormat,
		Start:       req.Start,
		End:         req.End,
	}
	if err := e.runner.Encode(ctx, spec, nil); err != nil {
		return 0, err
	}
	opts := req.VMAF
	opts.RefStart, opts.RefEnd = req.Start, req.End
	return e.prober.Score(ctx, output, reference, opts)
}
