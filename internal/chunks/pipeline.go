package chunks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"quenc/internal/crfsearch"
	"quenc/internal/encode"
	"quenc/internal/logging"
	"quenc/internal/media"
	"quenc/internal/scenes"
	"quenc/internal/vmaf"
)

// ErrChunkFailed tags a chunked encode aborted by a failing chunk.
var ErrChunkFailed = errors.New("chunk failed")

// Planner produces a chunk plan for an input.
type Planner interface {
	Plan(ctx context.Context, input string, minChunk float64) (scenes.Plan, float64, error)
}

// Searcher locates the CRF for one slice.
type Searcher interface {
	Search(ctx context.Context, req crfsearch.Request) (crfsearch.Result, error)
}

// Request describes one chunked encode.
type Request struct {
	TaskID      string
	Input       string
	Output      string
	WorkDir     string
	Encoder     encode.Encoder
	Preset      string
	ExtraParams string
	PixelFormat string
	TargetScore float64
	MinCRF      int
	MaxCRF      int
	MinChunk    float64
	VMAF        vmaf.Options
	// FixedCRF skips the per-chunk search when non-negative.
	FixedCRF int
}

// Result reports the finished encode. Score pools the per-chunk
// scores with the request's pool method; TargetMet is false when any
// chunk had to fall back below its target.
type Result struct {
	Chunks    int
	Score     float64
	TargetMet bool
}

// ProgressFunc receives aggregate progress while chunks encode.
type ProgressFunc func(frame int64, fps float64, bytes int64)

// Pipeline runs chunked encodes.
type Pipeline struct {
	runner    encode.Runner
	searcher  Searcher
	planner   Planner
	assembler Assembler
	workers   int
	log       *slog.Logger
}

// NewPipeline assembles a chunk pipeline with the given worker bound.
func NewPipeline(runner encode.Runner, searcher Searcher, planner Planner, assembler Assembler, workers int, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		runner:    runner,
		searcher:  searcher,
		planner:   planner,
		assembler: assembler,
		workers:   workers,
		log:       logging.WithComponent(logger, "chunks"),
	}
}

type chunkOutcome struct {
	score     float64
	targetMet bool
}

// Run plans, encodes, and reassembles req.Input into req.Output.
func (p *Pipeline) Run(ctx context.Context, req Request, onProgress ProgressFunc) (Result, error) {
	plan, duration, err := p.planner.Plan(ctx, req.Input, req.MinChunk)
	if err != nil {
		return Result{}, err
	}
	if err := plan.Validate(duration); err != nil {
		return Result{}, fmt.Errorf("chunk plan: %w", err)
	}
	p.log.Info("chunk plan ready",
		logging.String(logging.FieldTaskID, req.TaskID),
		logging.Int("chunks", len(plan.Chunks)),
		logging.Float64("duration", duration))

	var temps tempSet
	defer temps.removeAll()

	outcomes, err := p.encodeChunks(ctx, req, plan, &temps, onProgress)
	if err != nil {
		return Result{}, err
	}

	video := filepath.Join(req.WorkDir, req.TaskID+".video.mkv")
	temps.add(video)
	listPath := filepath.Join(req.WorkDir, req.TaskID+".concat.txt")
	temps.add(listPath)
	paths := make([]string, len(plan.Chunks))
	for _, chunk := range plan.Chunks {
		paths[chunk.Index] = chunkPath(req, chunk.Index)
	}
	if err := media.WriteConcatList(listPath, paths); err != nil {
		return Result{}, err
	}
	if err := p.assembler.Concat(ctx, listPath, video); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrChunkFailed, err)
	}

	if err := p.finalize(ctx, req, video, &temps); err != nil {
		os.Remove(req.Output)
		return Result{}, err
	}

	scores := make([]float64, 0, len(outcomes))
	targetMet := true
	for _, outcome := range outcomes {
		scores = append(scores, outcome.score)
		targetMet = targetMet && outcome.targetMet
	}
	score := 0.0
	if req.FixedCRF < 0 {
		score, err = req.VMAF.Pool.Pool(scores)
		if err != nil {
			return Result{}, err
		}
	}
	return Result{Chunks: len(plan.Chunks), Score: score, TargetMet: targetMet}, nil
}

// encodeChunks runs the worker pool. The first failing chunk cancels
// the rest; workers drain before return on every path.
func (p *Pipeline) encodeChunks(parent context.Context, req Request, plan scenes.Plan, temps *tempSet, onProgress ProgressFunc) ([]chunkOutcome, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error
	outcomes := make([]chunkOutcome, len(plan.Chunks))
	agg := newProgressAggregator(len(plan.Chunks), onProgress)
	slots := make(chan struct{}, p.workers)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for _, chunk := range plan.Chunks {
		if ctx.Err() != nil {
			break
		}
		slots <- struct{}{}
		wg.Add(1)
		go func(chunk scenes.Chunk) {
			defer wg.Done()
			defer func() { <-slots }()
			outcome, err := p.encodeChunk(ctx, req, chunk, temps, agg)
			if err != nil {
				fail(err)
				return
			}
			outcomes[chunk.Index] = outcome
		}(chunk)
	}
	wg.Wait()

	if err := parent.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrChunkFailed, firstErr)
	}
	return outcomes, nil
}

// encodeChunk searches (or reuses the fixed CRF) and encodes one chunk.
func (p *Pipeline) encodeChunk(ctx context.Context, req Request, chunk scenes.Chunk, temps *tempSet, agg *progressAggregator) (chunkOutcome, error) {
	crf := req.FixedCRF
	outcome := chunkOutcome{targetMet: true}
	if crf < 0 {
		result, err := p.searcher.Search(ctx, crfsearch.Request{
			TaskID:      fmt.Sprintf("%s.chunk%03d", req.TaskID, chunk.Index),
			Input:       req.Input,
			WorkDir:     req.WorkDir,
			Encoder:     req.Encoder,
			Preset:      req.Preset,
			ExtraParams: req.ExtraParams,
			PixelFormat: req.PixelFormat,
			TargetScore: req.TargetScore,
			MinCRF:      req.MinCRF,
			MaxCRF:      req.MaxCRF,
			VMAF:        req.VMAF,
			Start:       chunk.Start,
			End:         chunk.End,
		})
		// An unreachable target encodes at the floor CRF; the pooled
		// result reports the shortfall through TargetMet.
		if err != nil && !errors.Is(err, crfsearch.ErrTargetUnreachable) {
			return chunkOutcome{}, err
		}
		crf = result.CRF
		outcome = chunkOutcome{score: result.Score, targetMet: result.TargetMet}
		p.log.Info("chunk crf selected",
			logging.String(logging.FieldTaskID, req.TaskID),
			logging.Int(logging.FieldChunk, chunk.Index),
			logging.Int("crf", crf),
			logging.Float64("score", result.Score))
	}

	output := chunkPath(req, chunk.Index)
	temps.add(output)
	err := p.runner.Encode(ctx, encode.Spec{
		Input:       req.Input,
		Output:      output,
		Encoder:     req.Encoder,
		CRF:         crf,
		Preset:      req.Preset,
		ExtraParams: req.ExtraParams,
		PixelFormat: req.PixelFormat,
		Start:       chunk.Start,
		End:         chunk.End,
	}, func(progress encode.Progress) {
		agg.update(chunk.Index, progress)
	})
	if err != nil {
		return chunkOutcome{}, err
	}
	agg.finish(chunk.Index)
	return outcome, nil
}

// finalize merges held-aside streams back, or renames the video when
// the input had none.
func (p *Pipeline) finalize(ctx context.Context, req Request, video string, temps *tempSet) error {
	streams := filepath.Join(req.WorkDir, req.TaskID+".streams.mkv")
	temps.add(streams)
	extracted, err := p.assembler.ExtractStreams(ctx, req.Input, streams)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrChunkFailed, err)
	}
	if !extracted {
		if err := os.Rename(video, req.Output); err != nil {
			return fmt.Errorf("place output: %w", err)
		}
		return nil
	}
	if err := p.assembler.Merge(ctx, video, streams, req.Output); err != nil {
		return fmt.Errorf("%w: %w", ErrChunkFailed, err)
	}
	return nil
}

func chunkPath(req Request, index int) string {
	return filepath.Join(req.WorkDir, fmt.Sprintf("%s.chunk%03d.mkv", req.TaskID, index))
}

// tempSet tracks intermediates for removal.
type tempSet struct {
	mu    sync.Mutex
	paths []string
}

func (t *tempSet) add(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

func (t *tempSet) removeAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, path := range t.paths {
		os.Remove(path)
	}
	t.paths = nil
}

// progressAggregator sums per-chunk progress into one stream.
type progressAggregator struct {
	mu     sync.Mutex
	frames []int64
	bytes  []int64
	fps    []float64
	fn     ProgressFunc
}

func newProgressAggregator(chunks int, fn ProgressFunc) *progressAggregator {
	return &progressAggregator{
		frames: make([]int64, chunks),
		bytes:  make([]int64, chunks),
		fps:    make([]float64, chunks),
		fn:     fn,
	}
}

func (a *progressAggregator) update(index int, p encode.Progress) {
	if a.fn == nil {
		return
	}
	a.mu.Lock()
	a.frames[index] = p.Frame
	a.bytes[index] = p.Bytes
	a.fps[index] = p.FPS
	frame, bytes, fps := a.totals()
	a.mu.Unlock()
	a.fn(frame, fps, bytes)
}

func (a *progressAggregator) finish(index int) {
	if a.fn == nil {
		return
	}
	a.mu.Lock()
	a.fps[index] = 0
	frame, bytes, fps := a.totals()
	a.mu.Unlock()
	a.fn(frame, fps, bytes)
}

func (a *progressAggregator) totals() (frame, bytes int64, fps float64) {
	for i := range a.frames {
		frame += a.frames[i]
		bytes += a.bytes[i]
		fps += a.fps[i]
	}
	return frame, bytes, fps
}
