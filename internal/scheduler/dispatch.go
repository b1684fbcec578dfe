package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"quenc/internal/chunks"
	"quenc/internal/crfsearch"
	"quenc/internal/encode"
	"quenc/internal/media/ffprobe"
	"quenc/internal/queue"
	"quenc/internal/scenes"
	"quenc/internal/vmaf"
)

// Env bundles the shared collaborators dispatchers are built from.
type Env struct {
	Runner       encode.Runner
	Prober       vmaf.Prober
	Inspector    ffprobe.Inspector
	Assembler    chunks.Assembler
	StagingDir   string
	ChunkWorkers int
	Logger       *slog.Logger
}

// NewSearchDispatcher returns the default-mode dispatcher: one CRF
// search over the whole file, then a single full encode at the chosen
// CRF.
func NewSearchDispatcher(env Env) Dispatcher {
	return func(ctx context.Context, task *queue.Task, report func(queue.Snapshot)) (Outcome, error) {
		encoder, opts, err := taskSettings(task)
		if err != nil {
			return Outcome{}, err
		}

		totalFrames := frameCount(ctx, env.Inspector, task.Input)

		var sampler crfsearch.Sampler
		if task.SampleEvery != "" {
			if interval, parseErr := time.ParseDuration(task.SampleEvery); parseErr == nil {
				sampler = crfsearch.NewFFmpegSampler(env.Inspector, interval)
			}
		}
		engine := crfsearch.NewEngine(env.Runner, env.Prober, sampler, env.Logger)

		result, err := engine.Search(ctx, crfsearch.Request{
			TaskID:      task.ID,
			Input:       task.Input,
			WorkDir:     env.StagingDir,
			Encoder:     encoder,
			Preset:      task.Preset,
			ExtraParams: task.ExtraParams,
			PixelFormat: task.PixelFormat,
			TargetScore: task.TargetScore,
			MinCRF:      0,
			MaxCRF:      task.MaxCRF,
			VMAF:        opts,
		})
		// An unreachable target is a warning: the encode proceeds at the
		// floor CRF the result carries.
		if err != nil && !errors.Is(err, crfsearch.ErrTargetUnreachable) {
			return Outcome{}, err
		}

		staged := filepath.Join(env.StagingDir, task.ID+".final.mkv")
		defer os.Remove(staged)
		err = env.Runner.Encode(ctx, encode.Spec{
			Input:       task.Input,
			Output:      staged,
			Encoder:     encoder,
			CRF:         result.CRF,
			Preset:      task.Preset,
			ExtraParams: task.ExtraParams,
			PixelFormat: task.PixelFormat,
		}, func(p encode.Progress) {
			report(snapshotFor(task, p.Frame, p.FPS, p.Bytes, totalFrames))
		})
		if err != nil {
			return Outcome{}, err
		}
		if err := placeOutput(ctx, env, task, staged); err != nil {
			return Outcome{}, err
		}
		return Outcome{CRF: result.CRF, Score: result.Score, TargetMet: result.TargetMet}, nil
	}
}

// NewChunkDispatcher returns the chunked-mode dispatcher: scene plan,
// per-chunk search and encode, lossless reassembly.
func NewChunkDispatcher(env Env) Dispatcher {
	return func(ctx context.Context, task *queue.Task, report func(queue.Snapshot)) (Outcome, error) {
		encoder, opts, err := taskSettings(task)
		if err != nil {
			return Outcome{}, err
		}

		totalFrames := frameCount(ctx, env.Inspector, task.Input)

		engine := crfsearch.NewEngine(env.Runner, env.Prober, nil, env.Logger)
		splitter := scenes.NewSplitter(env.Inspector, env.Logger)
		pipeline := chunks.NewPipeline(env.Runner, engine, splitter, env.Assembler, env.ChunkWorkers, env.Logger)

		result, err := pipeline.Run(ctx, chunks.Request{
			TaskID:      task.ID,
			Input:       task.Input,
			Output:      task.Output,
			WorkDir:     env.StagingDir,
			Encoder:     encoder,
			Preset:      task.Preset,
			ExtraParams: task.ExtraParams,
			PixelFormat: task.PixelFormat,
			TargetScore: task.TargetScore,
			MinCRF:      0,
			MaxCRF:      task.MaxCRF,
			MinChunk:    task.SceneSplitMin,
			VMAF:        opts,
			FixedCRF:    -1,
		}, func(frame int64, fps float64, bytes int64) {
			report(snapshotFor(task, frame, fps, bytes, totalFrames))
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Score: result.Score, TargetMet: result.TargetMet}, nil
	}
}

// placeOutput remuxes the held-aside audio and subtitle streams of the
// input around the encoded video into task.Output. An input with no
// such streams gets the video moved into place as-is.
func placeOutput(ctx context.Context, env Env, task *queue.Task, video string) error {
	streams := filepath.Join(env.StagingDir, task.ID+".streams.mkv")
	defer os.Remove(streams)
	extracted, err := env.Assembler.ExtractStreams(ctx, task.Input, streams)
	if err != nil {
		return err
	}
	if !extracted {
		if err := os.Rename(video, task.Output); err != nil {
			return fmt.Errorf("place output: %w", err)
		}
		return nil
	}
	if err := env.Assembler.Merge(ctx, video, streams, task.Output); err != nil {
		os.Remove(task.Output)
		return err
	}
	return nil
}

func taskSettings(task *queue.Task) (encode.Encoder, vmaf.Options, error) {
	encoder, err := encode.ParseEncoder(task.Encoder)
	if err != nil {
		return "", vmaf.Options{}, err
	}
	pool, err := vmaf.ParsePool(task.Pool)
	if err != nil {
		return "", vmaf.Options{}, err
	}
	opts := vmaf.Options{
		Pool:      pool,
		Threads:   task.VMAFThreads,
		Subsample: task.VMAFSubsample,
	}
	return encoder, opts, nil
}

func frameCount(ctx context.Context, inspector ffprobe.Inspector, input string) int64 {
	if inspector == nil {
		return 0
	}
	count, err := inspector.FrameCount(ctx, input)
	if err != nil {
		return 0
	}
	return count
}

func snapshotFor(task *queue.Task, frame int64, fps float64, bytes, totalFrames int64) queue.Snapshot {
	snapshot := queue.Snapshot{
		TaskID:      task.ID,
		FPS:         fps,
		Frame:       frame,
		TotalFrames: totalFrames,
		Bytes:       bytes,
		CurrentFile: 1,
		TotalFiles:  1,
		FileName:    filepath.Base(task.Input),
	}
	if totalFrames > 0 {
		percent := float64(frame) / float64(totalFrames) * 100
		if percent > 100 {
			percent = 100
		}
		snapshot.Percent = percent
	}
	return snapshot
}
