package queue

import (
	"path/filepath"
	"strings"

	"quenc/internal/config"
)

// NewTaskFromConfig builds a task for input with the configured
// defaults. An empty output derives one under the output directory.
func NewTaskFromConfig(cfg *config.Config, input, output string) *Task {
	if output == "" {
		output = DefaultOutputPath(cfg, input)
	}
	return &Task{
		Input:         input,
		Output:        output,
		Encoder:       cfg.Encoding.Encoder,
		Mode:          Mode(cfg.Encoding.Mode),
		TargetScore:   cfg.Encoding.TargetVMAF,
		MaxCRF:        cfg.Encoding.MaxCRF,
		Pool:          cfg.Encoding.PoolMethod,
		VMAFThreads:   cfg.Encoding.VMAFThreads,
		VMAFSubsample: cfg.Encoding.VMAFSubsample,
		PixelFormat:   cfg.Encoding.PixelFormat,
		Preset:        cfg.PresetFor(cfg.Encoding.Encoder),
		ExtraParams:   cfg.ParamsFor(cfg.Encoding.Encoder),
		SceneSplitMin: cfg.Encoding.SceneSplitMin,
		SampleEvery:   cfg.Encoding.SampleEvery,
	}
}

// DefaultOutputPath places input's encode in the output directory with
// an mkv extension.
func DefaultOutputPath(cfg *config.Config, input string) string {
	base := filepath.Base(input)
	base = strings.TrimSuffix(base, filepath.Ext(base)) + ".mkv"
	return filepath.Join(cfg.Paths.OutputDir, base)
}
