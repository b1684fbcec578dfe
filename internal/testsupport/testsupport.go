package testsupport

import (
	"path/filepath"
	"testing"

	"quenc/internal/config"
	"quenc/internal/queue"
)

// NewConfig returns a validated config rooted in a per-test temp
// directory.
func NewConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a queue store for cfg and closes it when the
// test finishes.
func MustOpenStore(t *testing.T, cfg *config.Config) *queue.Store {
	t.Helper()
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// NewTask returns a valid queued task for tests.
func NewTask(id, input, output string) *queue.Task {
	return &queue.Task{
		ID:            id,
		Input:         input,
		Output:        output,
		Encoder:       "libx265",
		Mode:          queue.ModeDefault,
		TargetScore:   97,
		MaxCRF:        28,
		Pool:          "mean",
		VMAFThreads:   2,
		VMAFSubsample: 1,
		PixelFormat:   "yuv420p10le",
		SceneSplitMin: 2,
		SampleEvery:   "3m",
	}
}
