package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"quenc/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if cfg.Encoding.Encoder != "libx265" {
		t.Fatalf("expected default encoder, got %q", cfg.Encoding.Encoder)
	}
	if cfg.Encoding.TargetVMAF != 97 {
		t.Fatalf("expected default target, got %v", cfg.Encoding.TargetVMAF)
	}
}

func TestLoadOverridesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	doc := `
[encoding]
encoder = "libsvtav1"
mode = "Chunked"
target_vmaf = 93.5
vmaf_pool = "MIN"

[scheduler]
max_concurrent_tasks = 3
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Encoding.Encoder != "libsvtav1" {
		t.Fatalf("encoder override lost: %q", cfg.Encoding.Encoder)
	}
	if cfg.Encoding.Mode != "chunked" {
		t.Fatalf("mode should be lowercased, got %q", cfg.Encoding.Mode)
	}
	if cfg.Encoding.PoolMethod != "min" {
		t.Fatalf("pool method should be lowercased, got %q", cfg.Encoding.PoolMethod)
	}
	if cfg.Scheduler.MaxConcurrentTasks != 3 {
		t.Fatalf("scheduler override lost: %d", cfg.Scheduler.MaxConcurrentTasks)
	}
	// Unset sections keep defaults.
	if cfg.Scheduler.ChunkWorkers != 2 {
		t.Fatalf("expected default chunk workers, got %d", cfg.Scheduler.ChunkWorkers)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"bad encoder", "[encoding]\nencoder = \"h264\"\n"},
		{"bad mode", "[encoding]\nmode = \"turbo\"\n"},
		{"target too high", "[encoding]\ntarget_vmaf = 101.0\n"},
		{"target zero", "[encoding]\ntarget_vmaf = 0.0\n"},
		{"threads zero", "[encoding]\nvmaf_threads = 0\n"},
		{"subsample zero", "[encoding]\nvmaf_subsample = 0\n"},
		{"bad pool", "[encoding]\nvmaf_pool = \"median\"\n"},
		{"bad sample interval", "[encoding]\nsample_every = \"sometimes\"\n"},
		{"zero workers", "[scheduler]\nchunk_workers = 0\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.doc), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, err := config.Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSampleInterval(t *testing.T) {
	cfg := config.Default()
	if got := cfg.SampleInterval(); got != 3*time.Minute {
		t.Fatalf("expected 3m default, got %v", got)
	}
	cfg.Encoding.SampleEvery = "90s"
	if got := cfg.SampleInterval(); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}

func TestPresetAndParamsFallbacks(t *testing.T) {
	cfg := config.Default()
	if got := cfg.PresetFor("libx265"); got != "slow" {
		t.Fatalf("expected built-in preset, got %q", got)
	}
	cfg.Encoding.Presets = map[string]string{"libx265": "medium"}
	if got := cfg.PresetFor("libx265"); got != "medium" {
		t.Fatalf("expected override preset, got %q", got)
	}
	cfg.Encoding.Params = map[string]string{"libx265": ""}
	if got := cfg.ParamsFor("libx265"); got != "" {
		t.Fatalf("explicit empty params should win, got %q", got)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StagingDir, cfg.Paths.OutputDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s", dir)
		}
	}
}
