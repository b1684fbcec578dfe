package deps_test

import (
	"os"
	"path/filepath"
	"testing"

	"quenc/internal/deps"
)

func TestResolveHonorsEnvOverride(t *testing.T) {
	fake := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(fake, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	t.Setenv(deps.EnvFFmpeg, fake)

	path, err := deps.ResolveFFmpegPath()
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if path != fake {
		t.Fatalf("expected %s, got %s", fake, path)
	}
}

func TestResolveRejectsMissingOverride(t *testing.T) {
	t.Setenv(deps.EnvFFprobe, filepath.Join(t.TempDir(), "nope"))
	if _, err := deps.ResolveFFprobePath(); err == nil {
		t.Fatal("expected error for missing override target")
	}
}

func TestCheckBinariesCoversAllRequirements(t *testing.T) {
	statuses := deps.CheckBinaries()
	if len(statuses) != len(deps.Requirements()) {
		t.Fatalf("expected %d statuses, got %d", len(deps.Requirements()), len(statuses))
	}
	for _, st := range statuses {
		if st.Requirement.Name == "" {
			t.Fatal("status missing requirement name")
		}
	}
}
