package scheduler_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"quenc/internal/encode"
	"quenc/internal/queue"
	"quenc/internal/scheduler"
	"quenc/internal/testsupport"
	"quenc/internal/vmaf"
)

// specRunner records every encode spec and writes a placeholder output.
type specRunner struct {
	mu    sync.Mutex
	specs []encode.Spec
}

func (r *specRunner) Encode(_ context.Context, spec encode.Spec, _ encode.ProgressFunc) error {
	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()
	return os.WriteFile(spec.Output, []byte("video"), 0o644)
}

func (r *specRunner) last() encode.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.specs[len(r.specs)-1]
}

// fixedProber scores every probe identically.
type fixedProber struct {
	score float64
}

func (p fixedProber) Score(context.Context, string, string, vmaf.Options) (float64, error) {
	return p.score, nil
}

// recordingAssembler tracks the remux steps around an encode.
type recordingAssembler struct {
	hasStreams bool
	extracted  []string
	merged     [][3]string
}

func (a *recordingAssembler) ExtractStreams(_ context.Context, input, output string) (bool, error) {
	a.extracted = append(a.extracted, input)
	if !a.hasStreams {
		return false, nil
	}
	if err := os.WriteFile(output, []byte("streams"), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func (a *recordingAssembler) Concat(_ context.Context, _, output string) error {
	return os.WriteFile(output, []byte("concat"), 0o644)
}

func (a *recordingAssembler) Merge(_ context.Context, video, streams, output string) error {
	a.merged = append(a.merged, [3]string{video, streams, output})
	return os.WriteFile(output, []byte("merged"), 0o644)
}

func searchEnv(t *testing.T, assembler *recordingAssembler) (scheduler.Env, *specRunner) {
	t.Helper()
	runner := &specRunner{}
	return scheduler.Env{
		Runner:     runner,
		Prober:     fixedProber{score: 98},
		Assembler:  assembler,
		StagingDir: t.TempDir(),
	}, runner
}

func TestSearchDispatcherKeepsNonVideoStreams(t *testing.T) {
	assembler := &recordingAssembler{hasStreams: true}
	env, runner := searchEnv(t, assembler)
	dispatch := scheduler.NewSearchDispatcher(env)

	task := testsupport.NewTask("t1", "/media/in.mkv", filepath.Join(t.TempDir(), "out.mkv"))
	task.SampleEvery = ""

	outcome, err := dispatch(context.Background(), task, func(queue.Snapshot) {})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !outcome.TargetMet || outcome.CRF != task.MaxCRF {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	if len(assembler.extracted) != 1 || assembler.extracted[0] != task.Input {
		t.Fatalf("streams not held aside from the input: %v", assembler.extracted)
	}
	if len(assembler.merged) != 1 {
		t.Fatalf("expected one merge, got %d", len(assembler.merged))
	}
	staged := filepath.Join(env.StagingDir, task.ID+".final.mkv")
	if got := assembler.merged[0]; got[0] != staged || got[2] != task.Output {
		t.Fatalf("merge = %v, want video %s into %s", got, staged, task.Output)
	}
	data, err := os.ReadFile(task.Output)
	if err != nil {
		t.Fatalf("final output missing: %v", err)
	}
	if string(data) != "merged" {
		t.Fatalf("final output is not the merged artifact: %q", data)
	}
	if spec := runner.last(); spec.Output != staged || spec.Input != task.Input {
		t.Fatalf("final encode spec = %+v", spec)
	}

	// Intermediates do not outlive the dispatch.
	for _, leftover := range []string{staged, filepath.Join(env.StagingDir, task.ID+".streams.mkv")} {
		if _, err := os.Stat(leftover); !os.IsNotExist(err) {
			t.Fatalf("intermediate %s left behind", leftover)
		}
	}
}

func TestSearchDispatcherVideoOnlyInput(t *testing.T) {
	assembler := &recordingAssembler{hasStreams: false}
	env, _ := searchEnv(t, assembler)
	dispatch := scheduler.NewSearchDispatcher(env)

	task := testsupport.NewTask("t2", "/media/silent.mkv", filepath.Join(t.TempDir(), "out.mkv"))
	task.SampleEvery = ""

	if _, err := dispatch(context.Background(), task, func(queue.Snapshot) {}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(assembler.merged) != 0 {
		t.Fatalf("no merge expected for a video-only input, got %v", assembler.merged)
	}
	data, err := os.ReadFile(task.Output)
	if err != nil {
		t.Fatalf("final output missing: %v", err)
	}
	if string(data) != "video" {
		t.Fatalf("final output should be the renamed encode: %q", data)
	}
}
