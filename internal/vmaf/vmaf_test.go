package vmaf

import (
	"errors"
	"math"
	"testing"

	"quenc/internal/encode"
	"quenc/internal/services"
)

func TestErrMeasurementClassification(t *testing.T) {
	err := services.Wrap(ErrMeasurement, "vmaf", "run", "no VMAF score in output", nil)
	if !errors.Is(err, ErrMeasurement) {
		t.Fatalf("measurement failure lost its sentinel: %v", err)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("measurement failure lost the external-tool marker: %v", err)
	}
	if errors.Is(err, encode.ErrEncode) {
		t.Fatal("measurement failure must not classify as an encode failure")
	}
}

func TestParsePool(t *testing.T) {
	for _, name := range []string{"mean", "harmonic_mean", "min"} {
		method, err := ParsePool(name)
		if err != nil {
			t.Errorf("ParsePool(%q): %v", name, err)
		}
		if string(method) != name {
			t.Errorf("ParsePool(%q) = %q", name, method)
		}
	}
	if _, err := ParsePool("median"); err == nil {
		t.Error("expected error for unknown pool method")
	}
}

func TestMean(t *testing.T) {
	got := Mean([]float64{90, 95, 100})
	if got != 95 {
		t.Errorf("Mean = %v, want 95", got)
	}
}

func TestMin(t *testing.T) {
	got := Min([]float64{96.2, 91.7, 99.9})
	if got != 91.7 {
		t.Errorf("Min = %v, want 91.7", got)
	}
}

func TestHarmonicMeanLeansLow(t *testing.T) {
	scores := []float64{80, 100}
	hm := HarmonicMean(scores)
	if hm >= Mean(scores) {
		t.Errorf("harmonic mean %v should sit below arithmetic mean %v", hm, Mean(scores))
	}
	if hm < Min(scores) {
		t.Errorf("harmonic mean %v should not drop below min %v", hm, Min(scores))
	}
}

func TestHarmonicMeanHandlesZero(t *testing.T) {
	hm := HarmonicMean([]float64{0, 0, 0})
	if math.IsNaN(hm) || math.IsInf(hm, 0) {
		t.Fatalf("harmonic mean of zeros should stay finite, got %v", hm)
	}
	if math.Abs(hm) > 1e-9 {
		t.Errorf("harmonic mean of zeros = %v, want 0", hm)
	}
}

func TestPoolDispatch(t *testing.T) {
	scores := []float64{90, 96}
	if got, err := PoolMin.Pool(scores); err != nil || got != 90 {
		t.Errorf("min pool = %v, %v", got, err)
	}
	if got, err := PoolMean.Pool(scores); err != nil || got != 93 {
		t.Errorf("mean pool = %v, %v", got, err)
	}
	if _, err := PoolMean.Pool(nil); err == nil {
		t.Error("expected error pooling empty scores")
	}
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		line  string
		want  float64
		found bool
	}{
		{"[Parsed_libvmaf_0 @ 0x5565] VMAF score: 96.357100", 96.3571, true},
		{"VMAF score: 100", 100, true},
		{"frame= 1000 fps=25 q=-0.0 size=N/A", 0, false},
		{"VMAF score: garbage", 0, false},
	}
	for _, tc := range cases {
		got, found := parseScore(tc.line)
		if found != tc.found {
			t.Errorf("parseScore(%q) found = %v, want %v", tc.line, found, tc.found)
			continue
		}
		if found && math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("parseScore(%q) = %v, want %v", tc.line, got, tc.want)
		}
	}
}

func TestFilterSpec(t *testing.T) {
	got := filterSpec(Options{Pool: PoolMean, Threads: 2, Subsample: 3})
	want := "libvmaf=pool=mean:n_threads=2:n_subsample=3"
	if got != want {
		t.Errorf("filterSpec = %q, want %q", got, want)
	}
	got = filterSpec(Options{Pool: PoolMin})
	if got != "libvmaf=pool=min" {
		t.Errorf("filterSpec without tuning = %q", got)
	}
}
