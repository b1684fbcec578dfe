package encode

import (
	"errors"
	"slices"
	"testing"

	"quenc/internal/services"
	"quenc/internal/vmaf"
)

func TestErrEncodeClassification(t *testing.T) {
	err := services.Wrap(ErrEncode, "encode", "run", "exit status 1", nil)
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("encode failure lost its sentinel: %v", err)
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("encode failure lost the external-tool marker: %v", err)
	}
	if errors.Is(err, vmaf.ErrMeasurement) {
		t.Fatal("encode failure must not classify as a measurement failure")
	}
}

func TestParseEncoder(t *testing.T) {
	for _, name := range []string{"libx265", "av1", "libsvtav1", "hevc_nvenc", "hevc_qsv", "av1_qsv"} {
		enc, err := ParseEncoder(name)
		if err != nil {
			t.Errorf("ParseEncoder(%q): %v", name, err)
		}
		if string(enc) != name {
			t.Errorf("ParseEncoder(%q) = %q", name, enc)
		}
	}
	if _, err := ParseEncoder("h264"); err == nil {
		t.Error("expected error for unknown encoder")
	}
	enc, err := ParseEncoder("  LIBX265 ")
	if err != nil || enc != EncoderX265 {
		t.Errorf("ParseEncoder should trim and lowercase, got %q, %v", enc, err)
	}
}

func TestQualityArgsPerEncoder(t *testing.T) {
	cases := []struct {
		encoder Encoder
		want    []string
	}{
		{EncoderX265, []string{"-crf", "20"}},
		{EncoderSVTAV1, []string{"-crf", "20"}},
		{EncoderNVENC, []string{"-rc:v", "vbr", "-cq:v", "20", "-qmin", "20", "-qmax", "20"}},
		{EncoderQSVHEVC, []string{"-global_quality", "20"}},
		{EncoderQSVAV1, []string{"-global_quality", "20"}},
	}
	for _, tc := range cases {
		got := tc.encoder.qualityArgs(20)
		if !slices.Equal(got, tc.want) {
			t.Errorf("%s quality args = %v, want %v", tc.encoder, got, tc.want)
		}
	}
}

func TestCodecName(t *testing.T) {
	if EncoderAOMAV1.CodecName() != "libaom-av1" {
		t.Errorf("av1 should map to libaom-av1, got %q", EncoderAOMAV1.CodecName())
	}
	if EncoderX265.CodecName() != "libx265" {
		t.Errorf("libx265 should pass through, got %q", EncoderX265.CodecName())
	}
}

func TestBuildArgsWholeFile(t *testing.T) {
	spec := Spec{
		Input:       "in.mkv",
		Output:      "out.mkv",
		Encoder:     EncoderX265,
		CRF:         18,
		Preset:      "slow",
		PixelFormat: "yuv420p10le",
		ExtraParams: "-x265-params limit-sao:bframes=8",
	}
	got := buildArgs(spec)
	want := []string{
		"-hide_banner", "-y",
		"-i", "in.mkv",
		"-map", "0:v:0",
		"-map_metadata", "-1",
		"-c:v", "libx265",
		"-preset", "slow",
		"-x265-params", "limit-sao:bframes=8",
		"-crf", "18",
		"-pix_fmt", "yuv420p10le",
		"-an", "-sn", "-dn",
		"out.mkv",
	}
	if !slices.Equal(got, want) {
		t.Errorf("buildArgs = %v\nwant %v", got, want)
	}
}

func TestBuildArgsSlice(t *testing.T) {
	spec := Spec{
		Input:   "in.mkv",
		Output:  "chunk.mkv",
		Encoder: EncoderSVTAV1,
		CRF:     30,
		Start:   12.5,
		End:     44.25,
	}
	got := buildArgs(spec)
	wantPrefix := []string{"-hide_banner", "-y", "-i", "in.mkv", "-ss", "12.500", "-to", "44.250"}
	if !slices.Equal(got[:len(wantPrefix)], wantPrefix) {
		t.Errorf("slice args prefix = %v, want %v", got[:len(wantPrefix)], wantPrefix)
	}
}

func TestParseProgress(t *testing.T) {
	line := "frame= 1234 fps= 56 q=28.0 size=  20480kB time=00:00:51.43 bitrate=3261.3kbits/s speed=2.33x"
	p, ok := parseProgress(line)
	if !ok {
		t.Fatal("expected progress line to parse")
	}
	if p.Frame != 1234 {
		t.Errorf("frame = %d, want 1234", p.Frame)
	}
	if p.FPS != 56 {
		t.Errorf("fps = %v, want 56", p.FPS)
	}
	if p.Bytes != 20480*1024 {
		t.Errorf("bytes = %d, want %d", p.Bytes, 20480*1024)
	}
}

func TestParseProgressIgnoresOtherLines(t *testing.T) {
	for _, line := range []string{
		"Stream mapping:",
		"  Stream #0:0 -> #0:0 (h264 (native) -> hevc (libx265))",
		"",
	} {
		if _, ok := parseProgress(line); ok {
			t.Errorf("line %q should not parse as progress", line)
		}
	}
}

func TestSplitStatusLines(t *testing.T) {
	data := []byte("first\rsecond\nthird")
	advance, token, err := splitStatusLines(data, false)
	if err != nil || advance != 6 || string(token) != "first" {
		t.Fatalf("first split: advance=%d token=%q err=%v", advance, token, err)
	}
	advance, token, err = splitStatusLines(data[6:], false)
	if err != nil || advance != 7 || string(token) != "second" {
		t.Fatalf("second split: advance=%d token=%q err=%v", advance, token, err)
	}
	advance, token, err = splitStatusLines(data[13:], true)
	if err != nil || advance != 5 || string(token) != "third" {
		t.Fatalf("eof split: advance=%d token=%q err=%v", advance, token, err)
	}
}
