package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const (
	// EnvFFmpeg overrides ffmpeg binary discovery.
	EnvFFmpeg = "QUENC_FFMPEG"
	// EnvFFprobe overrides ffprobe binary discovery.
	EnvFFprobe = "QUENC_FFPROBE"
)

// Requirement names one external binary the daemon needs.
type Requirement struct {
	Name        string
	EnvOverride string
	Description string
}

// Status reports whether a requirement resolved and where.
type Status struct {
	Requirement Requirement
	Path        string
	Err         error
}

// Available reports whether the requirement resolved to a usable path.
func (s Status) Available() bool {
	return s.Err == nil && s.Path != ""
}

// Requirements lists every external binary quenc depends on.
func Requirements() []Requirement {
	return []Requirement{
		{Name: "ffmpeg", EnvOverride: EnvFFmpeg, Description: "encoding, sampling, and VMAF measurement"},
		{Name: "ffprobe", EnvOverride: EnvFFprobe, Description: "media inspection"},
	}
}

// ResolveFFmpegPath returns the ffmpeg binary to invoke. The
// QUENC_FFMPEG environment variable wins over PATH lookup.
func ResolveFFmpegPath() (string, error) {
	return resolve("ffmpeg", EnvFFmpeg)
}

// ResolveFFprobePath returns the ffprobe binary to invoke. The
// QUENC_FFPROBE environment variable wins over PATH lookup.
func ResolveFFprobePath() (string, error) {
	return resolve("ffprobe", EnvFFprobe)
}

func resolve(name, envVar string) (string, error) {
	if override := strings.TrimSpace(os.Getenv(envVar)); override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("%s points to %s: %w", envVar, override, err)
		}
		return override, nil
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locate %s: %w", name, err)
	}
	return path, nil
}

// CheckBinaries resolves every requirement and returns one Status per
// entry, in order.
func CheckBinaries() []Status {
	statuses := make([]Status, 0, 2)
	for _, req := range Requirements() {
		path, err := resolve(req.Name, req.EnvOverride)
		statuses = append(statuses, Status{Requirement: req, Path: path, Err: err})
	}
	return statuses
}
