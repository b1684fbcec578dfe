package encode

import (
	"regexp"
	"strconv"
)

// Progress is one parsed ffmpeg status line.
type Progress struct {
	Frame int64
	FPS   float64
	Bytes int64
}

var (
	frameRe = regexp.MustCompile(`frame=\s*(\d+)`)
	fpsRe   = regexp.MustCompile(`fps=\s*(\d+(?:\.\d+)?)`)
	sizeRe  = regexp.MustCompile(`size=\s*(\d+)\s*[kK]i?B`)
)

// parseProgress extracts frame, fps, and output size from an ffmpeg
// stderr status line. The second return is false when the line carries
// no frame counter.
func parseProgress(line string) (Progress, bool) {
	frame := frameRe.FindStringSubmatch(line)
	if frame == nil {
		return Progress{}, false
	}
	p := Progress{}
	p.Frame, _ = strconv.ParseInt(frame[1], 10, 64)
	if m := fpsRe.FindStringSubmatch(line); m != nil {
		p.FPS, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := sizeRe.FindStringSubmatch(line); m != nil {
		kb, _ := strconv.ParseInt(m[1], 10, 64)
		p.Bytes = kb * 1024
	}
	return p, true
}

// splitStatusLines is a bufio.SplitFunc that treats both carriage
// returns and newlines as terminators, since ffmpeg rewrites its
// status line with \r.
func splitStatusLines(data []byte, atEOF bool) (int, []byte, error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
