// Package media holds small helpers shared by the ffmpeg-facing
// packages.
package media

import (
	"fmt"
	"os"
	"strings"
)

// WriteConcatList writes an ffmpeg concat demuxer file listing paths
// in order. Single quotes in paths are escaped the demuxer's way.
func WriteConcatList(path string, entries []string) error {
	var b strings.Builder
	for _, entry := range entries {
		escaped := strings.ReplaceAll(entry, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}
