package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// mediaExtensions are the file types a scan recognizes.
var mediaExtensions = map[string]struct{}{
	".mkv":  {},
	".avi":  {},
	".mp4":  {},
	".divx": {},
	".flv":  {},
	".m4v":  {},
	".mov":  {},
	".ogv":  {},
	".ts":   {},
	".webm": {},
	".wmv":  {},
}

// IsMediaFile reports whether path has a recognized media extension.
func IsMediaFile(path string) bool {
	_, ok := mediaExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Progress counts files found by the current scan.
type Progress struct {
	total atomic.Int64
}

// Reset zeroes the counter at scan start.
func (p *Progress) Reset() {
	p.total.Store(0)
}

// Add increments the counter.
func (p *Progress) Add(n int64) {
	p.total.Add(n)
}

// Total returns the current count.
func (p *Progress) Total() int64 {
	return p.total.Load()
}

// Scanner finds media files under a root.
type Scanner struct {
	progress *Progress
}

// NewScanner returns a Scanner reporting into progress. A nil progress
// counts into a private one.
func NewScanner(progress *Progress) *Scanner {
	if progress == nil {
		progress = &Progress{}
	}
	return &Scanner{progress: progress}
}

// Progress returns the scanner's counter.
func (s *Scanner) Progress() *Progress {
	return s.progress
}

// Walk calls fn for every recognized media file under root, following
// symlinks but visiting each resolved directory once. The counter is
// reset at the start and incremented per file found.
func (s *Scanner) Walk(root string, fn func(path string) error) error {
	s.progress.Reset()
	visited := make(map[string]struct{})
	return s.walkDir(root, true, visited, fn)
}

func (s *Scanner) walkDir(dir string, isRoot bool, visited map[string]struct{}, fn func(path string) error) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		if isRoot {
			return err
		}
		return nil
	}
	if _, seen := visited[resolved]; seen {
		return nil
	}
	visited[resolved] = struct{}{}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		// An unreadable subdirectory is skipped, not fatal. Only an
		// unreadable root fails the scan.
		if isRoot {
			return err
		}
		return nil
	}
	for _, entry := range entries {
		path := filepath.Join(resolved, entry.Name())
		info := fs.FileInfo(nil)
		if entry.Type()&fs.ModeSymlink != 0 {
			info, err = os.Stat(path)
			if err != nil {
				continue
			}
		}
		isDir := entry.IsDir() || (info != nil && info.IsDir())
		if isDir {
			if err := s.walkDir(path, false, visited, fn); err != nil {
				return err
			}
			continue
		}
		if !IsMediaFile(entry.Name()) {
			continue
		}
		s.progress.Add(1)
		if err := fn(path); err != nil {
			return err
		}
	}
	return nil
}

// Files collects every media file under root.
func (s *Scanner) Files(root string) ([]string, error) {
	var files []string
	err := s.Walk(root, func(path string) error {
		files = append(files, path)
		return nil
	})
	return files, err
}
