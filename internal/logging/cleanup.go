package logging

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// Cleaner removes check logs older than a retention period.
type Cleaner struct {
	baseDir       string
	retentionDays int
	now           func() time.Time
}

// NewCleaner creates a new Cleaner with the specified base directory and retention period.
func NewCleaner(baseDir string, retentionDays int) *Cleaner {
	return &Cleaner{baseDir: baseDir, retentionDays: retentionDays, now: time.Now}
}

// Cleanup removes log files older than the retention period, then any
// directories left empty. It returns the number of files deleted. A missing
// base directory is not an error.
func (c *Cleaner) Cleanup() (int, error) {
	threshold := c.now().AddDate(0, 0, -c.retentionDays)
	var deleted int
	var dirs []string

	err := filepath.WalkDir(c.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if path != c.baseDir {
				dirs = append(dirs, path)
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(threshold) {
			if os.Remove(path) == nil {
				deleted++
			}
		}
		return nil
	})

	// Deepest first, so a parent is empty by the time it is visited.
	slices.Reverse(dirs)
	for _, dir := range dirs {
		if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
			os.Remove(dir)
		}
	}

	return deleted, err
}
