package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	clog "github.com/charmbracelet/log"
)

// CheckEntry identifies the check a log file records.
type CheckEntry struct {
	RepoOwner  string
	RepoName   string
	PRNumber   int
	HeadSHA    string
	EventType  string
	DeliveryID string
	Timestamp  time.Time
}

// Writer manages per-check log files organized by repository and pull request.
type Writer struct {
	baseDir string
}

// NewWriter creates a new Writer with the specified base directory.
func NewWriter(baseDir string) *Writer {
	return &Writer{baseDir: baseDir}
}

// Dir returns the base directory.
func (w *Writer) Dir() string {
	return w.baseDir
}

// Path returns the file path for entry.
// Directory structure: baseDir/owner/repo/prNumber/timestamp-eventType-sha.log
func (w *Writer) Path(entry CheckEntry) string {
	sha := entry.HeadSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	filename := fmt.Sprintf("%s-%s-%s.log",
		entry.Timestamp.UTC().Format("2006-01-02T15-04-05"),
		entry.EventType,
		sha,
	)
	return filepath.Join(
		w.baseDir,
		entry.RepoOwner,
		entry.RepoName,
		fmt.Sprint(entry.PRNumber),
		filename,
	)
}

// Open creates the log file for entry and returns a JSON logger writing to
// it. The returned closer must be called once the check is done. Reopening an
// existing path appends to it.
func (w *Writer) Open(entry CheckEntry) (*clog.Logger, io.Closer, error) {
	path := w.Path(entry)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("creating log file: %w", err)
	}

	logger := clog.NewWithOptions(f, clog.Options{
		Formatter:       clog.JSONFormatter,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           clog.DebugLevel,
	}).With(
		"repo", entry.RepoOwner+"/"+entry.RepoName,
		"pr", entry.PRNumber,
		"sha", entry.HeadSHA,
		"delivery", entry.DeliveryID,
	)
	return logger, f, nil
}
