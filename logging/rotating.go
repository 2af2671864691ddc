package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// filePrefix names every log file written by the rotating writer
const filePrefix = "finddrugs-"

var numberedFile = regexp.MustCompile(`^` + filePrefix + `\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingWriter writes to one log file per ISO week, starting a numbered
// file when the current one reaches maxFileSize. Files older than the
// retention period are removed by a background goroutine.
type RotatingWriter struct {
	dir         string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	file        *os.File
	week        string
	size        int64
	forceNumber bool

	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

// NewRotatingWriter creates the log directory, opens this week's file and starts
// the daily retention cleanup
func NewRotatingWriter(dir string, retentionWeeks int, maxFileSize int64) (*RotatingWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	rw := &RotatingWriter{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}

	rw.mu.Lock()
	err := rw.rotate(weekKey(time.Now()))
	rw.mu.Unlock()
	if err != nil {
		cancel()
		return nil, err
	}

	go rw.cleanupLoop(ctx, 24*time.Hour)

	return rw, nil
}

// weekKey returns the ISO week in YYYY-Www form
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// rotate opens the file for week (caller holds mu)
func (rw *RotatingWriter) rotate(week string) error {
	if rw.file != nil {
		if err := rw.file.Close(); err != nil {
			slog.Warn("Failed to close log file during rotation", "error", err)
		}
		rw.file = nil
	}

	name := rw.fileName(week)
	path := filepath.Join(rw.dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	rw.file = file
	rw.week = week
	rw.size = 0
	rw.forceNumber = false
	if info, err := file.Stat(); err == nil {
		rw.size = info.Size()
	}

	return nil
}

// fileName picks the base file for week, or the next numbered file once it is full
func (rw *RotatingWriter) fileName(week string) string {
	base := filePrefix + week + ".log"

	if !rw.forceNumber {
		info, err := os.Stat(filepath.Join(rw.dir, base))
		if err != nil || rw.maxFileSize <= 0 || info.Size() < rw.maxFileSize {
			return base
		}
	}

	highest, highestSize := rw.highestNumbered(week)
	if highest > 0 && highestSize < rw.maxFileSize && !rw.forceNumber {
		return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, highest)
	}
	return fmt.Sprintf("%s%s_%02d.log", filePrefix, week, highest+1)
}

// highestNumbered returns the highest sequence number used this week and that file's size
func (rw *RotatingWriter) highestNumbered(week string) (int, int64) {
	matches, _ := filepath.Glob(filepath.Join(rw.dir, filePrefix+week+"_??.log"))

	highest := 0
	var size int64
	for _, match := range matches {
		m := numberedFile.FindStringSubmatch(filepath.Base(match))
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		if num > highest {
			highest = num
			size = 0
			if info, err := os.Stat(match); err == nil {
				size = info.Size()
			}
		}
	}
	return highest, size
}

// Write implements io.Writer
func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	week := weekKey(time.Now())
	needsRotation := rw.week != week
	if !needsRotation && rw.maxFileSize > 0 && rw.size > 0 && rw.size+int64(len(p)) > rw.maxFileSize {
		needsRotation = true
		rw.forceNumber = true
	}

	if needsRotation {
		if err := rw.rotate(week); err != nil {
			return 0, err
		}
	}

	if rw.file == nil {
		return 0, fmt.Errorf("no log file available")
	}

	n, err := rw.file.Write(p)
	rw.size += int64(n)
	return n, err
}

func (rw *RotatingWriter) cleanupLoop(ctx context.Context, every time.Duration) {
	defer close(rw.cleanupDone)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := rw.cleanup(time.Now()); err != nil {
				slog.Warn("Failed to clean up old logs", "error", err)
			}
		}
	}
}

// cleanup removes log files last modified before now minus the retention period
func (rw *RotatingWriter) cleanup(now time.Time) (int, error) {
	entries, err := os.ReadDir(rw.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := now.Add(-rw.retention)
	deleted := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, ".log") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rw.dir, name)); err == nil {
				deleted++
			}
		}
	}

	return deleted, nil
}

// Close stops the cleanup goroutine and closes the current file
func (rw *RotatingWriter) Close() error {
	rw.cancel()

	select {
	case <-rw.cleanupDone:
	case <-time.After(5 * time.Second):
		fmt.Fprintln(os.Stderr, "Warning: log cleanup goroutine did not stop in time")
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if rw.file != nil {
		err := rw.file.Close()
		rw.file = nil
		return err
	}
	return nil
}
