package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	maxLogSize = 2 * 1024 * 1024 // per active file
	maxBackups = 2
)

// RotatingWriter is a size-capped log sink. When the active file passes
// the cap it is renamed to a timestamped backup and a fresh file opens;
// only the newest backups are kept.
type RotatingWriter struct {
	mu   sync.Mutex
	file *os.File
	path string
	size int64
}

// Setup routes the standard logger to stdout plus the rotating file.
// An oversized file left over from a previous run is archived rather
// than truncated, so its tail survives a crash loop.
func Setup(logPath string) (*RotatingWriter, error) {
	rw := &RotatingWriter{path: logPath}

	if info, err := os.Stat(logPath); err == nil && info.Size() > maxLogSize {
		rw.archive()
	}

	if err := rw.open(); err != nil {
		return nil, err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, rw))

	return rw, nil
}

func (w *RotatingWriter) open() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	w.file = f
	w.size = 0
	if info, err := f.Stat(); err == nil {
		w.size = info.Size()
	}
	return nil
}

func (w *RotatingWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err = w.file.Write(p)
	w.size += int64(n)

	if w.size > maxLogSize {
		w.rotate()
	}

	return n, err
}

func (w *RotatingWriter) rotate() {
	w.file.Close()
	w.archive()
	w.open()
}

// archive renames the active file to a dated backup and prunes all but
// the newest maxBackups. Backup names sort chronologically.
func (w *RotatingWriter) archive() {
	backup := fmt.Sprintf("%s.%s", w.path, time.Now().Format("20060102-150405"))
	os.Rename(w.path, backup)

	matches, err := filepath.Glob(w.path + ".*")
	if err != nil {
		return
	}
	sort.Strings(matches)
	for len(matches) > maxBackups {
		os.Remove(matches[0])
		matches = matches[1:]
	}
}

func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
