package logger

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const megabyte = 1024 * 1024

// RotatingWriter appends to a log file and moves it aside once it would
// grow past maxSize bytes. Rotated files are named <file>.<timestamp>,
// optionally gzipped, and removed after maxAge days.
type RotatingWriter struct {
	filename string
	maxSize  int64
	maxAge   int
	compress bool

	mu   sync.Mutex
	file *os.File
	size int64
	bg   sync.WaitGroup
	now  func() time.Time
}

// NewRotatingWriter opens filename for appending. maxSize <= 0 disables
// rotation.
func NewRotatingWriter(filename string, maxSize int64, maxAge int, compress bool) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		filename: filename,
		maxSize:  maxSize,
		maxAge:   maxAge,
		compress: compress,
		now:      time.Now,
	}
	if err := w.open(); err != nil {
		return nil, err
	}

	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		w.cleanup()
	}()

	return w, nil
}

func (w *RotatingWriter) open() error {
	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = file
	w.size = info.Size()
	return nil
}

// Write writes p to the current file, rotating first when needed
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	if w.maxSize > 0 && w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close closes the current file and waits for background compression
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	var err error
	if w.file != nil {
		err = w.file.Close()
		w.file = nil
	}
	w.mu.Unlock()

	w.bg.Wait()
	return err
}

// rotate must be called with mu held
func (w *RotatingWriter) rotate() error {
	if err := w.file.Close(); err != nil {
		return err
	}

	rotated := fmt.Sprintf("%s.%s", w.filename, w.now().Format("20060102-150405.000000000"))
	if err := os.Rename(w.filename, rotated); err != nil {
		return err
	}

	if err := w.open(); err != nil {
		return err
	}

	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		if w.compress {
			_ = compressFile(rotated)
		}
		w.cleanup()
	}()
	return nil
}

func compressFile(filename string) error {
	src, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(filename + ".gz")
	if err != nil {
		return err
	}

	gzw := gzip.NewWriter(dst)
	if _, err := io.Copy(gzw, src); err != nil {
		gzw.Close()
		dst.Close()
		return err
	}
	if err := gzw.Close(); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(filename)
}

// cleanup removes rotated files older than maxAge days
func (w *RotatingWriter) cleanup() {
	if w.maxAge <= 0 {
		return
	}

	files, err := filepath.Glob(w.filename + ".*")
	if err != nil {
		return
	}

	cutoff := w.now().AddDate(0, 0, -w.maxAge)
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(file)
			if !strings.HasSuffix(file, ".gz") {
				os.Remove(file + ".gz")
			}
		}
	}
}
