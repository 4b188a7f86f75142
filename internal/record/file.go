package record

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/crimson-sun/newscat/internal/model"
)

const defaultBufSize = 64 * 1024 // 64KB

// FileOption configures a FileSink.
type FileOption func(*FileSink)

// WithBufSize sets the bufio.Writer buffer size. Default: 64KB.
func WithBufSize(bytes int) FileOption {
	return func(s *FileSink) { s.bufSize = bytes }
}

// FileSink appends NDJSON records to a file with buffered I/O. Writes are
// serialized by a mutex; Close flushes the buffer before closing the file.
type FileSink struct {
	w       *bufio.Writer
	f       *os.File
	mu      sync.Mutex
	path    string
	bufSize int
}

// NewFileSink opens (or creates) the log file at path in append mode.
func NewFileSink(path string, opts ...FileOption) (*FileSink, error) {
	s := &FileSink{path: path, bufSize: defaultBufSize}
	for _, opt := range opts {
		opt(s)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("record sink: open %s: %w", path, err)
	}
	s.f = f
	s.w = bufio.NewWriterSize(f, s.bufSize)
	return s, nil
}

// Write JSON-encodes the record and appends it as one line, flushing so the
// record is durable when Write returns.
func (s *FileSink) Write(_ context.Context, rec model.LogRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("record sink: marshal: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("record sink: write: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("record sink: flush: %w", err)
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return fmt.Errorf("record sink: flush: %w", err)
	}
	return s.f.Close()
}
