package logger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	defaultFlushInterval = 5 * time.Second
	fileBufferSize       = 32 * 1024
)

// fileSink is an append-only log file behind a write buffer that is
// flushed on an interval. Safe for concurrent use.
type fileSink struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer

	stop chan struct{}
	done chan struct{}
}

// openFileSink opens path for appending, creating parent directories.
// A zero interval disables background flushing.
func openFileSink(path string, interval time.Duration) (*fileSink, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // path from config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	s := &fileSink{
		file: f,
		buf:  bufio.NewWriterSize(f, fileBufferSize),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	if interval > 0 {
		go s.flushEvery(interval)
	} else {
		close(s.done)
	}
	return s, nil
}

func (s *fileSink) flushEvery(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// a failed flush surfaces on the next Write
			_ = s.Flush()
		}
	}
}

func (s *fileSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return 0, errors.New("log file is closed")
	}
	return s.buf.Write(p)
}

// Flush hands buffered bytes to the OS without fsync.
func (s *fileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return nil
	}
	return s.buf.Flush()
}

// Close stops the flush loop, then flushes, syncs and closes the file.
// Later calls return nil.
func (s *fileSink) Close() error {
	s.mu.Lock()
	if s.buf == nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	<-s.done

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf == nil {
		return nil
	}
	err := errors.Join(s.buf.Flush(), s.file.Sync(), s.file.Close())
	s.buf, s.file = nil, nil
	if err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}
