package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gofrs/flock"
)

const fileBufferSize = 64 * 1024

// ErrLocked is returned when another run holds the result file.
var ErrLocked = errors.New("result file is locked by another run")

// FileSink writes one record per line to a local file. The file is truncated
// on open and guarded by an exclusive advisory lock on "<path>.lock" for the
// lifetime of the sink.
type FileSink struct {
	path  string
	file  *os.File
	lock  *flock.Flock
	w     *bufio.Writer
	lines int64
}

// OpenFile locks and truncates path.
func OpenFile(path string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("sink: empty result path")
	}
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("sink: lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("sink: %s: %w", path, ErrLocked)
	}

	f, err := os.Create(path)
	if err != nil {
		_ = lock.Unlock()
		_ = os.Remove(lock.Path())
		return nil, fmt.Errorf("sink: create %s: %w", path, err)
	}

	return &FileSink{
		path: path,
		file: f,
		lock: lock,
		w:    bufio.NewWriterSize(f, fileBufferSize),
	}, nil
}

// Path returns the result file path.
func (s *FileSink) Path() string { return s.path }

// Lines returns the number of records appended.
func (s *FileSink) Lines() int64 { return s.lines }

func (s *FileSink) Append(line string) error {
	if s.file == nil {
		return fmt.Errorf("sink: %s: %w", s.path, fs.ErrClosed)
	}
	if _, err := s.w.WriteString(line); err != nil {
		return fmt.Errorf("sink: write %s: %w", s.path, err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("sink: write %s: %w", s.path, err)
	}
	s.lines++
	return nil
}

func (s *FileSink) Flush() error {
	if s.file == nil {
		return nil
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("sink: flush %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sink: sync %s: %w", s.path, err)
	}
	return nil
}

// Close flushes, closes the file and releases the lock. Safe to call twice.
func (s *FileSink) Close() error {
	if s.file == nil {
		return nil
	}
	flushErr := s.Flush()
	closeErr := s.file.Close()
	s.file = nil
	unlockErr := s.lock.Unlock()
	if err := os.Remove(s.lock.Path()); err != nil && !errors.Is(err, fs.ErrNotExist) && unlockErr == nil {
		unlockErr = err
	}
	return errors.Join(flushErr, closeErr, unlockErr)
}
