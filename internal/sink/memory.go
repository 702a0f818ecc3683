package sink

import "sync"

// MemorySink keeps records in memory. Records become visible through Lines
// only after Flush, mirroring the durability contract of the file sink.
type MemorySink struct {
	mu      sync.Mutex
	pending []string
	lines   []string
	flushes int
	closed  bool
}

func NewMemory() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, line)
	return nil
}

func (s *MemorySink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, s.pending...)
	s.pending = s.pending[:0]
	s.flushes++
	return nil
}

func (s *MemorySink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Lines returns the flushed records.
func (s *MemorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Pending returns the number of appended but unflushed records.
func (s *MemorySink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flushes returns how many times Flush was called.
func (s *MemorySink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Closed reports whether Close was called.
func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
