package output

import (
	"io"
	"sync"
)

const clearLine = "\r\033[K"

// LineWriter serialises the operational log and the progress line onto one
// terminal. With clear set, each write first erases the current line so a
// pending progress line does not merge with a notification.
type LineWriter struct {
	mu    sync.Mutex
	w     io.Writer
	clear bool
}

func NewLineWriter(w io.Writer, clear bool) *LineWriter {
	if w == nil {
		w = io.Discard
	}
	return &LineWriter{w: w, clear: clear}
}

func (l *LineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.clear {
		if _, err := io.WriteString(l.w, clearLine); err != nil {
			return 0, err
		}
	}
	return l.w.Write(p)
}
