package dashboard

import (
	"strings"
	"sync"
)

// LogBuffer keeps the most recent operational log lines for display. It is an
// io.Writer; partial lines are held until their newline arrives.
type LogBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial strings.Builder
}

func NewLogBuffer(max int) *LogBuffer {
	if max <= 0 {
		max = maxLogLines
	}
	return &LogBuffer{max: max}
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	text := string(p)
	for {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			b.partial.WriteString(text)
			break
		}
		b.partial.WriteString(text[:i])
		b.lines = append(b.lines, b.partial.String())
		b.partial.Reset()
		text = text[i+1:]
	}
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
	return len(p), nil
}

// Lines returns a copy of the retained complete lines, oldest first.
func (b *LogBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.lines...)
}
