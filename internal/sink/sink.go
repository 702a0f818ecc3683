package sink

import (
	"context"
	"strings"
)

// Sink is an append-only, ordered record writer. Flush must be called
// before the process exits for appended records to be durable.
type Sink interface {
	Append(line string) error
	Flush() error
	Close() error
}

// Open returns a WebSocketSink for ws:// and wss:// targets and a FileSink
// for anything else.
func Open(ctx context.Context, target string) (Sink, error) {
	lower := strings.ToLower(strings.TrimSpace(target))
	if strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://") {
		return DialWebSocket(ctx, strings.TrimSpace(target), nil)
	}
	return OpenFile(target)
}

// IsRemote reports whether target would be opened as a network sink.
func IsRemote(target string) bool {
	lower := strings.ToLower(strings.TrimSpace(target))
	return strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://")
}
