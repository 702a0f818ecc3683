package message

import "fmt"

// HistoryKind names a provenance stage recorded on a Message.
type HistoryKind int

const (
	Request HistoryKind = iota
	Response
)

// historyOrder is the stable rendering order of history entries.
var historyOrder = [...]HistoryKind{Request, Response}

func (k HistoryKind) String() string {
	switch k {
	case Request:
		return "Request"
	case Response:
		return "Response"
	default:
		return fmt.Sprintf("HistoryKind(%d)", int(k))
	}
}

// Message is a single numbered work item.
type Message struct {
	Name       string
	Identifier uint64
	History    map[HistoryKind]string
}

// New creates a message for the given dispatch step.
func New(identifier uint64) *Message {
	return &Message{
		Name:       fmt.Sprintf("Message #%d", identifier),
		Identifier: identifier,
		History:    make(map[HistoryKind]string, len(historyOrder)),
	}
}

// Stamp records an annotation for kind. Each kind is written at most once;
// Stamp reports false and leaves the history untouched on a second write.
func (m *Message) Stamp(kind HistoryKind, note string) bool {
	if m.History == nil {
		m.History = make(map[HistoryKind]string, len(historyOrder))
	}
	if _, ok := m.History[kind]; ok {
		return false
	}
	m.History[kind] = note
	return true
}

// Missing returns the history kinds that are absent or empty.
func (m *Message) Missing() []HistoryKind {
	var missing []HistoryKind
	for _, kind := range historyOrder {
		if m.History[kind] == "" {
			missing = append(missing, kind)
		}
	}
	return missing
}

// Complete reports whether both Request and Response provenance are present.
func (m *Message) Complete() bool {
	return len(m.Missing()) == 0
}
