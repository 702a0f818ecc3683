package message

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Format selects how a completed Message is rendered as a sink record.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type jsonRecord struct {
	Name       string      `json:"name"`
	Identifier uint64      `json:"identifier"`
	History    jsonHistory `json:"history"`
}

type jsonHistory struct {
	Request  string `json:"Request,omitempty"`
	Response string `json:"Response,omitempty"`
}

// Render formats m as a single line without the trailing newline.
func Render(m *Message, format Format) (string, error) {
	if m == nil {
		return "", fmt.Errorf("render: nil message")
	}
	switch format {
	case FormatText, "":
		return renderText(m), nil
	case FormatJSON:
		b, err := json.Marshal(jsonRecord{
			Name:       m.Name,
			Identifier: m.Identifier,
			History: jsonHistory{
				Request:  m.History[Request],
				Response: m.History[Response],
			},
		})
		if err != nil {
			return "", fmt.Errorf("render: %w", err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("render: unsupported record format %q", format)
	}
}

func renderText(m *Message) string {
	var sb strings.Builder
	sb.WriteString("Message { name: ")
	sb.WriteString(strconv.Quote(m.Name))
	sb.WriteString(", identifier: ")
	sb.WriteString(strconv.FormatUint(m.Identifier, 10))
	sb.WriteString(", history: {")
	first := true
	for _, kind := range historyOrder {
		note, ok := m.History[kind]
		if !ok {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(kind.String())
		sb.WriteString(": ")
		sb.WriteString(strconv.Quote(note))
	}
	sb.WriteString("} }")
	return sb.String()
}
