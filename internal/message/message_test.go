package message_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/torosent/lanebench/internal/message"
)

func TestNewMessage(t *testing.T) {
	m := message.New(42)
	if m.Name != "Message #42" {
		t.Fatalf("Name = %q, want %q", m.Name, "Message #42")
	}
	if m.Identifier != 42 {
		t.Fatalf("Identifier = %d, want 42", m.Identifier)
	}
	if len(m.History) != 0 {
		t.Fatalf("History len = %d, want 0", len(m.History))
	}
	if m.Complete() {
		t.Fatal("new message should not be complete")
	}
}

func TestStampWritesOnce(t *testing.T) {
	m := message.New(1)
	if !m.Stamp(message.Request, "ch1: OK") {
		t.Fatal("first stamp rejected")
	}
	if m.Stamp(message.Request, "ch2: OK") {
		t.Fatal("second stamp of the same kind accepted")
	}
	if got := m.History[message.Request]; got != "ch1: OK" {
		t.Fatalf("History[Request] = %q, want %q", got, "ch1: OK")
	}
}

func TestMissing(t *testing.T) {
	tests := []struct {
		name  string
		stamp map[message.HistoryKind]string
		want  []message.HistoryKind
	}{
		{"empty", nil, []message.HistoryKind{message.Request, message.Response}},
		{"request only", map[message.HistoryKind]string{message.Request: "ch1: OK"}, []message.HistoryKind{message.Response}},
		{"empty value", map[message.HistoryKind]string{message.Request: "ch1: OK", message.Response: ""}, []message.HistoryKind{message.Response}},
		{"complete", map[message.HistoryKind]string{message.Request: "ch1: OK", message.Response: "OK"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := message.New(7)
			for kind, note := range tt.stamp {
				m.Stamp(kind, note)
			}
			got := m.Missing()
			if len(got) != len(tt.want) {
				t.Fatalf("Missing() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Missing()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEnvelopeKinds(t *testing.T) {
	tests := []struct {
		env  message.Envelope
		want message.Kind
	}{
		{message.RequestEnvelope{Message: message.New(0)}, message.KindRequest},
		{message.ResponseEnvelope{Message: message.New(0)}, message.KindResponse},
		{message.TerminateEnvelope{}, message.KindTerminate},
		{message.HeartBeatEnvelope{Step: 3}, message.KindHeartBeat},
		{message.NotifyEnvelope{Text: "hi"}, message.KindNotify},
	}
	for _, tt := range tests {
		if got := tt.env.Kind(); got != tt.want {
			t.Errorf("%T.Kind() = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestRenderText(t *testing.T) {
	m := message.New(42)
	m.Stamp(message.Response, "OK")
	m.Stamp(message.Request, "ch1: OK")

	got, err := message.Render(m, message.FormatText)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	want := `Message { name: "Message #42", identifier: 42, history: {Request: "ch1: OK", Response: "OK"} }`
	if got != want {
		t.Fatalf("Render() = %q, want %q", got, want)
	}
	if strings.Contains(got, "\n") {
		t.Fatal("record must be a single line")
	}
}

func TestRenderTextOmitsMissingKey(t *testing.T) {
	m := message.New(5)
	m.Stamp(message.Request, "ch3: OK")
	got, err := message.Render(m, message.FormatText)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(got, "Response") {
		t.Fatalf("Render() = %q, want no Response entry", got)
	}
}

func TestRenderJSON(t *testing.T) {
	m := message.New(9)
	m.Stamp(message.Request, "ch1: OK")
	m.Stamp(message.Response, "OK")

	got, err := message.Render(m, message.FormatJSON)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	var decoded struct {
		Name       string            `json:"name"`
		Identifier uint64            `json:"identifier"`
		History    map[string]string `json:"history"`
	}
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if decoded.Identifier != 9 || decoded.Name != "Message #9" {
		t.Fatalf("decoded = %+v", decoded)
	}
	if decoded.History["Request"] != "ch1: OK" || decoded.History["Response"] != "OK" {
		t.Fatalf("history = %v", decoded.History)
	}
}

func TestRenderRejectsUnknownFormat(t *testing.T) {
	if _, err := message.Render(message.New(1), message.Format("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := message.Render(nil, message.FormatText); err == nil {
		t.Fatal("expected error for nil message")
	}
}
