package lane_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/torosent/lanebench/internal/lane"
	"github.com/torosent/lanebench/internal/message"
)

func startLane(t *testing.T, announce bool) (chan message.Envelope, chan message.Envelope, *lane.Lane, <-chan error) {
	t.Helper()
	in := make(chan message.Envelope, 8)
	out := make(chan message.Envelope, 8)
	l := lane.New(lane.Options{
		ID:                  "ch1",
		Inbox:               in,
		Outbox:              out,
		AnnounceTermination: announce,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()
	return in, out, l, errCh
}

func receive(t *testing.T, ch <-chan message.Envelope) message.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return nil
	}
}

func waitExit(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("lane did not exit")
		return nil
	}
}

func TestLaneStampsRequest(t *testing.T) {
	in, out, _, errCh := startLane(t, false)

	in <- message.RequestEnvelope{Message: message.New(42)}
	env := receive(t, out)
	resp, ok := env.(message.ResponseEnvelope)
	if !ok {
		t.Fatalf("got %T, want ResponseEnvelope", env)
	}
	if resp.Message.Identifier != 42 {
		t.Fatalf("Identifier = %d, want 42", resp.Message.Identifier)
	}
	if got := resp.Message.History[message.Request]; got != "ch1: OK" {
		t.Fatalf("History[Request] = %q, want %q", got, "ch1: OK")
	}
	if _, ok := resp.Message.History[message.Response]; ok {
		t.Fatal("lane must not stamp Response")
	}

	in <- message.TerminateEnvelope{}
	receive(t, out)
	if err := waitExit(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestLaneEchoesHeartBeat(t *testing.T) {
	in, out, _, errCh := startLane(t, false)

	in <- message.HeartBeatEnvelope{Step: 17}
	env := receive(t, out)
	hb, ok := env.(message.HeartBeatEnvelope)
	if !ok || hb.Step != 17 {
		t.Fatalf("got %#v, want HeartBeatEnvelope{Step: 17}", env)
	}

	in <- message.TerminateEnvelope{}
	receive(t, out)
	if err := waitExit(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestLaneForwardsNotifyWithPrefix(t *testing.T) {
	in, out, _, errCh := startLane(t, false)

	in <- message.NotifyEnvelope{Text: "*** Step = 1000 ***"}
	env := receive(t, out)
	n, ok := env.(message.NotifyEnvelope)
	if !ok || n.Text != "ch1: *** Step = 1000 ***" {
		t.Fatalf("got %#v", env)
	}

	in <- message.TerminateEnvelope{}
	receive(t, out)
	if err := waitExit(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestLaneDiscardsResponse(t *testing.T) {
	in, out, l, errCh := startLane(t, false)

	in <- message.ResponseEnvelope{Message: message.New(1)}
	in <- message.TerminateEnvelope{}

	env := receive(t, out)
	n, ok := env.(message.NotifyEnvelope)
	if !ok || n.Text != "ch1: Done!" {
		t.Fatalf("first outbound = %#v, want Done notification", env)
	}
	if err := waitExit(t, errCh); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if l.Processed() != 2 {
		t.Fatalf("Processed() = %d, want 2", l.Processed())
	}
}

func TestLaneTerminateAnnouncements(t *testing.T) {
	tests := []struct {
		name     string
		announce bool
		want     []string
	}{
		{"done only", false, []string{"ch1: Done!"}},
		{"terminated then done", true, []string{"ch1: Terminated", "ch1: Done!"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out, l, errCh := startLane(t, tt.announce)
			in <- message.TerminateEnvelope{}
			// Anything queued after Terminate is never consumed.
			in <- message.HeartBeatEnvelope{Step: 1}

			if err := waitExit(t, errCh); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if l.State() != lane.Terminated {
				t.Fatalf("State() = %v, want terminated", l.State())
			}
			if len(out) != len(tt.want) {
				t.Fatalf("outbound len = %d, want %d", len(out), len(tt.want))
			}
			for _, want := range tt.want {
				n := (<-out).(message.NotifyEnvelope)
				if n.Text != want {
					t.Errorf("notify = %q, want %q", n.Text, want)
				}
			}
			if l.Processed() != 1 {
				t.Fatalf("Processed() = %d, want 1", l.Processed())
			}
		})
	}
}

func TestLaneInboxClosedWithoutTerminate(t *testing.T) {
	in, _, l, errCh := startLane(t, false)
	close(in)

	err := waitExit(t, errCh)
	if !errors.Is(err, lane.ErrInboxClosed) {
		t.Fatalf("Run() error = %v, want ErrInboxClosed", err)
	}
	if l.State() != lane.Running {
		t.Fatalf("State() = %v, want running", l.State())
	}
}

func TestLaneClosedOutboxIsFatal(t *testing.T) {
	in := make(chan message.Envelope, 1)
	out := make(chan message.Envelope)
	close(out)
	l := lane.New(lane.Options{ID: "ch2", Inbox: in, Outbox: out})

	in <- message.HeartBeatEnvelope{Step: 1}
	err := l.Run(context.Background())
	if err == nil {
		t.Fatal("expected error when outbox is closed")
	}
}

func TestName(t *testing.T) {
	for i, want := range []string{"ch1", "ch2", "ch3"} {
		if got := lane.Name(i); got != want {
			t.Errorf("Name(%d) = %q, want %q", i, got, want)
		}
	}
}
