package lane

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/lanebench/internal/message"
	"github.com/torosent/lanebench/internal/tracing"
)

// ErrInboxClosed is returned when a lane's inbound channel closes before it
// received a Terminate envelope.
var ErrInboxClosed = errors.New("inbox closed before terminate")

// State is the lifecycle state of a lane.
type State int32

const (
	Running State = iota
	Terminated
)

func (s State) String() string {
	if s == Terminated {
		return "terminated"
	}
	return "running"
}

// Options configure a Lane.
type Options struct {
	ID     string
	Inbox  <-chan message.Envelope
	Outbox chan<- message.Envelope
	// AnnounceTermination emits "<id>: Terminated" before the final "<id>: Done!".
	AnnounceTermination bool
	Logger              *slog.Logger
	Tracer              trace.Tracer
}

// Lane is a sequential worker that consumes envelopes until it is told to stop.
type Lane struct {
	opt       Options
	log       *slog.Logger
	state     atomic.Int32
	processed atomic.Int64
}

// Name returns the conventional id of the lane at index (ch1, ch2, ...).
func Name(index int) string {
	return fmt.Sprintf("ch%d", index+1)
}

func New(opt Options) *Lane {
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Lane{
		opt: opt,
		log: logger.With("component", "lane", "lane", opt.ID),
	}
}

func (l *Lane) ID() string { return l.opt.ID }

// State reports the lane's lifecycle state. Safe for concurrent use.
func (l *Lane) State() State { return State(l.state.Load()) }

// Processed returns the number of envelopes consumed so far.
func (l *Lane) Processed() int64 { return l.processed.Load() }

// Run consumes the inbox until Terminate. It does not watch ctx for
// cancellation; ctx only parents the lane span. A failed send (closed outbox)
// panics inside the loop and is returned as an error.
func (l *Lane) Run(ctx context.Context) (err error) {
	_, span := tracing.StartLaneSpan(ctx, l.opt.Tracer, l.opt.ID)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lane %s panicked: %v", l.opt.ID, r)
		}
		if err != nil {
			l.log.Error("lane exited abnormally", "error", err, "envelopes", l.Processed())
		} else {
			l.log.Debug("lane exited", "envelopes", l.Processed())
		}
		tracing.EndSpan(span, err, attribute.Int64("lanebench.lane.envelopes", l.Processed()))
	}()

	for env := range l.opt.Inbox {
		l.processed.Add(1)
		done, err := l.handle(env)
		if err != nil {
			return err
		}
		if done {
			l.state.Store(int32(Terminated))
			l.finish()
			return nil
		}
	}
	return fmt.Errorf("lane %s: %w", l.opt.ID, ErrInboxClosed)
}

func (l *Lane) handle(env message.Envelope) (bool, error) {
	switch e := env.(type) {
	case message.RequestEnvelope:
		if e.Message == nil {
			return false, fmt.Errorf("lane %s: request without message", l.opt.ID)
		}
		e.Message.Stamp(message.Request, l.opt.ID+": OK")
		l.opt.Outbox <- message.ResponseEnvelope{Message: e.Message}
	case message.ResponseEnvelope:
		// Responses only flow lane -> dispatcher.
	case message.HeartBeatEnvelope:
		l.opt.Outbox <- e
	case message.NotifyEnvelope:
		l.opt.Outbox <- message.NotifyEnvelope{Text: l.opt.ID + ": " + e.Text}
	case message.TerminateEnvelope:
		return true, nil
	default:
		return false, fmt.Errorf("lane %s: unexpected envelope %T", l.opt.ID, env)
	}
	return false, nil
}

func (l *Lane) finish() {
	if l.opt.AnnounceTermination {
		l.opt.Outbox <- message.NotifyEnvelope{Text: l.opt.ID + ": Terminated"}
	}
	l.opt.Outbox <- message.NotifyEnvelope{Text: l.opt.ID + ": Done!"}
}
