package dispatcher

import (
	"io"
	"log/slog"
	"os"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/torosent/lanebench/internal/lane"
	"github.com/torosent/lanebench/internal/message"
	"github.com/torosent/lanebench/internal/metrics"
)

// Strategy selects how lanes are wired and how responses are collected.
type Strategy string

const (
	// StrategyLockstep gives every lane its own outbound channel and probes idle
	// lanes with a heartbeat on every step. Sink order equals step order.
	StrategyLockstep Strategy = "lockstep"
	// StrategyShared fans all lanes into one outbound channel and sends no
	// heartbeats.
	StrategyShared Strategy = "shared"
)

const (
	DefaultLanes       = 3
	DefaultSteps       = 600_000
	DefaultInboxSize   = 64
	DefaultNotifyEvery = 1_000
)

// Sink is the append-only destination for completed records. Only the
// dispatcher goroutine calls it.
type Sink interface {
	Append(line string) error
	Flush() error
}

// Options configure the Dispatcher.
type Options struct {
	Lanes          int                         // number of worker lanes
	Steps          uint64                      // last step number, inclusive (0..=Steps)
	Strategy       Strategy                    // collection strategy (default lockstep)
	NotifyEvery    int                         // Notify cadence in steps; 0 disables, negative picks the strategy default
	InboxSize      int                         // capacity of every lane channel
	RatePerSecond  int                         // step pacing (0 means unlimited)
	LimiterFactory func(rps int) *rate.Limiter // optional injection for tests
	Sink           Sink                        // record destination (required)
	Format         message.Format              // record rendering
	Collector      *metrics.Collector          // step metrics; created when nil
	OpLog          io.Writer                   // operational log for Notify text (default stdout)
	Logger         *slog.Logger
	Tracer         trace.Tracer
	RunID          string // generated when empty

	spawn func(lane.Options) worker // replaces lane.New in tests
}

func (o *Options) normalize() {
	if o.Lanes <= 0 {
		o.Lanes = DefaultLanes
	}
	if o.Strategy == "" {
		o.Strategy = StrategyLockstep
	}
	if o.NotifyEvery < 0 {
		if o.Strategy == StrategyShared {
			o.NotifyEvery = DefaultNotifyEvery
		} else {
			o.NotifyEvery = 0
		}
	}
	if o.InboxSize <= 0 {
		o.InboxSize = DefaultInboxSize
	}
	if o.RatePerSecond < 0 {
		o.RatePerSecond = 0
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps int) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst equal to rps to smooth pacing.
			return rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
	if o.Format == "" {
		o.Format = message.FormatText
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.OpLog == nil {
		o.OpLog = os.Stdout
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.RunID == "" {
		o.RunID = ulid.Make().String()
	}
}
