package output

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/torosent/lanebench/internal/metrics"
)

// ProgressReporter redraws a one-line step counter until stopped.
type ProgressReporter struct {
	collector *metrics.Collector
	interval  time.Duration
	writer    io.Writer

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	cancel    context.CancelFunc
	finished  chan struct{}
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector: collector,
		interval:  interval,
		writer:    writer,
		finished:  make(chan struct{}),
	}
}

// Start begins redrawing in a background goroutine. Later calls do nothing.
func (p *ProgressReporter) Start() {
	p.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		p.started.Store(true)
		go p.run(ctx)
	})
}

// Stop halts the redraw, prints the final counts and terminates the line.
func (p *ProgressReporter) Stop() {
	p.stopOnce.Do(func() {
		if !p.started.Load() {
			return
		}
		p.cancel()
		<-p.finished
		p.draw()
		fmt.Fprintln(p.writer)
	})
}

func (p *ProgressReporter) run(ctx context.Context) {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.draw()
		case <-ctx.Done():
			return
		}
	}
}

func (p *ProgressReporter) draw() {
	fmt.Fprint(p.writer, ProgressLine(p.collector.Stats(p.collector.Elapsed())))
}

// ProgressLine renders a single carriage-return-prefixed status line.
func ProgressLine(stats metrics.Stats) string {
	line := fmt.Sprintf("\rSteps: %d", stats.Steps)
	if stats.Planned > 0 {
		line += fmt.Sprintf("/%d (%.1f%%)", stats.Planned, float64(stats.Steps)/float64(stats.Planned)*100)
	}
	line += fmt.Sprintf(" | Steps/sec: %.0f | Mean RTT: %.3fms", stats.StepsPerSec, stats.MeanLatencyMs)
	if stats.HeartBeats > 0 {
		line += fmt.Sprintf(" | Heartbeats: %d", stats.HeartBeats)
	}
	if eta, ok := remaining(stats); ok {
		line += fmt.Sprintf(" | ETA: %s", eta)
	}
	return line
}

func remaining(stats metrics.Stats) (time.Duration, bool) {
	if stats.Planned == 0 || stats.StepsPerSec <= 0 || stats.Steps < 0 || uint64(stats.Steps) >= stats.Planned {
		return 0, false
	}
	left := float64(stats.Planned-uint64(stats.Steps)) / stats.StepsPerSec
	return time.Duration(left * float64(time.Second)).Round(time.Second), true
}
