package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/lanebench/internal/metrics"
)

// lockedBuffer guards a bytes.Buffer written by the reporter goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestProgressReporterStopWithoutStart(t *testing.T) {
	collector := metrics.NewCollector()
	reporter := NewProgressReporter(collector, 100*time.Millisecond, nil)
	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}
	reporter.Stop()
}

func TestProgressReporterWritesLines(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Plan([]string{"ch1", "ch2"}, 4)
	collector.Start()
	collector.RecordStep(0, time.Millisecond)
	collector.RecordHeartBeat(1)

	var buf lockedBuffer
	reporter := NewProgressReporter(collector, 20*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start() // second Start is a no-op

	time.Sleep(80 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()

	output := buf.String()
	if !strings.Contains(output, "Steps: 1/4 (25.0%)") {
		t.Errorf("expected progress line in output, got %q", output)
	}
	if !strings.HasSuffix(output, "\n") {
		t.Errorf("Stop should terminate the progress line")
	}
}

func TestProgressLine(t *testing.T) {
	tests := []struct {
		name  string
		stats metrics.Stats
		want  []string
		avoid []string
	}{
		{
			name:  "planned with heartbeats",
			stats: metrics.Stats{Planned: 200, Steps: 50, HeartBeats: 100, StepsPerSec: 1234.4, MeanLatencyMs: 0.0421},
			want:  []string{"\rSteps: 50/200 (25.0%)", "Steps/sec: 1234", "Mean RTT: 0.042ms", "Heartbeats: 100"},
		},
		{
			name:  "shared strategy without heartbeats",
			stats: metrics.Stats{Planned: 10, Steps: 10},
			want:  []string{"Steps: 10/10 (100.0%)"},
			avoid: []string{"Heartbeats"},
		},
		{
			name:  "estimates remaining time",
			stats: metrics.Stats{Planned: 1000, Steps: 400, StepsPerSec: 100},
			want:  []string{"(40.0%)", "ETA: 6s"},
		},
		{
			name:  "finished run has no estimate",
			stats: metrics.Stats{Planned: 10, Steps: 10, StepsPerSec: 100},
			avoid: []string{"ETA"},
		},
		{
			name:  "unplanned",
			stats: metrics.Stats{Steps: 7},
			want:  []string{"Steps: 7 |"},
			avoid: []string{"%", "ETA"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := ProgressLine(tt.stats)
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("ProgressLine() = %q, missing %q", line, w)
				}
			}
			for _, a := range tt.avoid {
				if strings.Contains(line, a) {
					t.Errorf("ProgressLine() = %q, should not contain %q", line, a)
				}
			}
		})
	}
}
