package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const maxHistory = 3600

// Collector records per-step metrics in a thread-safe manner.
type Collector struct {
	mu            sync.Mutex
	hist          *hdrhistogram.Histogram
	planned       uint64
	steps         int64
	heartbeats    int64
	notifications int64
	lanes         []LaneStats
	minLatency    time.Duration
	maxLatency    time.Duration
	sumLatency    time.Duration
	start         time.Time
	history       []DataPoint
	lastSample    time.Time
	lastSteps     int64
}

// LaneStats holds per-lane counters.
type LaneStats struct {
	Name       string `json:"name"`
	Records    int64  `json:"records"`
	HeartBeats int64  `json:"heartbeats"`
}

// DataPoint is one sample of the time series used by the dashboard and HTML report.
type DataPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Steps         int64     `json:"steps"`
	StepsPerSec   float64   `json:"steps_per_sec"`
	MeanLatencyMs float64   `json:"mean_latency_ms"`
}

// Stats represents aggregated metrics.
type Stats struct {
	Planned       uint64        `json:"planned_steps"`
	Steps         int64         `json:"steps"`
	HeartBeats    int64         `json:"heartbeats"`
	Notifications int64         `json:"notifications"`
	Lanes         []LaneStats   `json:"lanes,omitempty"`
	MinLatency    time.Duration `json:"-"`
	MaxLatency    time.Duration `json:"-"`
	MeanLatency   time.Duration `json:"-"`
	P50Latency    time.Duration `json:"-"`
	P90Latency    time.Duration `json:"-"`
	P95Latency    time.Duration `json:"-"`
	P99Latency    time.Duration `json:"-"`
	Duration      time.Duration `json:"-"`
	StepsPerSec   float64       `json:"steps_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P90LatencyMs  float64 `json:"p90_latency_ms"`
	P95LatencyMs  float64 `json:"p95_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
	DurationMs    float64 `json:"duration_ms"`
}

func NewCollector() *Collector {
	// Track step round trips from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	now := time.Now()
	return &Collector{
		hist:       h,
		start:      now,
		lastSample: now,
	}
}

// Start marks the beginning of the run for throughput calculations.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	c.lastSample = c.start
	c.lastSteps = c.steps
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

// Plan registers the lane names and the number of steps the run will execute.
func (c *Collector) Plan(laneNames []string, steps uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.planned = steps
	c.lanes = make([]LaneStats, len(laneNames))
	for i, name := range laneNames {
		c.lanes[i].Name = name
	}
}

// RecordStep records a completed step whose response came from lane.
func (c *Collector) RecordStep(lane int, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency

	if c.steps == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	c.steps++
	c.laneLocked(lane).Records++
}

// RecordHeartBeat counts a heartbeat echo received from lane.
func (c *Collector) RecordHeartBeat(lane int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heartbeats++
	c.laneLocked(lane).HeartBeats++
}

// RecordNotify counts a notification written to the operational log.
func (c *Collector) RecordNotify() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications++
}

func (c *Collector) laneLocked(lane int) *LaneStats {
	for len(c.lanes) <= lane {
		c.lanes = append(c.lanes, LaneStats{Name: fmt.Sprintf("lane-%d", len(c.lanes))})
	}
	return &c.lanes[lane]
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		Planned:       c.planned,
		Steps:         c.steps,
		HeartBeats:    c.heartbeats,
		Notifications: c.notifications,
		MinLatency:    c.minLatency,
		MaxLatency:    c.maxLatency,
	}
	if len(c.lanes) > 0 {
		stats.Lanes = append([]LaneStats(nil), c.lanes...)
	}

	if c.steps > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / c.steps)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(c.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(c.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P95Latency = time.Duration(c.hist.ValueAtQuantile(95)) * time.Microsecond
		stats.P99Latency = time.Duration(c.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.P50LatencyMs = toMs(stats.P50Latency)
	stats.P90LatencyMs = toMs(stats.P90Latency)
	stats.P95LatencyMs = toMs(stats.P95Latency)
	stats.P99LatencyMs = toMs(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = toMs(elapsed)
	if elapsed > 0 && c.steps > 0 {
		stats.StepsPerSec = float64(c.steps) / elapsed.Seconds()
	}

	return stats
}

// Snapshot appends a time-series sample covering the interval since the previous one.
func (c *Collector) Snapshot() DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	point := DataPoint{Timestamp: now, Steps: c.steps}
	if window := now.Sub(c.lastSample); window > 0 {
		point.StepsPerSec = float64(c.steps-c.lastSteps) / window.Seconds()
	}
	if c.steps > 0 {
		point.MeanLatencyMs = toMs(time.Duration(int64(c.sumLatency) / c.steps))
	}
	c.lastSample = now
	c.lastSteps = c.steps

	c.history = append(c.history, point)
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
	return point
}

// History returns a copy of the recorded samples.
func (c *Collector) History() []DataPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]DataPoint(nil), c.history...)
}

// SampleEvery calls Snapshot on every tick until ctx is done.
func (c *Collector) SampleEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Snapshot()
		}
	}
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
