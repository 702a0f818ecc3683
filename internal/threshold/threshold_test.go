package threshold

import (
	"testing"
	"time"

	"github.com/torosent/lanebench/internal/metrics"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      Threshold
		wantError bool
	}{
		{
			name:  "p99 step duration",
			input: "step_duration:p99 < 5",
			want: Threshold{
				Metric:    "step_duration",
				Aggregate: "p99",
				Operator:  "<",
				Value:     5,
				Raw:       "step_duration:p99 < 5",
			},
		},
		{
			name:  "fractional avg with <=",
			input: "step_duration:avg <= 0.25",
			want: Threshold{
				Metric:    "step_duration",
				Aggregate: "avg",
				Operator:  "<=",
				Value:     0.25,
				Raw:       "step_duration:avg <= 0.25",
			},
		},
		{
			name:  "step rate",
			input: "  steps:rate > 100000  ",
			want: Threshold{
				Metric:    "steps",
				Aggregate: "rate",
				Operator:  ">",
				Value:     100000,
				Raw:       "steps:rate > 100000",
			},
		},
		{
			name:  "heartbeat count without spaces",
			input: "heartbeats:count>=10",
			want: Threshold{
				Metric:    "heartbeats",
				Aggregate: "count",
				Operator:  ">=",
				Value:     10,
				Raw:       "heartbeats:count>=10",
			},
		},
		{name: "empty string", input: "", wantError: true},
		{name: "missing operator", input: "step_duration:p95 500", wantError: true},
		{name: "invalid metric", input: "http_req_duration:p95 < 500", wantError: true},
		{name: "invalid aggregate", input: "step_duration:p85 < 500", wantError: true},
		{name: "invalid operator", input: "step_duration:p95 << 500", wantError: true},
		{name: "not a number", input: "step_duration:p95 < abc", wantError: true},
		{name: "malformed number", input: "steps:count < 1.2.3", wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("Parse() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && got != tt.want {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseMultiple(t *testing.T) {
	tests := []struct {
		name      string
		input     []string
		wantCount int
		wantError bool
	}{
		{
			name: "multiple valid thresholds",
			input: []string{
				"step_duration:p95 < 2",
				"steps:count == 600001",
				"notifications:count > 0",
			},
			wantCount: 3,
		},
		{name: "empty slice", input: []string{}},
		{
			name:      "one valid, one invalid",
			input:     []string{"step_duration:p95 < 2", "invalid threshold"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMultiple(tt.input)
			if (err != nil) != tt.wantError {
				t.Errorf("ParseMultiple() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && len(got) != tt.wantCount {
				t.Errorf("ParseMultiple() returned %d thresholds, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func sampleStats() metrics.Stats {
	return metrics.Stats{
		Planned:       1000,
		Steps:         1000,
		HeartBeats:    2000,
		Notifications: 3,
		MinLatency:    10 * time.Microsecond,
		MaxLatency:    4 * time.Millisecond,
		MinLatencyMs:  0.01,
		MaxLatencyMs:  4,
		MeanLatencyMs: 0.05,
		P50LatencyMs:  0.04,
		P90LatencyMs:  0.08,
		P95LatencyMs:  0.1,
		P99LatencyMs:  0.5,
		StepsPerSec:   20000,
		Duration:      50 * time.Millisecond,
	}
}

func TestEvaluator(t *testing.T) {
	stats := sampleStats()

	tests := []struct {
		name       string
		thresholds []string
		wantPass   []bool
	}{
		{
			name:       "all thresholds pass",
			thresholds: []string{"step_duration:p99 < 1", "steps:rate > 10000", "steps:count == 1000"},
			wantPass:   []bool{true, true, true},
		},
		{
			name:       "some thresholds fail",
			thresholds: []string{"step_duration:p99 < 0.2", "steps:rate > 50000", "heartbeats:count >= 2000"},
			wantPass:   []bool{false, false, true},
		},
		{
			name:       "latency aggregates",
			thresholds: []string{"step_duration:p50 < 0.05", "step_duration:p90 <= 0.08", "step_duration:p95 < 0.2", "step_duration:avg < 0.1", "step_duration:max < 5", "step_duration:min > 0.001"},
			wantPass:   []bool{true, true, true, true, true, true},
		},
		{
			name:       "aggregate not supported by metric",
			thresholds: []string{"notifications:rate > 1"},
			wantPass:   []bool{false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thresholds, err := ParseMultiple(tt.thresholds)
			if err != nil {
				t.Fatalf("ParseMultiple() error = %v", err)
			}

			results := NewEvaluator(thresholds).Evaluate(stats)
			if len(results) != len(tt.wantPass) {
				t.Fatalf("got %d results, want %d", len(results), len(tt.wantPass))
			}
			for i, result := range results {
				if result.Pass != tt.wantPass[i] {
					t.Errorf("threshold[%d] %q: got pass=%v, want %v (actual=%.2f, message=%s)",
						i, result.Threshold.Raw, result.Pass, tt.wantPass[i], result.Actual, result.Message)
				}
			}
		})
	}
}

func TestEvaluatorWithoutThresholds(t *testing.T) {
	if results := NewEvaluator(nil).Evaluate(sampleStats()); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
	if !AllPassed(nil) {
		t.Fatal("no thresholds should count as passing")
	}
}

func TestAllPassed(t *testing.T) {
	if AllPassed([]Result{{Pass: true}, {Pass: false}}) {
		t.Fatal("expected failure when any result fails")
	}
	if !AllPassed([]Result{{Pass: true}, {Pass: true}}) {
		t.Fatal("expected pass when all results pass")
	}
}

func TestCompareValues(t *testing.T) {
	tests := []struct {
		name     string
		actual   float64
		operator string
		expected float64
		want     bool
	}{
		{"less than true", 50, "<", 100, true},
		{"less than equal", 100, "<", 100, false},
		{"less than or equal equal", 100, "<=", 100, true},
		{"less than or equal false", 150, "<=", 100, false},
		{"greater than true", 150, ">", 100, true},
		{"greater than equal", 100, ">", 100, false},
		{"greater than or equal equal", 100, ">=", 100, true},
		{"greater than or equal false", 50, ">=", 100, false},
		{"equal true", 100, "==", 100, true},
		{"equal false", 100, "==", 101, false},
		{"equal with floating point precision", 100.0000000001, "==", 100, true},
		{"unknown operator", 1, "!=", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compareValues(tt.actual, tt.operator, tt.expected); got != tt.want {
				t.Errorf("compareValues(%.2f, %s, %.2f) = %v, want %v",
					tt.actual, tt.operator, tt.expected, got, tt.want)
			}
		})
	}
}

func TestMetricValue(t *testing.T) {
	stats := sampleStats()

	tests := []struct {
		name      string
		threshold Threshold
		want      float64
		wantError bool
	}{
		{name: "step_duration p50", threshold: Threshold{Metric: "step_duration", Aggregate: "p50"}, want: 0.04},
		{name: "step_duration p95", threshold: Threshold{Metric: "step_duration", Aggregate: "p95"}, want: 0.1},
		{name: "step_duration p99", threshold: Threshold{Metric: "step_duration", Aggregate: "p99"}, want: 0.5},
		{name: "step_duration avg", threshold: Threshold{Metric: "step_duration", Aggregate: "avg"}, want: 0.05},
		{name: "step_duration max", threshold: Threshold{Metric: "step_duration", Aggregate: "max"}, want: 4},
		{name: "steps count", threshold: Threshold{Metric: "steps", Aggregate: "count"}, want: 1000},
		{name: "steps rate", threshold: Threshold{Metric: "steps", Aggregate: "rate"}, want: 20000},
		{name: "heartbeats count", threshold: Threshold{Metric: "heartbeats", Aggregate: "count"}, want: 2000},
		{name: "notifications count", threshold: Threshold{Metric: "notifications", Aggregate: "count"}, want: 3},
		{name: "unsupported metric", threshold: Threshold{Metric: "invalid_metric", Aggregate: "p95"}, wantError: true},
		{name: "steps percentile", threshold: Threshold{Metric: "steps", Aggregate: "p95"}, wantError: true},
		{name: "heartbeats rate", threshold: Threshold{Metric: "heartbeats", Aggregate: "rate"}, wantError: true},
		{name: "step_duration count", threshold: Threshold{Metric: "step_duration", Aggregate: "count"}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := metricValue(tt.threshold, stats)
			if (err != nil) != tt.wantError {
				t.Errorf("metricValue() error = %v, wantError %v", err, tt.wantError)
				return
			}
			if !tt.wantError && got != tt.want {
				t.Errorf("metricValue() = %v, want %v", got, tt.want)
			}
		})
	}
}
