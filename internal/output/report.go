package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/torosent/lanebench/internal/metrics"
	"github.com/torosent/lanebench/internal/threshold"
)

// RunInfo identifies the run a report describes.
type RunInfo struct {
	RunID    string `json:"run_id"`
	Strategy string `json:"strategy"`
	Lanes    int    `json:"lanes"`
	Target   string `json:"result"`
	DryRun   bool   `json:"dry_run,omitempty"`
	Aborted  bool   `json:"aborted,omitempty"`
}

// ThresholdSummary aggregates threshold outcomes for JSON and HTML output.
type ThresholdSummary struct {
	Total   int                   `json:"total"`
	Passed  int                   `json:"passed"`
	Failed  int                   `json:"failed"`
	Results []ThresholdResultJSON `json:"results"`
}

// ThresholdResultJSON is the serialisable form of a threshold.Result.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Metric    string  `json:"metric"`
	Aggregate string  `json:"aggregate"`
	Operator  string  `json:"operator"`
	Expected  float64 `json:"expected"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

// JSONReport is the document written by PrintJSONReport.
type JSONReport struct {
	Run        RunInfo           `json:"run"`
	Stats      metrics.Stats     `json:"stats"`
	Thresholds *ThresholdSummary `json:"thresholds,omitempty"`
}

// SummarizeThresholds returns nil when no thresholds were evaluated.
func SummarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, info RunInfo, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Lanebench Results ---")
	fmt.Fprintf(w, "Run ID:            %s\n", info.RunID)
	fmt.Fprintf(w, "Strategy:          %s (%d lanes)\n", info.Strategy, info.Lanes)
	if info.DryRun {
		fmt.Fprintln(w, "Result:            (dry run, records discarded)")
	} else {
		fmt.Fprintf(w, "Result:            %s\n", info.Target)
	}
	fmt.Fprintf(w, "Steps:             %d / %d\n", stats.Steps, stats.Planned)
	if info.Aborted {
		fmt.Fprintln(w, "Status:            aborted")
	}
	fmt.Fprintf(w, "Heartbeats:        %d\n", stats.HeartBeats)
	fmt.Fprintf(w, "Notifications:     %d\n", stats.Notifications)
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Steps/sec:         %.2f\n", stats.StepsPerSec)
	fmt.Fprintln(w, "\nStep Round Trip:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P95:             %s\n", stats.P95Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if len(stats.Lanes) > 0 {
		fmt.Fprintln(w, "\nLane Breakdown:")
		for _, lane := range stats.Lanes {
			share := 0.0
			if stats.Steps > 0 {
				share = (float64(lane.Records) / float64(stats.Steps)) * 100
			}
			fmt.Fprintf(w, "  - %s: records=%d (%.1f%%), heartbeats=%d\n",
				lane.Name, lane.Records, share, lane.HeartBeats)
		}
	}
}

// PrintThresholds writes one line per threshold followed by a verdict.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	summary := SummarizeThresholds(results)
	fmt.Fprintln(w, "\nThresholds:")
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
	fmt.Fprintf(w, "  %d/%d passed\n", summary.Passed, summary.Total)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, info RunInfo, stats metrics.Stats, results []threshold.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(JSONReport{
		Run:        info,
		Stats:      stats,
		Thresholds: SummarizeThresholds(results),
	})
}
