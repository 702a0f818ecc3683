package output

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/torosent/lanebench/internal/metrics"
	"github.com/torosent/lanebench/internal/threshold"
)

type htmlReport struct {
	GeneratedAt string
	Run         RunInfo
	Stats       metrics.Stats
	Latency     []latencyCell
	History     []metrics.DataPoint
	Thresholds  *ThresholdSummary
}

type latencyCell struct {
	Label string
	Value time.Duration
}

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"float2": func(f float64) string { return fmt.Sprintf("%.2f", f) },
	"share": func(part, total int64) string {
		if total <= 0 {
			return "0.0"
		}
		return fmt.Sprintf("%.1f", float64(part)/float64(total)*100)
	},
}).Parse(htmlTemplate))

// GenerateHTMLReport writes a self-contained page with the run summary, step
// round trip percentiles, per-lane shares and, when history was sampled,
// uPlot charts of throughput and mean round trip.
func GenerateHTMLReport(w io.Writer, info RunInfo, stats metrics.Stats, history []metrics.DataPoint, results []threshold.Result) error {
	data := htmlReport{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Run:         info,
		Stats:       stats,
		Latency: []latencyCell{
			{"Min", stats.MinLatency},
			{"P50", stats.P50Latency},
			{"P90", stats.P90Latency},
			{"P95", stats.P95Latency},
			{"P99", stats.P99Latency},
			{"Max", stats.MaxLatency},
			{"Mean", stats.MeanLatency},
		},
		History:    history,
		Thresholds: SummarizeThresholds(results),
	}
	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render html report: %w", err)
	}
	return nil
}

// History is emitted in a script context, where html/template encodes it as
// JSON.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Lanebench Run Report</title>
<style>
body { font: 15px/1.5 system-ui, sans-serif; color: #1f2933; background: #f4f5f7; margin: 0; }
header { background: #1f2933; color: #f4f5f7; padding: 24px 32px; }
header h1 { margin: 0 0 6px; font-size: 1.7rem; }
header p { margin: 0; opacity: .8; font-size: .9rem; }
main { max-width: 1200px; margin: 0 auto; padding: 24px 32px; }
section { background: #fff; border: 1px solid #d9dde3; border-radius: 6px; padding: 18px 22px; margin-bottom: 22px; }
h2 { font-size: 1.2rem; margin: 0 0 14px; }
dl.summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 14px; margin: 0; }
dl.summary dt { font-size: .8rem; text-transform: uppercase; color: #616e7c; }
dl.summary dd { margin: 0; font-size: 1.6rem; font-weight: 600; }
table { width: 100%; border-collapse: collapse; }
th, td { text-align: left; padding: 8px 10px; border-bottom: 1px solid #e4e7eb; }
th { font-size: .8rem; text-transform: uppercase; color: #616e7c; }
meter { width: 160px; margin-right: 8px; }
.pass { color: #0e7c3a; font-weight: 600; }
.fail { color: #b42318; font-weight: 600; }
.chart { height: 280px; margin-bottom: 18px; }
</style>
{{- if .History}}
<script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
<link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
{{- end}}
</head>
<body>
<header>
<h1>Lanebench Run Report</h1>
<p>Run {{.Run.RunID}} | {{.Run.Strategy}} | {{.Run.Lanes}} lanes{{if .Run.Aborted}} | aborted{{end}}</p>
<p>Generated {{.GeneratedAt}} | Duration {{.Stats.Duration}}</p>
</header>
<main>
<section>
<h2>Summary</h2>
<dl class="summary">
<div><dt>Steps</dt><dd>{{.Stats.Steps}}</dd><small>of {{.Stats.Planned}} planned</small></div>
<div><dt>Heartbeats</dt><dd>{{.Stats.HeartBeats}}</dd></div>
<div><dt>Notifications</dt><dd>{{.Stats.Notifications}}</dd></div>
<div><dt>Steps/sec</dt><dd>{{float2 .Stats.StepsPerSec}}</dd></div>
</dl>
</section>

<section>
<h2>Step Round Trip</h2>
<table>
<tr>{{range .Latency}}<th>{{.Label}}</th>{{end}}</tr>
<tr>{{range .Latency}}<td>{{.Value}}</td>{{end}}</tr>
</table>
</section>
{{if .History}}
<section>
<h2>Performance Over Time</h2>
<div id="steps-chart" class="chart"></div>
<div id="latency-chart" class="chart"></div>
</section>
{{end}}
{{- with .Thresholds}}
<section>
<h2>Thresholds ({{.Passed}}/{{.Total}} Passed)</h2>
<table>
<tr><th>Threshold</th><th>Metric</th><th>Expected</th><th>Actual</th><th>Status</th></tr>
{{- range .Results}}
<tr>
<td>{{.Threshold}}</td>
<td>{{.Metric}} ({{.Aggregate}})</td>
<td>{{.Operator}} {{float2 .Expected}}</td>
<td>{{float2 .Actual}}</td>
<td>{{if .Pass}}<span class="pass">PASS</span>{{else}}<span class="fail">FAIL</span>{{end}}</td>
</tr>
{{- end}}
</table>
</section>
{{end}}
{{- if .Stats.Lanes}}
<section>
<h2>Lane Breakdown</h2>
<table>
<tr><th>Lane</th><th>Records</th><th>Share</th><th>Heartbeats</th></tr>
{{- range .Stats.Lanes}}
<tr>
<td><strong>{{.Name}}</strong></td>
<td>{{.Records}}</td>
<td><meter min="0" max="{{$.Stats.Steps}}" value="{{.Records}}"></meter>{{share .Records $.Stats.Steps}}%</td>
<td>{{.HeartBeats}}</td>
</tr>
{{- end}}
</table>
</section>
{{end}}
<section>
<h2>Run</h2>
<table>
<tr><th>Run ID</th><td>{{.Run.RunID}}</td></tr>
<tr><th>Strategy</th><td>{{.Run.Strategy}}</td></tr>
<tr><th>Lanes</th><td>{{.Run.Lanes}}</td></tr>
<tr><th>Result</th><td>{{if .Run.DryRun}}<em>(dry run)</em>{{else}}{{.Run.Target}}{{end}}</td></tr>
</table>
</section>
</main>
{{- if .History}}
<script>
(function () {
  const points = {{.History}};
  const t0 = new Date(points[0].timestamp).getTime();
  const xs = points.map(p => (new Date(p.timestamp).getTime() - t0) / 1000);
  const plot = (id, label, color, ys) => {
    const el = document.getElementById(id);
    new uPlot({
      title: label,
      width: el.offsetWidth,
      height: 280,
      scales: { x: { time: false } },
      series: [{ label: "Time (s)" }, { label: label, stroke: color, width: 2 }],
      axes: [{ label: "Time (s)" }, { label: label }],
    }, [xs, ys], el);
  };
  plot("steps-chart", "Steps/sec", "#3e63dd", points.map(p => p.steps_per_sec));
  plot("latency-chart", "Mean round trip (ms)", "#0e7c3a", points.map(p => p.mean_latency_ms));
})();
</script>
{{- end}}
</body>
</html>
`
