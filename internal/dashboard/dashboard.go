package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/lanebench/internal/metrics"
)

const (
	maxLogLines    = 200
	maxSparkPoints = 100
)

// RunConfig holds run parameters for display.
type RunConfig struct {
	RunID       string
	Strategy    string
	Lanes       int
	Steps       uint64 // last step, inclusive
	Rate        int    // steps per second (0 = unlimited)
	InboxSize   int
	NotifyEvery int
	Result      string // sink target
	ConfigFile  string
}

// Dashboard renders a live terminal UI for run metrics.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	progressGauge  *widgets.Gauge
	laneList       *widgets.List
	logList        *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph
	latencyHistory []float64
	startTime      time.Time
	runDuration    time.Duration
	runConfig      RunConfig

	log *LogBuffer
}

// New creates a new Dashboard. shutdownFunc is called when the user presses q
// or Ctrl+C.
func New(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, maxSparkPoints),
		startTime:      time.Now(),
		runConfig:      cfg,
		log:            NewLogBuffer(maxLogLines),
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// LogWriter returns the operational log sink shown in the Notifications pane.
func (d *Dashboard) LogWriter() *LogBuffer { return d.log }

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Mean round trip (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Step Round Trip"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Round Trip Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP50: 0ms\nP90: 0ms\nP99: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Progress"
	d.progressGauge.Percent = 0
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.laneList = widgets.NewList()
	d.laneList.Title = "Lanes"
	d.laneList.Rows = []string{"Awaiting data"}
	d.laneList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.laneList.BorderStyle.Fg = ui.ColorCyan

	d.logList = widgets.NewList()
	d.logList.Title = "Notifications"
	d.logList.Rows = []string{"[No notifications](fg:green)"}
	d.logList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.logList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Metrics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.2,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.26,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.4,
			ui.NewCol(0.4, d.laneList),
			ui.NewCol(0.6, d.logList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	d.runDuration = time.Since(d.startTime)
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// FinalStats returns the final statistics after the dashboard has stopped.
func (d *Dashboard) FinalStats() metrics.Stats {
	return d.collector.Stats(d.runDuration)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop() cancels the context once the run has shut down.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats := d.collector.Stats(elapsed)

	if stats.MeanLatency > 0 {
		d.latencyHistory = appendBounded(d.latencyHistory, stats.MeanLatencyMs, maxSparkPoints)
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Step Round Trip | Current: %.3fms | Min: %.3fms | Max: %.3fms",
			stats.MeanLatencyMs,
			stats.MinLatencyMs,
			stats.MaxLatencyMs,
		)
	}

	d.progressGauge.Percent = progressPercent(stats)
	d.progressGauge.Label = fmt.Sprintf("%d / %d steps (%.0f steps/s)", stats.Steps, stats.Planned, stats.StepsPerSec)

	d.summaryPara.Text = fmt.Sprintf(
		"Run: %s | Result: %s\n%s\nElapsed: %s | Steps: %d",
		d.runConfig.RunID,
		d.runConfig.Result,
		formatRunParams(d.runConfig),
		elapsed.Round(time.Second),
		stats.Steps,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Steps:             %d\nHeartbeats:        %d\nNotifications:     %d\nSteps/sec:         %.2f\nMean Round Trip:   %.3fms\nP50/P90/P99:       %.3f / %.3f / %.3f ms",
		stats.Steps,
		stats.HeartBeats,
		stats.Notifications,
		stats.StepsPerSec,
		stats.MeanLatencyMs,
		stats.P50LatencyMs,
		stats.P90LatencyMs,
		stats.P99LatencyMs,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.3fms\nMean: %.3fms\nP50:  %.3fms\nP90:  %.3fms\nP99:  %.3fms",
		stats.MinLatencyMs,
		stats.MeanLatencyMs,
		stats.P50LatencyMs,
		stats.P90LatencyMs,
		stats.P99LatencyMs,
	)

	d.laneList.Rows = formatLaneRows(stats)
	if lines := d.log.Lines(); len(lines) > 0 {
		d.logList.Rows = lines
		d.logList.ScrollBottom()
	}
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func progressPercent(stats metrics.Stats) int {
	if stats.Planned == 0 {
		return 0
	}
	pct := int(float64(stats.Steps) / float64(stats.Planned) * 100)
	if pct > 100 {
		pct = 100
	}
	return pct
}

func appendBounded(history []float64, v float64, max int) []float64 {
	history = append(history, v)
	if len(history) > max {
		history = history[len(history)-max:]
	}
	return history
}

func formatLaneRows(stats metrics.Stats) []string {
	if len(stats.Lanes) == 0 {
		return []string{"[No lane data](fg:green)"}
	}
	rows := make([]string, 0, len(stats.Lanes))
	for _, lane := range stats.Lanes {
		share := 0.0
		if stats.Steps > 0 {
			share = (float64(lane.Records) / float64(stats.Steps)) * 100
		}
		rows = append(rows, fmt.Sprintf("[%s](fg:cyan) | %5.1f%% | Records %d | HeartBeats %d",
			lane.Name, share, lane.Records, lane.HeartBeats))
	}
	return rows
}

// formatRunParams formats the run configuration for display.
func formatRunParams(cfg RunConfig) string {
	var parts []string

	if cfg.Strategy != "" {
		parts = append(parts, fmt.Sprintf("Strategy: %s", cfg.Strategy))
	}
	if cfg.Lanes > 0 {
		parts = append(parts, fmt.Sprintf("Lanes: %d", cfg.Lanes))
	}
	parts = append(parts, fmt.Sprintf("Steps: 0..=%d", cfg.Steps))

	if cfg.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", cfg.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}
	if cfg.InboxSize > 0 {
		parts = append(parts, fmt.Sprintf("Inbox: %d", cfg.InboxSize))
	}
	if cfg.NotifyEvery > 0 {
		parts = append(parts, fmt.Sprintf("Notify: every %d", cfg.NotifyEvery))
	}
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
