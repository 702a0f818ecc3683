package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/torosent/lanebench/internal/config"
	"github.com/torosent/lanebench/internal/dispatcher"
	"github.com/torosent/lanebench/internal/metrics"
	"github.com/torosent/lanebench/internal/output"
	"github.com/torosent/lanebench/internal/sink"
	"github.com/torosent/lanebench/internal/threshold"
	"github.com/torosent/lanebench/internal/verify"
)

// openSink returns an in-memory sink for dry runs and otherwise the file or
// websocket sink named by cfg.Result.
func openSink(ctx context.Context, cfg *config.Config) (sink.Sink, error) {
	if cfg.DryRun {
		return sink.NewMemory(), nil
	}
	return sink.Open(ctx, cfg.Result)
}

func resultLabel(cfg *config.Config) string {
	if cfg.DryRun {
		return "(dry run)"
	}
	return cfg.Result
}

// effectiveNotifyEvery resolves the -1 "strategy default" setting for display.
func effectiveNotifyEvery(cfg *config.Config) int {
	if cfg.NotifyEvery >= 0 {
		return cfg.NotifyEvery
	}
	if cfg.Strategy == config.StrategyShared {
		return dispatcher.DefaultNotifyEvery
	}
	return 0
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func writeHTMLReport(path string, info output.RunInfo, stats metrics.Stats, history []metrics.DataPoint, results []threshold.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("html report: %w", err)
	}
	if err := output.GenerateHTMLReport(f, info, stats, history, results); err != nil {
		_ = f.Close()
		return fmt.Errorf("html report: %w", err)
	}
	return f.Close()
}

func countFailed(results []threshold.Result) int {
	n := 0
	for _, r := range results {
		if !r.Pass {
			n++
		}
	}
	return n
}

func printVerifyReport(w io.Writer, path string, report verify.Report) {
	if report.OK() {
		fmt.Fprintf(w, "\nVerify: %s OK (%d records across %d lanes)\n", path, report.Records, len(report.Lanes))
		return
	}
	fmt.Fprintf(w, "\nVerify: %s FAILED (%d problems in %d records)\n", path, report.Failures, report.Records)
	for _, p := range report.Problems {
		fmt.Fprintf(w, "  %s\n", p)
	}
	if hidden := report.Failures - len(report.Problems); hidden > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", hidden)
	}
}
