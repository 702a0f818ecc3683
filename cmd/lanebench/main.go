package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/lanebench/internal/config"
	"github.com/torosent/lanebench/internal/dashboard"
	"github.com/torosent/lanebench/internal/dispatcher"
	"github.com/torosent/lanebench/internal/message"
	"github.com/torosent/lanebench/internal/metrics"
	"github.com/torosent/lanebench/internal/output"
	"github.com/torosent/lanebench/internal/threshold"
	"github.com/torosent/lanebench/internal/tracing"
	"github.com/torosent/lanebench/internal/verify"
)

const (
	progressInterval = time.Second
	sampleInterval   = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DumpConfig {
		return cfg.WriteYAML(stdout)
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID := ulid.Make().String()
	collector := metrics.NewCollector()

	recordSink, err := openSink(ctx, cfg)
	if err != nil {
		return err
	}
	sinkClosed := false
	defer func() {
		if !sinkClosed {
			_ = recordSink.Close()
		}
	}()

	// stdout carries the operational log and the report; a JSON report keeps
	// stdout to itself.
	reportOut := stdout
	notesOut := stdout
	logOut := stderr
	if cfg.JSONOutput {
		notesOut = stderr
	}
	opLog := notesOut

	var dash *dashboard.Dashboard
	var progress *output.ProgressReporter
	switch {
	case cfg.Dashboard:
		dash, err = dashboard.New(collector, dashboard.RunConfig{
			RunID:       runID,
			Strategy:    cfg.Strategy,
			Lanes:       cfg.Lanes,
			Steps:       cfg.Steps,
			Rate:        cfg.Rate,
			InboxSize:   cfg.InboxSize,
			NotifyEvery: effectiveNotifyEvery(cfg),
			Result:      resultLabel(cfg),
			ConfigFile:  cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		opLog = dash.LogWriter()
		logOut = dash.LogWriter()
	case cfg.Progress:
		term := output.NewLineWriter(opLog, true)
		opLog = term
		progress = output.NewProgressReporter(collector, progressInterval, term)
	}

	logger := newLogger(cfg.LogLevel, logOut)

	provider, err := tracing.Init(ctx, cfg.Tracing,
		tracing.WithAttributes(attribute.String("lanebench.run_id", runID)),
	)
	if err != nil {
		if dash != nil {
			dash.Stop()
		}
		return err
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	d := dispatcher.New(dispatcher.Options{
		Lanes:         cfg.Lanes,
		Steps:         cfg.Steps,
		Strategy:      dispatcher.Strategy(cfg.Strategy),
		NotifyEvery:   cfg.NotifyEvery,
		InboxSize:     cfg.InboxSize,
		RatePerSecond: cfg.Rate,
		Sink:          recordSink,
		Format:        message.Format(cfg.RecordFormat),
		Collector:     collector,
		OpLog:         opLog,
		Logger:        logger,
		Tracer:        provider.Tracer(),
		RunID:         runID,
	})

	sampleCtx, stopSampling := context.WithCancel(ctx)
	go collector.SampleEvery(sampleCtx, sampleInterval)

	if dash != nil {
		dash.Start()
	}
	if progress != nil {
		progress.Start()
	}

	result, runErr := d.Run(ctx)

	stopSampling()
	if progress != nil {
		progress.Stop()
	}
	if dash != nil {
		dash.Stop()
	}

	sinkClosed = true
	if err := recordSink.Close(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("sink: close: %w", err))
	}

	stats := collector.Stats(result.Duration)
	info := output.RunInfo{
		RunID:    result.RunID,
		Strategy: string(result.Strategy),
		Lanes:    result.Lanes,
		Target:   resultLabel(cfg),
		DryRun:   cfg.DryRun,
		Aborted:  runErr != nil,
	}

	var thresholdResults []threshold.Result
	if len(thresholds) > 0 {
		thresholdResults = threshold.NewEvaluator(thresholds).Evaluate(stats)
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(reportOut, info, stats, thresholdResults); err != nil {
			return errors.Join(runErr, err)
		}
	} else {
		output.PrintReport(reportOut, info, stats)
		output.PrintThresholds(reportOut, thresholdResults)
	}

	if cfg.HTMLOutput != "" {
		if err := writeHTMLReport(cfg.HTMLOutput, info, stats, collector.History(), thresholdResults); err != nil {
			runErr = errors.Join(runErr, err)
		} else {
			logger.Info("html report written", "path", cfg.HTMLOutput)
		}
	}

	if runErr != nil {
		return runErr
	}

	var failures []error
	if !threshold.AllPassed(thresholdResults) {
		failures = append(failures, fmt.Errorf("%d of %d thresholds failed", countFailed(thresholdResults), len(thresholdResults)))
	}

	if cfg.Verify {
		report, err := verify.File(cfg.Result, verify.Options{
			Format:   message.Format(cfg.RecordFormat),
			Lanes:    cfg.Lanes,
			Expected: cfg.Steps + 1,
		})
		printVerifyReport(notesOut, cfg.Result, report)
		if err != nil {
			failures = append(failures, err)
		}
	}

	return errors.Join(failures...)
}
