package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	StrategyLockstep = "lockstep"
	StrategyShared   = "shared"

	FormatText = "text"
	FormatJSON = "json"

	DefaultLanes     = 3
	DefaultSteps     = 600_000
	DefaultInboxSize = 64
	DefaultResult    = "result.txt"
)

type Config struct {
	Lanes        int           `mapstructure:"lanes" yaml:"lanes"`
	Steps        uint64        `mapstructure:"steps" yaml:"steps"`
	Strategy     string        `mapstructure:"strategy" yaml:"strategy"`
	NotifyEvery  int           `mapstructure:"notify_every" yaml:"notify_every"`
	InboxSize    int           `mapstructure:"inbox_size" yaml:"inbox_size"`
	Rate         int           `mapstructure:"rate" yaml:"rate"`
	Result       string        `mapstructure:"result" yaml:"result"`
	RecordFormat string        `mapstructure:"record_format" yaml:"record_format"`
	DryRun       bool          `mapstructure:"dry_run" yaml:"dry_run"`
	JSONOutput   bool          `mapstructure:"json_output" yaml:"json_output"`
	Progress     bool          `mapstructure:"progress" yaml:"progress"`
	Dashboard    bool          `mapstructure:"dashboard" yaml:"dashboard"`
	HTMLOutput   string        `mapstructure:"html_output" yaml:"html_output,omitempty"`
	Thresholds   []string      `mapstructure:"thresholds" yaml:"thresholds,omitempty"`
	Verify       bool          `mapstructure:"verify" yaml:"verify"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	DumpConfig   bool          `mapstructure:"-" yaml:"-"`
	ConfigFile   string        `mapstructure:"-" yaml:"-"`
	Tracing      TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// TracingConfig configures the optional OTLP span exporter.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Protocol    string  `mapstructure:"protocol" yaml:"protocol,omitempty"` // grpc or http
	ServiceName string  `mapstructure:"service_name" yaml:"service_name,omitempty"`
	SampleRate  float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure" yaml:"insecure"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		Lanes:        DefaultLanes,
		Steps:        DefaultSteps,
		Strategy:     StrategyLockstep,
		NotifyEvery:  -1,
		InboxSize:    DefaultInboxSize,
		Result:       DefaultResult,
		RecordFormat: FormatText,
		LogLevel:     "info",
		Tracing:      TracingConfig{SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if c.Lanes > 1000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: %d lanes configured. Every lane is a goroutine with its own inbox.", c.Lanes))
	}
	if c.Progress && c.Dashboard {
		warnings = append(warnings, "WARNING: progress output is ignored while the dashboard is shown.")
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if c.Lanes < 1 {
		issues = append(issues, "lanes must be >= 1")
	}
	switch c.Strategy {
	case StrategyLockstep, StrategyShared:
	default:
		issues = append(issues, fmt.Sprintf("strategy must be %q or %q, got %q", StrategyLockstep, StrategyShared, c.Strategy))
	}
	if c.NotifyEvery < -1 {
		issues = append(issues, "notify_every must be >= -1")
	}
	if c.InboxSize < 1 {
		issues = append(issues, "inbox_size must be >= 1")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	switch c.RecordFormat {
	case FormatText, FormatJSON:
	default:
		issues = append(issues, fmt.Sprintf("record_format must be %q or %q, got %q", FormatText, FormatJSON, c.RecordFormat))
	}
	if !c.DryRun && strings.TrimSpace(c.Result) == "" {
		issues = append(issues, "result is required unless dry_run is set")
	}
	if c.Verify && c.DryRun {
		issues = append(issues, "verify needs a result file and cannot be combined with dry_run")
	}
	if c.Verify && isRemote(c.Result) {
		issues = append(issues, "verify needs a result file, not a websocket target")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if c.Tracing.Insecure && c.Tracing.Endpoint != "" {
		fmt.Fprintln(os.Stderr, "WARNING: tracing exporter TLS is DISABLED (insecure: true). Spans are sent in plain text.")
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing.sample_rate must be between 0.0 and 1.0")
	}
	return issues
}

func isRemote(target string) bool {
	lower := strings.ToLower(strings.TrimSpace(target))
	return strings.HasPrefix(lower, "ws://") || strings.HasPrefix(lower, "wss://")
}
