package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "lanebench",
		Short:         "Fan numbered messages out to lanes and persist the round trips",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Run shape
	flags.IntP("lanes", "l", DefaultLanes, "Number of worker lanes")
	flags.Uint64P("steps", "s", DefaultSteps, "Last step to dispatch (steps 0..=N are run)")
	flags.String("strategy", StrategyLockstep, "Collection strategy: 'lockstep' or 'shared'")
	flags.Int("notify-every", -1, "Emit a progress notification every N steps (-1 = strategy default, 0 = off)")
	flags.Int("inbox-size", DefaultInboxSize, "Buffered capacity of each lane inbox and outbox")
	flags.IntP("rate", "r", 0, "Steps per second limit (0 means unlimited)")

	// Result sink
	flags.StringP("result", "o", DefaultResult, "Result file path or ws:// URL")
	flags.String("record-format", FormatText, "Record format: 'text' or 'json'")
	flags.Bool("dry-run", false, "Keep records in memory instead of writing the result")
	flags.Bool("verify", false, "Re-read the result file and check every record after the run")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted report")
	flags.Bool("progress", false, "Print a progress line to stderr while running")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'step_duration:p99 < 5')")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Bool("dump-config", false, "Print the effective configuration as YAML and exit")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported with spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of runs to sample (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

type flagSetter func(cfg *Config, fs *pflag.FlagSet, name string) error

func setInt(field func(*Config) *int) flagSetter {
	return func(cfg *Config, fs *pflag.FlagSet, name string) error {
		v, err := fs.GetInt(name)
		if err != nil {
			return err
		}
		*field(cfg) = v
		return nil
	}
}

func setBool(field func(*Config) *bool) flagSetter {
	return func(cfg *Config, fs *pflag.FlagSet, name string) error {
		v, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*field(cfg) = v
		return nil
	}
}

// setString trims the value and, when lower is set, lowercases it.
func setString(field func(*Config) *string, lower bool) flagSetter {
	return func(cfg *Config, fs *pflag.FlagSet, name string) error {
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		v = strings.TrimSpace(v)
		if lower {
			v = strings.ToLower(v)
		}
		*field(cfg) = v
		return nil
	}
}

var flagSetters = map[string]flagSetter{
	"lanes": setInt(func(c *Config) *int { return &c.Lanes }),
	"steps": func(cfg *Config, fs *pflag.FlagSet, name string) error {
		v, err := fs.GetUint64(name)
		if err != nil {
			return err
		}
		cfg.Steps = v
		return nil
	},
	"strategy":      setString(func(c *Config) *string { return &c.Strategy }, true),
	"notify-every":  setInt(func(c *Config) *int { return &c.NotifyEvery }),
	"inbox-size":    setInt(func(c *Config) *int { return &c.InboxSize }),
	"rate":          setInt(func(c *Config) *int { return &c.Rate }),
	"result":        setString(func(c *Config) *string { return &c.Result }, false),
	"record-format": setString(func(c *Config) *string { return &c.RecordFormat }, true),
	"dry-run":       setBool(func(c *Config) *bool { return &c.DryRun }),
	"verify":        setBool(func(c *Config) *bool { return &c.Verify }),
	"json-output":   setBool(func(c *Config) *bool { return &c.JSONOutput }),
	"progress":      setBool(func(c *Config) *bool { return &c.Progress }),
	"dashboard":     setBool(func(c *Config) *bool { return &c.Dashboard }),
	"html-output":   setString(func(c *Config) *string { return &c.HTMLOutput }, false),
	"threshold": func(cfg *Config, fs *pflag.FlagSet, name string) error {
		v, err := fs.GetStringSlice(name)
		if err != nil {
			return err
		}
		cfg.Thresholds = v
		return nil
	},
	"log-level":            setString(func(c *Config) *string { return &c.LogLevel }, true),
	"dump-config":          setBool(func(c *Config) *bool { return &c.DumpConfig }),
	"tracing-endpoint":     setString(func(c *Config) *string { return &c.Tracing.Endpoint }, false),
	"tracing-protocol":     setString(func(c *Config) *string { return &c.Tracing.Protocol }, true),
	"tracing-service-name": setString(func(c *Config) *string { return &c.Tracing.ServiceName }, false),
	"tracing-sample-rate": func(cfg *Config, fs *pflag.FlagSet, name string) error {
		v, err := fs.GetFloat64(name)
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = v
		return nil
	},
	"tracing-insecure": setBool(func(c *Config) *bool { return &c.Tracing.Insecure }),
}

// applyFlagOverrides copies every flag the user set onto cfg, overriding the
// config file and environment. Flags left at their defaults are ignored.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		set, ok := flagSetters[f.Name]
		if !ok {
			return
		}
		if err := set(cfg, fs, f.Name); err != nil {
			errs = append(errs, fmt.Errorf("--%s: %w", f.Name, err))
		}
	})
	return errors.Join(errs...)
}
