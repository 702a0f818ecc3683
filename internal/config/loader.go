package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key read from the environment,
// e.g. LANEBENCH_LANES or LANEBENCH_TRACING_ENDPOINT.
const EnvPrefix = "LANEBENCH"

// Loader handles loading configuration from files, environment and command-line arguments.
type Loader struct {
	// lookupEnv overrides the environment source; nil means the process environment.
	lookupEnv func(string) (string, bool)
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// settingKeys are bound to LANEBENCH_* variables.
var settingKeys = []string{
	"lanes", "steps", "strategy", "notify_every", "inbox_size", "rate",
	"result", "record_format", "dry_run", "json_output", "progress",
	"dashboard", "html_output", "thresholds", "verify", "log_level",
	"tracing.endpoint", "tracing.protocol", "tracing.service_name",
	"tracing.sample_rate", "tracing.insecure",
}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments, LANEBENCH_* environment variables and an
// optional configuration file to produce a Config. Flags win over the
// environment, which wins over the file. With no arguments at all the defaults
// are returned.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument %q (use --help for usage information)", rest[0])
	}

	configPath := strings.TrimSpace(flagSet.Lookup("config").Value.String())
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}
	if err := l.bindEnv(cfgViper); err != nil {
		return nil, err
	}

	settings := cfgViper.AllSettings()

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}

	cfg.Strategy = strings.ToLower(strings.TrimSpace(cfg.Strategy))
	cfg.RecordFormat = strings.ToLower(strings.TrimSpace(cfg.RecordFormat))
	cfg.Result = strings.TrimSpace(cfg.Result)

	return &cfg, nil
}

func (l Loader) bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if l.lookupEnv == nil {
		v.AutomaticEnv()
		for _, key := range settingKeys {
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("bind %s: %w", key, err)
			}
		}
		return nil
	}
	for _, key := range settingKeys {
		name := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if val, ok := l.lookupEnv(name); ok {
			v.Set(key, val)
		}
	}
	return nil
}

// applyConfigSettings applies settings from a config file or the environment to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "lanes"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("lanes: %w", err)
		}
		cfg.Lanes = val
	}

	if raw, ok := lookupSetting(settings, "steps"); ok {
		val, err := asUint64(raw)
		if err != nil {
			return fmt.Errorf("steps: %w", err)
		}
		cfg.Steps = val
	}

	if raw, ok := lookupSetting(settings, "strategy"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("strategy: %w", err)
		}
		if val != "" {
			cfg.Strategy = val
		}
	}

	if raw, ok := lookupSetting(settings, "notify_every", "notifyevery", "notify-every"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("notify_every: %w", err)
		}
		cfg.NotifyEvery = val
	}

	if raw, ok := lookupSetting(settings, "inbox_size", "inboxsize", "inbox-size"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("inbox_size: %w", err)
		}
		cfg.InboxSize = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "result"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("result: %w", err)
		}
		cfg.Result = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "record_format", "recordformat", "record-format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("record_format: %w", err)
		}
		if val != "" {
			cfg.RecordFormat = val
		}
	}

	boolSettings := []struct {
		names []string
		dst   *bool
	}{
		{[]string{"dry_run", "dryrun", "dry-run"}, &cfg.DryRun},
		{[]string{"json_output", "jsonoutput", "json-output"}, &cfg.JSONOutput},
		{[]string{"progress"}, &cfg.Progress},
		{[]string{"dashboard"}, &cfg.Dashboard},
		{[]string{"verify"}, &cfg.Verify},
	}
	for _, s := range boolSettings {
		if raw, ok := lookupSetting(settings, s.names...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", s.names[0], err)
			}
			*s.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "html_output", "htmloutput", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("html_output: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "log_level", "loglevel", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
		if val != "" {
			cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
		}
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := parseTracingConfig(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func parseTracingConfig(dst *TracingConfig, raw interface{}) error {
	if raw == nil {
		return nil
	}
	settings, err := toStringKeyMap(raw)
	if err != nil {
		return err
	}

	if v, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(v)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		dst.Endpoint = strings.TrimSpace(val)
	}
	if v, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(v)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		dst.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if v, ok := lookupSetting(settings, "service_name", "servicename", "service-name"); ok {
		val, err := asString(v)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		dst.ServiceName = strings.TrimSpace(val)
	}
	if v, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		val, err := asFloat64(v)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		dst.SampleRate = val
	}
	if v, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(v)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		dst.Insecure = val
	}
	return nil
}
