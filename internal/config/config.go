package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for one check-in run
type Config struct {
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Notification triggers, e.g. ["balance_changed", "failed"]
	NotifyTriggers []string `json:"notify_triggers" yaml:"notify_triggers"`
	// Number of platforms notified in parallel. 1 means sequential.
	NotifyConcurrency int `json:"notify_concurrency" yaml:"notify_concurrency"`

	Timezone        string `json:"timezone" yaml:"timezone"`
	TimestampFormat string `json:"timestamp_format" yaml:"timestamp_format"`

	BalanceHashFile string `json:"balance_hash_file" yaml:"balance_hash_file"`

	// Pause between two accounts
	AccountInterval time.Duration `json:"account_interval" yaml:"account_interval"`
	RequestTimeout  time.Duration `json:"request_timeout" yaml:"request_timeout"`

	// Privacy inputs, resolved by checkin.NewPrivacy
	ShowSensitiveInfo  string `json:"show_sensitive_info" yaml:"show_sensitive_info"`
	ActionsRunnerDebug bool   `json:"actions_runner_debug" yaml:"actions_runner_debug"`
	RepoVisibility     string `json:"repo_visibility" yaml:"repo_visibility"`

	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFile   string `json:"log_file" yaml:"log_file"`
	LogFormat string `json:"log_format" yaml:"log_format"`

	// Prometheus pushgateway (optional)
	MetricsPushURL string `json:"metrics_push_url" yaml:"metrics_push_url"`
	MetricsJob     string `json:"metrics_job" yaml:"metrics_job"`

	// InfluxDB (push)
	InfluxURL    string `json:"influx_url" yaml:"influx_url"`
	InfluxToken  string `json:"influx_token" yaml:"influx_token"`
	InfluxOrg    string `json:"influx_org" yaml:"influx_org"`
	InfluxBucket string `json:"influx_bucket" yaml:"influx_bucket"`

	SentryDSN         string `json:"sentry_dsn" yaml:"sentry_dsn"`
	SentryEnvironment string `json:"sentry_environment" yaml:"sentry_environment"`

	// GitHub Actions step summary file
	StepSummaryPath string `json:"step_summary_path" yaml:"step_summary_path"`

	// Dry-run: check in but never notify
	DryRun bool `json:"dry_run" yaml:"dry_run"`
}

const (
	DefaultBaseURL         = "https://anyrouter.top"
	DefaultTimezone        = "Asia/Shanghai"
	DefaultTimestampFormat = "2006-01-02 15:04:05"
	DefaultBalanceHashFile = ".autocheck-anyrouter-balance-hash.txt"
)

// DefaultConfig returns a sane default configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           DefaultBaseURL,
		NotifyConcurrency: 1,
		Timezone:          DefaultTimezone,
		TimestampFormat:   DefaultTimestampFormat,
		BalanceHashFile:   DefaultBalanceHashFile,
		AccountInterval:   time.Second,
		RequestTimeout:    30 * time.Second,
		LogLevel:          "info",
		LogFormat:         "json",
		MetricsJob:        "autocheckin",
	}
}

// Location resolves the configured timezone. An unknown zone falls back to
// DefaultTimezone, then UTC; the returned warning is empty when no fallback
// was needed.
func (c *Config) Location() (*time.Location, string) {
	name := c.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc, ""
	}
	warn := fmt.Sprintf("invalid timezone %q, falling back to %s", name, DefaultTimezone)
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc, warn
	}
	return time.UTC, warn
}

// Validate returns a list of non-fatal configuration warnings.
func (c *Config) Validate() []string {
	var warnings []string
	checks := []struct {
		cond bool
		msg  string
	}{
		{c.InfluxURL != "" && c.InfluxBucket == "", "influx URL provided but bucket is missing"},
		{c.InfluxBucket != "" && c.InfluxURL == "", "influx bucket provided but URL is missing"},
		{c.NotifyConcurrency < 1, "notify concurrency below 1, notifications will be sent sequentially"},
		{c.AccountInterval < 0, "negative account interval, accounts will not be paced"},
		{c.BalanceHashFile == "", "balance hash file is empty, balance changes cannot be tracked"},
	}
	for _, ch := range checks {
		if ch.cond {
			warnings = append(warnings, ch.msg)
		}
	}
	if f := validateLogFormat(c.LogFormat); f != "" {
		warnings = append(warnings, f)
	}
	return warnings
}

func validateLogFormat(f string) string {
	switch strings.ToLower(f) {
	case "", "json", "console":
		return ""
	}
	return fmt.Sprintf("unknown log format %q (expected json or console)", f)
}

// LoadConfigFromFile loads config from a YAML/JSON file
func LoadConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
