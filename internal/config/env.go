package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides reads configuration values from src and overrides fields
// in the provided Config. Returns an error if parsing fails.
//
// Environment variables supported:
// - ANYROUTER_BASE_URL (string)
// - NOTIFY_TRIGGERS (comma list, e.g. "balance_changed,failed")
// - NOTIFY_CONCURRENCY (int)
// - TZ (IANA zone, e.g. "Asia/Shanghai")
// - TIMESTAMP_FORMAT (Go layout or strftime pattern)
// - BALANCE_HASH_FILE (path)
// - CHECKIN_ACCOUNT_INTERVAL, CHECKIN_REQUEST_TIMEOUT (duration, e.g. "2s")
// - SHOW_SENSITIVE_INFO, ACTIONS_RUNNER_DEBUG, REPO_VISIBILITY
// - LOG_LEVEL, LOG_FILE, LOG_FORMAT
// - METRICS_PUSHGATEWAY_URL, METRICS_JOB
// - INFLUX_URL, INFLUX_TOKEN, INFLUX_ORG, INFLUX_BUCKET
// - SENTRY_DSN, SENTRY_ENVIRONMENT
// - GITHUB_STEP_SUMMARY
func ApplyEnvOverrides(cfg *Config, src Source) error {
	if err := applyRunEnv(cfg, src); err != nil {
		return err
	}
	if err := applyNotificationEnv(cfg, src); err != nil {
		return err
	}
	if err := applyPrivacyEnv(cfg, src); err != nil {
		return err
	}
	applyLoggingEnv(cfg, src)
	applyMetricsEnv(cfg, src)
	applyMiscEnv(cfg, src)
	return nil
}

func applyRunEnv(cfg *Config, src Source) error {
	if v := Get(src, "ANYROUTER_BASE_URL"); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := Get(src, "TZ"); v != "" {
		cfg.Timezone = v
	}
	if v := Get(src, "TIMESTAMP_FORMAT"); v != "" {
		cfg.TimestampFormat = v
	}
	if v := Get(src, "BALANCE_HASH_FILE"); v != "" {
		cfg.BalanceHashFile = v
	}
	if err := setDurationEnv(src, "CHECKIN_ACCOUNT_INTERVAL", func(d time.Duration) { cfg.AccountInterval = d }); err != nil {
		return err
	}
	return setDurationEnv(src, "CHECKIN_REQUEST_TIMEOUT", func(d time.Duration) { cfg.RequestTimeout = d })
}

func applyNotificationEnv(cfg *Config, src Source) error {
	if v, ok := src.Lookup("NOTIFY_TRIGGERS"); ok {
		cfg.NotifyTriggers = SplitList(v)
	}
	if v := Get(src, "NOTIFY_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NOTIFY_CONCURRENCY: %w", err)
		}
		cfg.NotifyConcurrency = n
	}
	return nil
}

func applyPrivacyEnv(cfg *Config, src Source) error {
	if v := Get(src, "SHOW_SENSITIVE_INFO"); v != "" {
		cfg.ShowSensitiveInfo = v
	}
	if v := Get(src, "REPO_VISIBILITY"); v != "" {
		cfg.RepoVisibility = v
	}
	return setBoolEnv(src, "ACTIONS_RUNNER_DEBUG", func(b bool) { cfg.ActionsRunnerDebug = b })
}

func applyLoggingEnv(cfg *Config, src Source) {
	if v := Get(src, "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := Get(src, "LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := Get(src, "LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

func applyMetricsEnv(cfg *Config, src Source) {
	if v := Get(src, "METRICS_PUSHGATEWAY_URL"); v != "" {
		cfg.MetricsPushURL = v
	}
	if v := Get(src, "METRICS_JOB"); v != "" {
		cfg.MetricsJob = v
	}
	if v := Get(src, "INFLUX_URL"); v != "" {
		cfg.InfluxURL = v
	}
	if v := Get(src, "INFLUX_TOKEN"); v != "" {
		cfg.InfluxToken = v
	}
	if v := Get(src, "INFLUX_ORG"); v != "" {
		cfg.InfluxOrg = v
	}
	if v := Get(src, "INFLUX_BUCKET"); v != "" {
		cfg.InfluxBucket = v
	}
}

func applyMiscEnv(cfg *Config, src Source) {
	if v := Get(src, "SENTRY_DSN"); v != "" {
		cfg.SentryDSN = v
	}
	if v := Get(src, "SENTRY_ENVIRONMENT"); v != "" {
		cfg.SentryEnvironment = v
	}
	if v := Get(src, "GITHUB_STEP_SUMMARY"); v != "" {
		cfg.StepSummaryPath = v
	}
}

func setBoolEnv(src Source, env string, setter func(bool)) error {
	if v := Get(src, env); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(b)
	}
	return nil
}

func setDurationEnv(src Source, env string, setter func(time.Duration)) error {
	if v := Get(src, env); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", env, err)
		}
		setter(d)
	}
	return nil
}

// SplitList splits a comma separated value, trimming blanks and lowercasing.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
