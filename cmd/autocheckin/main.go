package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/checkin"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/config"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/metrics"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/monitoring"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/notify"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], config.OSEnv(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type flags struct {
	configFile  string
	logLevel    string
	logFile     string
	triggers    []string
	dryRun      bool
	concurrency int
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*pflag.FlagSet, flags, error) {
	var f flags
	fs := pflag.NewFlagSet("autocheckin", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configFile, "config", "", "Path to config file (YAML)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFile, "log-file", "", "Also write logs to this file, rotated by size")
	fs.StringSliceVar(&f.triggers, "triggers", nil, "Notification triggers, e.g. balance_changed,failed")
	fs.BoolVar(&f.dryRun, "dry-run", false, "check in but skip notifications")
	fs.IntVar(&f.concurrency, "concurrency", 0, "number of platforms notified in parallel")
	fs.BoolVar(&f.version, "version", false, "print version and exit")
	err := fs.Parse(args)
	return fs, f, err
}

func run(ctx context.Context, args []string, src config.Source, stdout, stderr io.Writer) int {
	fs, f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if f.version {
		fmt.Fprintf(stdout, "autocheckin %s\n", version)
		return 0
	}

	cfg, err := loadConfig(fs, f, src)
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 1
	}

	cleanup, err := logging.Init(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer cleanup()
	for _, w := range cfg.Validate() {
		logging.Get().Warn().Msg(w)
	}

	if initMonitoring(cfg) {
		defer monitoring.Flush(2 * time.Second)
	}

	accounts, err := checkin.LoadAccounts(src)
	if errors.Is(err, checkin.ErrNoAccounts) {
		logging.Get().Warn().Msg(err.Error())
		logging.Get().Info().Msg("nothing to do until accounts are configured")
		return 0
	}
	if err != nil {
		logging.Get().Error().Err(err).Msg("failed to load accounts")
		return 1
	}
	logging.Get().Info().Int("count", len(accounts)).Msg("accounts loaded")

	dispatcher := notify.NewDispatcher(notify.NewLoader(src, nil),
		notify.WithConcurrency(cfg.NotifyConcurrency),
		notify.WithObserver(metrics.Recorder{}),
		notify.WithObserver(monitoring.Observer{}),
	)
	report, err := checkin.NewRunner(cfg, accounts, checkin.WithNotifier(dispatcher)).Run(ctx)
	if err != nil {
		logging.Get().Warn().Err(err).Str("run_id", report.RunID).Msg("run interrupted")
		return 1
	}
	if report.ExitCode() != 0 {
		monitoring.CaptureRunError(report.RunID, monitoring.ErrAllFailed)
	}
	return report.ExitCode()
}

// loadConfig layers defaults, the config file, the environment and finally
// explicitly set flags.
func loadConfig(fs *pflag.FlagSet, f flags, src config.Source) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if f.configFile != "" {
		c, err := config.LoadConfigFromFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed loading config: %w", err)
		}
		cfg = c
	}
	if err := config.ApplyEnvOverrides(cfg, src); err != nil {
		return nil, err
	}

	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if fs.Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if fs.Changed("triggers") {
		cfg.NotifyTriggers = config.SplitList(strings.Join(f.triggers, ","))
	}
	if fs.Changed("concurrency") {
		cfg.NotifyConcurrency = f.concurrency
	}
	if f.dryRun {
		cfg.DryRun = true
	}
	return cfg, nil
}

// initMonitoring starts Sentry when a DSN is configured and reports whether
// events need flushing on exit.
func initMonitoring(cfg *config.Config) bool {
	on, err := monitoring.StartSentry(monitoring.SentryConfig{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     "autocheckin@" + version,
	})
	if err != nil {
		logging.Get().Warn().Err(err).Msg("failed to initialize sentry, continuing without error reporting")
	}
	return on
}
