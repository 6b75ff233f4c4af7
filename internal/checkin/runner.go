// Package checkin runs the daily AnyRouter check-in for every configured
// account, tracks balance changes between runs and hands the outcome to the
// notification dispatcher.
package checkin

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/config"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/metrics"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/notify"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/result"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/state"
)

// Notifier receives the run result when a trigger fires.
type Notifier interface {
	Push(ctx context.Context, run result.RunResult)
}

// RunReport describes a finished run.
type RunReport struct {
	RunID string
	// Result carries full account names, as sent to notifications.
	Result   result.RunResult
	FirstRun bool
	Notified bool
	Reasons  []string
}

// ExitCode is 0 when at least one account checked in.
func (r RunReport) ExitCode() int {
	if r.Result.Stats.SuccessCount > 0 {
		return 0
	}
	return 1
}

// Runner executes one check-in pass.
type Runner struct {
	cfg      *config.Config
	accounts []Account
	client   *Client
	cookies  CookieProvider
	store    *state.BalanceStore
	notifier Notifier
	triggers notify.Triggers
	privacy  Privacy
	limiter  *rate.Limiter
	Now      func() time.Time // injectable clock for testing
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithNotifier sets where results go when a trigger fires.
func WithNotifier(n Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithCookieProvider replaces the HTTP firewall cookie provider.
func WithCookieProvider(p CookieProvider) RunnerOption {
	return func(r *Runner) { r.cookies = p }
}

// WithClient replaces the API client.
func WithClient(c *Client) RunnerOption {
	return func(r *Runner) { r.client = c }
}

// NewRunner creates a runner for accounts using cfg.
func NewRunner(cfg *config.Config, accounts []Account, opts ...RunnerOption) *Runner {
	every := rate.Inf
	if cfg.AccountInterval > 0 {
		every = rate.Every(cfg.AccountInterval)
	}
	r := &Runner{
		cfg:      cfg,
		accounts: accounts,
		client:   NewClient(cfg.BaseURL, cfg.RequestTimeout),
		cookies:  NewHTTPCookieProvider(cfg.BaseURL, cfg.RequestTimeout),
		store:    state.NewBalanceStore(cfg.BalanceHashFile),
		triggers: notify.ParseTriggers(cfg.NotifyTriggers),
		privacy:  NewPrivacy(cfg),
		limiter:  rate.NewLimiter(every, 1),
		Now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// accountRun is what one account produced before balance comparison.
type accountRun struct {
	account  Account
	index    int
	safeName string
	err      error
	balance  *Balance
}

func (a accountRun) success() bool { return a.err == nil }

// Run checks in every account, then decides whether to notify. Per-account
// failures are part of the report, never an error; the returned error is
// only set when ctx ended the run early.
func (r *Runner) Run(ctx context.Context) (RunReport, error) {
	report := RunReport{RunID: uuid.NewString()}
	log := logging.Get().With().Str("run_id", report.RunID).Logger()
	log.Info().Int("accounts", len(r.accounts)).Bool("show_sensitive", r.privacy.ShowSensitive).Msg("starting check-in run")

	prev, found, err := r.store.Load()
	if err != nil {
		log.Warn().Err(err).Str("file", r.store.Path()).Msg("balance hashes unreadable, treating as first run")
	}
	report.FirstRun = !found

	runs := make([]accountRun, 0, len(r.accounts))
	for i, a := range r.accounts {
		runs = append(runs, r.checkAccount(ctx, &log, i, a))
	}

	outcomes, safeOutcomes, hashes, anyChanged := r.compare(&log, runs, prev)
	if len(hashes) > 0 {
		if err := r.store.Save(hashes); err != nil {
			log.Warn().Err(err).Str("file", r.store.Path()).Msg("failed to save balance hashes")
		}
	}

	now := r.Now()
	loc, warn := r.cfg.Location()
	if warn != "" {
		log.Warn().Msg(warn)
	}
	local := now.In(loc)
	report.Result = result.New(local.Format(config.TimestampLayout(r.cfg.TimestampFormat)), outcomes)
	report.Result.Timezone = local.Format("MST")

	stats := report.Result.Stats
	signals := notify.Signals{
		HasSuccess:        stats.SuccessCount > 0,
		HasFailed:         stats.FailedCount > 0,
		HasBalanceChanged: anyChanged,
		FirstRun:          report.FirstRun,
	}
	r.maybeNotify(ctx, &log, &report, signals)

	log.Info().Int("success", stats.SuccessCount).Int("failed", stats.FailedCount).Int("total", stats.TotalCount).Msg("check-in run finished")

	if path := r.cfg.StepSummaryPath; path != "" {
		safeRun := result.New(report.Result.Timestamp, safeOutcomes)
		if err := WriteStepSummary(path, safeRun, r.privacy); err != nil {
			log.Warn().Err(err).Msg("failed to write step summary")
		} else {
			log.Debug().Str("file", path).Msg("step summary written")
		}
	}

	metrics.SetLastRun(now)
	r.pushMetrics(ctx, &log)
	return report, ctx.Err()
}

// checkAccount runs one account. A panic is turned into a failed outcome.
func (r *Runner) checkAccount(ctx context.Context, log *zerolog.Logger, i int, a Account) (run accountRun) {
	run = accountRun{account: a, index: i, safeName: r.privacy.SafeName(a, i)}
	alog := log.With().Str("account", run.safeName).Logger()
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			alog.Debug().Bytes("stack", debug.Stack()).Msg("check-in panicked")
			run.err = fmt.Errorf("panic: %v", p)
		}
		metrics.ObserveCheckinDuration(time.Since(start).Seconds())
		if run.success() {
			metrics.IncCheckinSuccess()
			alog.Info().Msg("check-in succeeded")
		} else {
			metrics.IncCheckinFailed()
			alog.Error().Err(run.err).Msg("check-in failed")
		}
	}()

	if err := r.limiter.Wait(ctx); err != nil {
		run.err = err
		return run
	}

	waf, err := r.cookies.WAFCookies(ctx, run.safeName)
	if err != nil {
		run.err = fmt.Errorf("waf cookies: %w", err)
		return run
	}
	cookies := mergeCookies(waf, a.Cookies)

	if bal, err := r.client.UserInfo(ctx, a.APIUser, cookies); err != nil {
		alog.Warn().Err(err).Msg("balance unavailable")
	} else {
		run.balance = &bal
		if r.privacy.ShowSensitive {
			alog.Info().Float64("quota", bal.Quota).Float64("used", bal.Used).Msg("balance")
		}
	}

	run.err = r.client.SignIn(ctx, a.APIUser, cookies)
	return run
}

// compare turns raw account runs into outcomes (full and display-safe
// names) and the hash map to persist.
func (r *Runner) compare(log *zerolog.Logger, runs []accountRun, prev state.Hashes) (full, safe []result.AccountOutcome, hashes state.Hashes, anyChanged bool) {
	hashes = make(state.Hashes)
	for _, run := range runs {
		change := result.BalanceUnknown
		if run.balance != nil {
			key, hash := AccountKey(run.account.APIUser), BalanceHash(*run.balance)
			hashes[key] = hash
			change = DetectChange(prev, key, hash)
			if change == result.BalanceChanged {
				anyChanged = true
				metrics.IncBalanceChanged()
				log.Info().Str("account", run.safeName).Msg("balance changed")
			}
		}

		var o result.AccountOutcome
		switch {
		case !run.success():
			o = result.Failed(FullName(run.account, run.index), run.err.Error())
			if run.balance != nil {
				o = o.WithBalance(run.balance.Quota, run.balance.Used, change)
			}
		case run.balance != nil:
			o = result.Succeeded(FullName(run.account, run.index), run.balance.Quota, run.balance.Used, change)
		default:
			o = result.AccountOutcome{Name: FullName(run.account, run.index), Status: result.StatusSuccess}
		}
		full = append(full, o)
		o.Name = run.safeName
		safe = append(safe, o)
	}
	return full, safe, hashes, anyChanged
}

func (r *Runner) maybeNotify(ctx context.Context, log *zerolog.Logger, report *RunReport, signals notify.Signals) {
	if !r.triggers.ShouldNotify(signals) {
		log.Info().Msg("no notification trigger matched, skipping notification")
		return
	}
	report.Reasons = r.triggers.Reasons(signals)
	switch {
	case len(report.Result.Accounts) == 0:
		log.Info().Msg("no account results, skipping notification")
	case r.cfg.DryRun:
		log.Info().Strs("reasons", report.Reasons).Msg("dry-run: notification skipped")
	case r.notifier == nil:
		log.Warn().Msg("no notifier configured, skipping notification")
	default:
		log.Info().Strs("reasons", report.Reasons).Msg("sending notification")
		r.notifier.Push(ctx, report.Result)
		report.Notified = true
	}
}

func (r *Runner) pushMetrics(ctx context.Context, log *zerolog.Logger) {
	if url := r.cfg.MetricsPushURL; url != "" {
		if err := metrics.Push(ctx, url, r.cfg.MetricsJob, nil); err != nil {
			log.Warn().Err(err).Str("url", url).Msg("pushgateway push failed")
		}
	}
	target := metrics.InfluxTarget{URL: r.cfg.InfluxURL, Token: r.cfg.InfluxToken, Org: r.cfg.InfluxOrg, Bucket: r.cfg.InfluxBucket}
	if err := metrics.PushInflux(ctx, target); err != nil {
		log.Warn().Err(err).Msg("influxdb push failed")
	}
}
