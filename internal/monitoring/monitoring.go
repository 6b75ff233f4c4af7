// Package monitoring reports run failures and notification errors to Sentry.
package monitoring

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
)

type SentryConfig struct {
	DSN         string
	Environment string
	Release     string
}

// beforeSend is replaced in tests to intercept events.
var beforeSend func(*sentry.Event, *sentry.EventHint) *sentry.Event

// StartSentry initializes the global Sentry client. It reports false with a
// nil error when no DSN is configured.
func StartSentry(cfg SentryConfig) (bool, error) {
	if cfg.DSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		BeforeSend:  beforeSend,
	})
	return err == nil, err
}

// Flush waits up to timeout for buffered events to be delivered.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

// CaptureRunError reports an error that ended or degraded a run.
func CaptureRunError(runID string, err error) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("run_id", runID)
		sentry.CaptureException(err)
	})
}

// ErrAllFailed is reported when no account checked in successfully.
var ErrAllFailed = errors.New("all accounts failed to check in")

// Observer forwards failed notification deliveries to Sentry, tagged with the
// platform. It satisfies notify.Observer.
type Observer struct{}

func (Observer) NotificationSent(string) {}

func (Observer) NotificationFailed(platform string, err error) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("platform", platform)
		sentry.CaptureException(err)
	})
}
