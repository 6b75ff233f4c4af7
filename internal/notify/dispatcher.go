package notify

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/result"
)

// Observer is told about every delivery attempt.
type Observer interface {
	NotificationSent(platform string)
	NotificationFailed(platform string, err error)
}

// Dispatcher fans one run result out to every configured platform.
type Dispatcher struct {
	handlers    []Handler
	concurrency int
	observers   []Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency sends to up to n platforms at once. n <= 1 is sequential,
// in registration order.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) { d.concurrency = n }
}

// WithObserver registers o for delivery outcomes.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observers = append(d.observers, o)
		}
	}
}

// NewDispatcher builds a handler for every platform the loader resolves.
func NewDispatcher(l *Loader, opts ...Option) *Dispatcher {
	d := &Dispatcher{concurrency: 1}
	for _, opt := range opts {
		opt(d)
	}
	for _, h := range l.Handlers() {
		d.Add(h)
	}
	return d
}

// Add registers h if it is available.
func (d *Dispatcher) Add(h Handler) {
	if h.Available() {
		d.handlers = append(d.handlers, h)
	}
}

func (d *Dispatcher) Len() int {
	return len(d.handlers)
}

// Names lists the configured platforms in dispatch order.
func (d *Dispatcher) Names() []string {
	names := make([]string, len(d.handlers))
	for i, h := range d.handlers {
		names[i] = h.Name
	}
	return names
}

// Push renders and sends run to every handler. A failing platform is logged
// and never stops the others; Push itself does not report delivery errors.
func (d *Dispatcher) Push(ctx context.Context, run result.RunResult) {
	if len(d.handlers) == 0 {
		logging.Get().Warn().Msg("no notification platform configured, skipping notification")
		return
	}
	vars := BuildContext(run)

	if d.concurrency <= 1 {
		for _, h := range d.handlers {
			d.deliver(ctx, h, vars)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for _, h := range d.handlers {
		h := h
		g.Go(func() error {
			d.deliver(ctx, h, vars)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, h Handler, vars Context) {
	if err := d.send(ctx, h, vars); err != nil {
		logging.Get().Error().Err(err).Str("platform", h.Name).Msg("notification failed")
		for _, o := range d.observers {
			o.NotificationFailed(h.Platform, err)
		}
		return
	}
	logging.Get().Info().Str("platform", h.Name).Msg("notification sent")
	for _, o := range d.observers {
		o.NotificationSent(h.Platform)
	}
}

// send renders and sends for one handler, turning a panic into an error.
func (d *Dispatcher) send(ctx context.Context, h Handler, vars Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get().Debug().Str("platform", h.Name).Bytes("stack", debug.Stack()).Msg("sender panicked")
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	title, content := RenderTemplate(h.Config.Common().Template, vars)
	return h.Sender.Send(ctx, title, content, vars)
}
