package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/config"
)

type fakeSender struct {
	mu     sync.Mutex
	calls  []string
	err    error
	panics bool
}

func (f *fakeSender) Send(_ context.Context, title, content string, vars Context) error {
	f.mu.Lock()
	f.calls = append(f.calls, title+"|"+content)
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingObserver struct {
	mu     sync.Mutex
	sent   []string
	failed []string
}

func (r *recordingObserver) NotificationSent(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, p)
}

func (r *recordingObserver) NotificationFailed(p string, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, p)
}

func handler(name string, s Sender) Handler {
	cfg := &WebhookConfig{Webhook: "https://example.test"}
	cfg.Template = Template{Title: "{{.stats.SuccessCount}}/{{.stats.TotalCount}}", Content: "{{.timestamp}}"}
	return Handler{Name: name, Platform: name, Config: cfg, Sender: s}
}

func emptyDispatcher(opts ...Option) *Dispatcher {
	return NewDispatcher(NewLoader(config.MapSource{}, testDefaults), opts...)
}

func TestPushNoHandlers(t *testing.T) {
	logs := captureLogs(t)
	d := emptyDispatcher()
	require.Equal(t, 0, d.Len())
	d.Push(context.Background(), sampleRun())
	assert.Contains(t, logs.String(), "no notification platform configured")
}

func TestAddSkipsUnavailable(t *testing.T) {
	d := emptyDispatcher()
	d.Add(Handler{Name: "x", Sender: &fakeSender{}})
	assert.Equal(t, 0, d.Len())
}

func TestPushIsolatesFailures(t *testing.T) {
	logs := captureLogs(t)
	first := &fakeSender{err: errors.New("connection refused")}
	second := &fakeSender{}
	obs := &recordingObserver{}

	d := emptyDispatcher(WithObserver(obs))
	d.Add(handler("first", first))
	d.Add(handler("second", second))
	d.Push(context.Background(), sampleRun())

	assert.Equal(t, 1, first.count())
	require.Equal(t, 1, second.count())
	assert.Equal(t, "2/3|2024-01-01 12:00:00", second.calls[0])
	assert.Contains(t, logs.String(), `"platform":"first"`)
	assert.Contains(t, logs.String(), "connection refused")
	assert.Equal(t, []string{"second"}, obs.sent)
	assert.Equal(t, []string{"first"}, obs.failed)
}

func TestPushMiddleHandlerFails(t *testing.T) {
	senders := []*fakeSender{{}, {err: errors.New("ConnectionError")}, {}}
	d := emptyDispatcher()
	for i, s := range senders {
		d.Add(handler([]string{"a", "b", "c"}[i], s))
	}
	d.Push(context.Background(), sampleRun())
	for i, s := range senders {
		assert.Equal(t, 1, s.count(), "sender %d", i)
	}
}

func TestPushRecoversPanics(t *testing.T) {
	logs := captureLogs(t)
	after := &fakeSender{}
	d := emptyDispatcher()
	d.Add(handler("panicky", &fakeSender{panics: true}))
	d.Add(handler("after", after))
	d.Push(context.Background(), sampleRun())
	assert.Equal(t, 1, after.count())
	assert.Contains(t, logs.String(), "sender panic")
}

func TestPushConcurrent(t *testing.T) {
	captureLogs(t)
	obs := &recordingObserver{}
	d := emptyDispatcher(WithConcurrency(3), WithObserver(obs))
	senders := make([]*fakeSender, 5)
	for i := range senders {
		senders[i] = &fakeSender{}
		if i%2 == 0 {
			senders[i].err = errors.New("down")
		}
		d.Add(handler(string(rune('a'+i)), senders[i]))
	}
	d.Push(context.Background(), sampleRun())
	for _, s := range senders {
		assert.Equal(t, 1, s.count())
	}
	assert.Len(t, obs.sent, 2)
	assert.Len(t, obs.failed, 3)
}

func TestNewDispatcherFromEnv(t *testing.T) {
	src := config.MapSource{"PUSHPLUS_NOTIF_CONFIG": "tok", "DINGTALK_NOTIF_CONFIG": "https://x"}
	d := NewDispatcher(NewLoader(src, testDefaults))
	assert.Equal(t, []string{"PushPlus", "DingTalk"}, d.Names())
}
