package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/result"
)

const (
	invalidPayloadMsg    = "invalid payload: %v"
	unexpectedPayloadMsg = "unexpected payload: %v"
)

// jsonServer decodes every request body into a map and hands it to check
// before replying with reply.
func jsonServer(t *testing.T, reply string, check func(r *http.Request, payload map[string]interface{})) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf(invalidPayloadMsg, err)
		}
		check(r, payload)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server
}

func failServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	t.Cleanup(server.Close)
	return server
}

func fixedNow(t *testing.T, ts time.Time) {
	t.Helper()
	old := nowFunc
	nowFunc = func() time.Time { return ts }
	t.Cleanup(func() { nowFunc = old })
}

func webhookCfg(url string, s Settings) *WebhookConfig {
	return &WebhookConfig{Config: Config{Settings: s}, Webhook: url}
}

func TestPushPlusSend(t *testing.T) {
	server := jsonServer(t, `{"code":200,"msg":"ok"}`, func(_ *http.Request, payload map[string]interface{}) {
		if payload["token"] != "tok" || payload["title"] != "T" || payload["content"] != "M" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
		if payload["template"] != "markdown" || payload["topic"] != "team" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
		if _, ok := payload["channel"]; ok {
			t.Errorf("empty channel should be omitted: %v", payload)
		}
	})
	old := pushplusAPIURL
	pushplusAPIURL = server.URL
	defer func() { pushplusAPIURL = old }()

	p := &PushPlus{cfg: &PushPlusConfig{Config: Config{Settings: Settings{"template": "markdown", "topic": "team"}}, Token: "tok"}}
	if err := p.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("pushplus send failed: %v", err)
	}
}

func TestPushPlusAPIError(t *testing.T) {
	server := jsonServer(t, `{"code":900,"msg":"invalid token"}`, func(*http.Request, map[string]interface{}) {})
	old := pushplusAPIURL
	pushplusAPIURL = server.URL
	defer func() { pushplusAPIURL = old }()

	p := &PushPlus{cfg: &PushPlusConfig{Token: "bad"}}
	err := p.Send(context.Background(), "T", "M", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 900 || apiErr.Message != "invalid token" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestServerPushSend(t *testing.T) {
	server := jsonServer(t, `{"code":0,"message":""}`, func(r *http.Request, payload map[string]interface{}) {
		if r.URL.Path != "/SCT123.send" {
			t.Errorf("expected /SCT123.send, got %s", r.URL.Path)
		}
		if payload["title"] != "T" || payload["desp"] != "M" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	old := serverPushAPIBase
	serverPushAPIBase = server.URL + "/"
	defer func() { serverPushAPIBase = old }()

	s := &ServerPush{cfg: &ServerPushConfig{SendKey: "SCT123"}}
	if err := s.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("serverpush send failed: %v", err)
	}
}

func TestServerPushRequiresTitle(t *testing.T) {
	server := failServer(t)
	old := serverPushAPIBase
	serverPushAPIBase = server.URL
	defer func() { serverPushAPIBase = old }()

	s := &ServerPush{cfg: &ServerPushConfig{SendKey: "k"}}
	err := s.Send(context.Background(), "", "M", nil)
	if !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
}

func TestDingTalkMarkdown(t *testing.T) {
	server := jsonServer(t, `{"errcode":0,"errmsg":"ok"}`, func(_ *http.Request, payload map[string]interface{}) {
		md, _ := payload["markdown"].(map[string]interface{})
		if payload["msgtype"] != "markdown" || md["title"] != "T" || md["text"] != "M" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	d := &DingTalk{cfg: webhookCfg(server.URL, Settings{"message_type": "markdown"})}
	if err := d.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("dingtalk send failed: %v", err)
	}
}

func TestDingTalkMarkdownRequiresTitle(t *testing.T) {
	d := &DingTalk{cfg: webhookCfg(failServer(t).URL, Settings{"message_type": "markdown"})}
	if err := d.Send(context.Background(), "", "M", nil); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
}

func TestDingTalkUnknownModeIsText(t *testing.T) {
	server := jsonServer(t, `{"errcode":0}`, func(_ *http.Request, payload map[string]interface{}) {
		text, _ := payload["text"].(map[string]interface{})
		if payload["msgtype"] != "text" || text["content"] != "T\nM" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	d := &DingTalk{cfg: webhookCfg(server.URL, Settings{"message_type": "actionCard"})}
	if err := d.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("dingtalk send failed: %v", err)
	}
}

func TestDingTalkSignedURL(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	fixedNow(t, now)
	server := jsonServer(t, `{"errcode":310000,"errmsg":"sign not match"}`, func(r *http.Request, _ map[string]interface{}) {
		q := r.URL.Query()
		if q.Get("access_token") != "abc" || q.Get("timestamp") != "1700000000123" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Get("sign") != dingtalkSign("SEC", now.UnixMilli()) {
			t.Errorf("unexpected sign: %s", q.Get("sign"))
		}
	})
	d := &DingTalk{cfg: webhookCfg(server.URL+"/robot/send?access_token=abc", Settings{"secret": "SEC"})}
	err := d.Send(context.Background(), "T", "M", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 310000 {
		t.Fatalf("expected errcode 310000, got %v", err)
	}
}

func TestFeishuCard(t *testing.T) {
	var got map[string]interface{}
	server := jsonServer(t, `{"code":0,"msg":"success"}`, func(_ *http.Request, payload map[string]interface{}) {
		got = payload
	})
	f := &Feishu{cfg: webhookCfg(server.URL, Settings{
		"use_card":    true,
		"color_theme": "{{if .all_success}}green{{else if .partial_success}}orange{{else}}red{{end}}",
	})}
	if err := f.Send(context.Background(), "T", "M", BuildContext(sampleRun())); err != nil {
		t.Fatalf("feishu send failed: %v", err)
	}
	card, _ := got["card"].(map[string]interface{})
	header, _ := card["header"].(map[string]interface{})
	if got["msg_type"] != "interactive" || header["template"] != "orange" {
		t.Fatalf(unexpectedPayloadMsg, got)
	}
	if title, _ := header["title"].(map[string]interface{}); title["content"] != "T" {
		t.Fatalf(unexpectedPayloadMsg, got)
	}
}

func TestFeishuCardWithoutTitleHasNoHeader(t *testing.T) {
	server := jsonServer(t, `{"code":0}`, func(_ *http.Request, payload map[string]interface{}) {
		card, _ := payload["card"].(map[string]interface{})
		if _, ok := card["header"]; ok {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	f := &Feishu{cfg: webhookCfg(server.URL, Settings{})}
	if err := f.Send(context.Background(), "", "M", nil); err != nil {
		t.Fatalf("feishu send failed: %v", err)
	}
}

func TestFeishuColorTheme(t *testing.T) {
	tmpl := "{{if .all_success}}green{{else}}red{{end}}"
	f := &Feishu{cfg: webhookCfg("", Settings{"color_theme": tmpl})}
	if got := f.colorTheme(nil); got != tmpl {
		t.Fatalf("expected raw theme without context, got %q", got)
	}
	allOK := BuildContext(result.New("t", []result.AccountOutcome{result.Succeeded("a", 1, 0, result.BalanceUnchanged)}))
	if got := f.colorTheme(allOK); got != "green" {
		t.Fatalf("expected green, got %q", got)
	}
	empty := &Feishu{cfg: webhookCfg("", Settings{"color_theme": "{{if .all_failed}}red{{end}}"})}
	if got := empty.colorTheme(allOK); got != "blue" {
		t.Fatalf("expected blue fallback, got %q", got)
	}
}

func TestFeishuTextSigned(t *testing.T) {
	fixedNow(t, time.Unix(1700000000, 0))
	server := jsonServer(t, `{"code":19021,"msg":"sign match fail"}`, func(_ *http.Request, payload map[string]interface{}) {
		content, _ := payload["content"].(map[string]interface{})
		if payload["msg_type"] != "text" || content["text"] != "T\nM" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
		if payload["timestamp"] != "1700000000" || payload["sign"] != feishuSign("S", 1700000000) {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	f := &Feishu{cfg: webhookCfg(server.URL, Settings{"use_card": false, "secret": "S"})}
	var apiErr *APIError
	if err := f.Send(context.Background(), "T", "M", nil); !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
}

func TestWeComModes(t *testing.T) {
	tests := []struct {
		mode    string
		msgtype string
		content string
	}{
		{"markdown", "markdown", "**T**\nM"},
		{"markdown_v2", "markdown_v2", "**T**\nM"},
		{"news", "text", "T\nM"},
		{"", "text", "T\nM"},
		{"unset", "text", "T\nM"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			server := jsonServer(t, `{"errcode":0,"errmsg":"ok"}`, func(_ *http.Request, payload map[string]interface{}) {
				body, _ := payload[tt.msgtype].(map[string]interface{})
				if payload["msgtype"] != tt.msgtype || body["content"] != tt.content {
					t.Errorf(unexpectedPayloadMsg, payload)
				}
			})
			settings := Settings{"message_type": tt.mode}
			if tt.mode == "unset" {
				settings = nil
			}
			w := &WeCom{cfg: webhookCfg(server.URL, settings)}
			if err := w.Send(context.Background(), "T", "M", nil); err != nil {
				t.Fatalf("wecom send failed: %v", err)
			}
		})
	}
}

func TestSlackPayload(t *testing.T) {
	server := jsonServer(t, "ok", func(_ *http.Request, payload map[string]interface{}) {
		if payload["text"] != "*T*\nM" || payload["username"] != "bot" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	s := &Slack{cfg: webhookCfg(server.URL, Settings{"username": "bot"})}
	if err := s.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("slack send failed: %v", err)
	}
}

func TestSlackAttachment(t *testing.T) {
	server := jsonServer(t, "ok", func(_ *http.Request, payload map[string]interface{}) {
		atts, _ := payload["attachments"].([]interface{})
		if len(atts) != 1 {
			t.Errorf(unexpectedPayloadMsg, payload)
			return
		}
		att := atts[0].(map[string]interface{})
		if att["color"] != "danger" || att["title"] != "T" || att["text"] != "M" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	allFailed := BuildContext(result.New("t", []result.AccountOutcome{result.Failed("a", "x")}))
	s := &Slack{cfg: webhookCfg(server.URL, Settings{"use_attachment": true})}
	if err := s.Send(context.Background(), "T", "M", allFailed); err != nil {
		t.Fatalf("slack send failed: %v", err)
	}
}

func TestDiscordPayload(t *testing.T) {
	server := jsonServer(t, "", func(_ *http.Request, payload map[string]interface{}) {
		embeds, _ := payload["embeds"].([]interface{})
		if len(embeds) != 1 || payload["username"] != "AnyRouter" {
			t.Errorf(unexpectedPayloadMsg, payload)
			return
		}
		embed := embeds[0].(map[string]interface{})
		if embed["title"] != "T" || embed["description"] != "M" || embed["color"] != float64(0xF1C40F) {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	d := &Discord{cfg: webhookCfg(server.URL, Settings{})}
	if err := d.Send(context.Background(), "T", "M", BuildContext(sampleRun())); err != nil {
		t.Fatalf("discord send failed: %v", err)
	}
}

func TestTeamsPayload(t *testing.T) {
	server := jsonServer(t, "1", func(_ *http.Request, payload map[string]interface{}) {
		if payload["@type"] != "MessageCard" || payload["summary"] != "T" || payload["themeColor"] != "FF0000" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
		sections, _ := payload["sections"].([]interface{})
		if len(sections) != 1 || sections[0].(map[string]interface{})["activityTitle"] != "T" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	tm := &Teams{cfg: webhookCfg(server.URL, Settings{"theme_color": "FF0000"})}
	if err := tm.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("teams send failed: %v", err)
	}
}

func TestMastodonPayload(t *testing.T) {
	server := jsonServer(t, `{"id":"1"}`, func(r *http.Request, payload map[string]interface{}) {
		if r.URL.Path != "/api/v1/statuses" {
			t.Errorf("expected /api/v1/statuses, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token")
		}
		if payload["status"] != "T\n\nM" || payload["visibility"] != "private" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	m := &Mastodon{cfg: &MastodonConfig{ServerURL: server.URL + "/", AccessToken: "tok"}}
	if err := m.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("mastodon send failed: %v", err)
	}
}

func TestBarkOptions(t *testing.T) {
	server := jsonServer(t, `{"code":200}`, func(r *http.Request, payload map[string]interface{}) {
		if r.URL.Path != "/push" {
			t.Errorf("expected /push, got %s", r.URL.Path)
		}
		if payload["device_key"] != "dev" || payload["title"] != "T" || payload["body"] != "M" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
		if payload["group"] != "AnyRouter" || payload["call"] != true || payload["badge"] != float64(0) {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
		for _, k := range []string{"sound", "isArchive", "url"} {
			if _, ok := payload[k]; ok {
				t.Errorf("empty option %s should be omitted: %v", k, payload)
			}
		}
	})
	b := &Bark{cfg: &BarkConfig{
		Config: Config{Settings: Settings{
			"display":     map[string]interface{}{"group": "AnyRouter", "badge": 0},
			"alert":       map[string]interface{}{"sound": "", "call": true},
			"options":     map[string]interface{}{"isArchive": false},
			"interaction": "not-a-map",
		}},
		ServerURL: server.URL,
		DeviceKey: "dev",
	}}
	if err := b.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("bark send failed: %v", err)
	}
}

func TestGotifySend(t *testing.T) {
	server := jsonServer(t, `{"id":1}`, func(r *http.Request, payload map[string]interface{}) {
		if r.URL.Path != "/message" {
			t.Errorf("expected /message, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Gotify-Key") != "tok" {
			t.Errorf("missing token header")
		}
		if payload["title"] != "T" || payload["message"] != "M" || payload["priority"] != float64(8) {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	g := &Gotify{cfg: &GotifyConfig{Config: Config{Settings: Settings{"priority": 8}}, ServerURL: server.URL, Token: "tok"}}
	if err := g.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("gotify send failed: %v", err)
	}
}

func TestPushoverSend(t *testing.T) {
	server := jsonServer(t, `{"status":1}`, func(_ *http.Request, payload map[string]interface{}) {
		if payload["token"] != "tok" || payload["user"] != "u" || payload["html"] != float64(0) || payload["sound"] != "magic" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	old := pushoverAPIURL
	pushoverAPIURL = server.URL
	defer func() { pushoverAPIURL = old }()

	p := &Pushover{cfg: &PushoverConfig{Config: Config{Settings: Settings{"html": "0", "sound": "magic"}}, User: "u", Token: "tok"}}
	if err := p.Send(context.Background(), "T", "M", nil); err != nil {
		t.Fatalf("pushover send failed: %v", err)
	}
}

func TestAppriseSend(t *testing.T) {
	server := jsonServer(t, "", func(_ *http.Request, payload map[string]interface{}) {
		if payload["type"] != "success" || payload["format"] != "markdown" || payload["tag"] != "ops" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	allOK := BuildContext(result.New("t", []result.AccountOutcome{result.Succeeded("a", 1, 0, result.BalanceUnchanged)}))
	a := &Apprise{cfg: &URLConfig{Config: Config{Settings: Settings{"tag": "ops"}}, URL: server.URL}}
	if err := a.Send(context.Background(), "T", "M", allOK); err != nil {
		t.Fatalf("apprise send failed: %v", err)
	}
}

func TestWebhookSend(t *testing.T) {
	server := jsonServer(t, "", func(r *http.Request, payload map[string]interface{}) {
		if r.Header.Get("X-Token") != "secret" || r.Header.Get("X-Retry") != "3" {
			t.Errorf("missing custom headers: %v", r.Header)
		}
		if payload["title"] != "T" || payload["content"] != "M" || payload["agent"] != "autocheck-anyrouter" {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
		stats, _ := payload["stats"].(map[string]interface{})
		if payload["timestamp"] != "2024-01-01 12:00:00" || stats["total_count"] != float64(3) {
			t.Errorf(unexpectedPayloadMsg, payload)
		}
	})
	w := &Webhook{cfg: &URLConfig{
		Config: Config{Settings: Settings{"headers": map[string]interface{}{"X-Token": "secret", "X-Retry": 3}}},
		URL:    server.URL,
	}}
	if err := w.Send(context.Background(), "T", "M", BuildContext(sampleRun())); err != nil {
		t.Fatalf("webhook send failed: %v", err)
	}
}

func TestStatusErrorTruncatesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer server.Close()

	d := &Discord{cfg: webhookCfg(server.URL, Settings{})}
	err := d.Send(context.Background(), "T", "M", nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway || len(statusErr.Body) != maxErrorBody+3 {
		t.Fatalf("unexpected status error: %d %d", statusErr.StatusCode, len(statusErr.Body))
	}
	if !strings.Contains(err.Error(), strconv.Itoa(http.StatusBadGateway)) {
		t.Fatalf("status code missing from %q", err.Error())
	}
}

func TestTransportErrorIsReturned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	err := (&Teams{cfg: webhookCfg(url, Settings{})}).Send(context.Background(), "T", "M", nil)
	if err == nil {
		t.Fatalf("expected transport error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Fatalf("transport error reported as status error: %v", err)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	if got := truncate("你好世界", 4); got != "你..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestCheckCodeIgnoresNonJSON(t *testing.T) {
	if err := checkCode([]byte("ok"), "code", "msg", 0); err != nil {
		t.Fatalf("non-json body should pass: %v", err)
	}
	if err := checkCode([]byte(`{"other":1}`), "code", "msg", 0); err != nil {
		t.Fatalf("missing code should pass: %v", err)
	}
}
