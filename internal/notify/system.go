package notify

import (
	"context"
	"fmt"
	"strings"
)

// API endpoints, overridable in tests.
var (
	pushplusAPIURL    = "http://www.pushplus.plus/send"
	serverPushAPIBase = "https://sctapi.ftqq.com"
	pushoverAPIURL    = "https://api.pushover.net/1/messages.json"
)

// --- PushPlus ---
type PushPlus struct{ cfg *PushPlusConfig }

func (p *PushPlus) Send(ctx context.Context, title, content string, _ Context) error {
	s := p.cfg.Settings
	payload := map[string]string{
		"token":    p.cfg.Token,
		"title":    title,
		"content":  content,
		"template": s.String("template", "html"),
	}
	for _, key := range []string{"topic", "channel"} {
		if v := s.String(key, ""); v != "" {
			payload[key] = v
		}
	}
	body, err := postJSON(ctx, pushplusAPIURL, payload, nil)
	if err != nil {
		return err
	}
	return checkCode(body, "code", "msg", 200)
}

// --- ServerChan ---
type ServerPush struct{ cfg *ServerPushConfig }

func (s *ServerPush) Send(ctx context.Context, title, content string, _ Context) error {
	if title == "" {
		return titleRequired("serverpush", "ServerChan requires a title: set template.title in SERVERPUSH_NOTIF_CONFIG")
	}
	url := fmt.Sprintf("%s/%s.send", strings.TrimRight(serverPushAPIBase, "/"), s.cfg.SendKey)
	body, err := postJSON(ctx, url, map[string]string{"title": title, "desp": content}, nil)
	if err != nil {
		return err
	}
	return checkCode(body, "code", "message", 0)
}

// --- Bark (iOS push) ---
type Bark struct{ cfg *BarkConfig }

// barkOptions lists the optional settings copied into the payload, by group.
var barkOptions = map[string][]string{
	"display":     {"subtitle", "badge", "icon", "group"},
	"alert":       {"sound", "call", "level", "volume"},
	"interaction": {"url", "action", "autoCopy", "copy"},
	"options":     {"isArchive"},
}

func (b *Bark) Send(ctx context.Context, title, content string, _ Context) error {
	payload := map[string]interface{}{
		"device_key": b.cfg.DeviceKey,
		"body":       content,
	}
	if title != "" {
		payload["title"] = title
	}
	for group, keys := range barkOptions {
		settings := b.cfg.Settings.Map(group)
		for _, key := range keys {
			if v, ok := settings.Lookup(key); ok && !isEmptyOption(v) {
				payload[key] = v
			}
		}
	}
	_, err := postJSON(ctx, strings.TrimRight(b.cfg.ServerURL, "/")+"/push", payload, nil)
	return err
}

// isEmptyOption treats "", false and nil as unset. A zero badge is kept.
func isEmptyOption(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case bool:
		return !x
	}
	return false
}

// --- Gotify (Self-Hosted Push) ---
type Gotify struct{ cfg *GotifyConfig }

func (g *Gotify) Send(ctx context.Context, title, content string, _ Context) error {
	url := fmt.Sprintf("%s/message", strings.TrimRight(g.cfg.ServerURL, "/"))
	payload := map[string]interface{}{
		"message":  content,
		"priority": g.cfg.Settings.Int("priority", 5),
		"extras":   map[string]interface{}{"client::display": map[string]string{"contentType": "text/markdown"}},
	}
	if title != "" {
		payload["title"] = title
	}
	_, err := postJSON(ctx, url, payload, map[string]string{"X-Gotify-Key": g.cfg.Token})
	return err
}

// --- Pushover (Mobile Push) ---
type Pushover struct{ cfg *PushoverConfig }

func (p *Pushover) Send(ctx context.Context, title, content string, _ Context) error {
	s := p.cfg.Settings
	payload := map[string]interface{}{
		"token":    p.cfg.Token,
		"user":     p.cfg.User,
		"message":  content,
		"html":     s.Int("html", 1),
		"priority": s.Int("priority", 0),
	}
	if title != "" {
		payload["title"] = title
	}
	if sound := s.String("sound", ""); sound != "" {
		payload["sound"] = sound
	}
	_, err := postJSON(ctx, pushoverAPIURL, payload, nil)
	return err
}

// --- Apprise (Gateway) ---
type Apprise struct{ cfg *URLConfig }

func (a *Apprise) Send(ctx context.Context, title, content string, vars Context) error {
	s := a.cfg.Settings
	payload := map[string]string{
		"title":  title,
		"body":   content,
		"format": s.String("format", "markdown"),
		"type":   outcomeColor(vars, "success", "failure", "warning"),
	}
	if tag := s.String("tag", ""); tag != "" {
		payload["tag"] = tag
	}
	_, err := postJSON(ctx, a.cfg.URL, payload, nil)
	return err
}

// --- Generic Webhook ---
type Webhook struct{ cfg *URLConfig }

func (w *Webhook) Send(ctx context.Context, title, content string, vars Context) error {
	payload := map[string]interface{}{
		"title":   title,
		"content": content,
		"agent":   "autocheck-anyrouter",
	}
	if vars != nil {
		payload["timestamp"] = vars["timestamp"]
		payload["stats"] = vars["stats"]
	}
	headers := map[string]string{}
	for k, v := range w.cfg.Settings.Map("headers") {
		headers[k] = toString(v)
	}
	_, err := postJSON(ctx, w.cfg.URL, payload, headers)
	return err
}
