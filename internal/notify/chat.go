package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
)

// joinTitle prefixes content with title when one is present.
func joinTitle(title, content, sep string) string {
	if title == "" {
		return content
	}
	return title + sep + content
}

// --- DingTalk ---
type DingTalk struct{ cfg *WebhookConfig }

func (d *DingTalk) Send(ctx context.Context, title, content string, _ Context) error {
	s := d.cfg.Settings
	var payload map[string]interface{}
	switch strings.ToLower(s.String("message_type", "text")) {
	case "markdown":
		if title == "" {
			return titleRequired("dingtalk", `markdown messages need a title: set template.title or use platform_settings.message_type "text"`)
		}
		payload = map[string]interface{}{
			"msgtype":  "markdown",
			"markdown": map[string]string{"title": title, "text": content},
		}
	default:
		payload = map[string]interface{}{
			"msgtype": "text",
			"text":    map[string]string{"content": joinTitle(title, content, "\n")},
		}
	}

	url := d.cfg.Webhook
	if secret := s.String("secret", ""); secret != "" {
		url = signedDingTalkURL(url, secret)
	}
	body, err := postJSON(ctx, url, payload, nil)
	if err != nil {
		return err
	}
	return checkCode(body, "errcode", "errmsg", 0)
}

// --- Feishu ---
type Feishu struct{ cfg *WebhookConfig }

func (f *Feishu) Send(ctx context.Context, title, content string, vars Context) error {
	s := f.cfg.Settings
	var payload map[string]interface{}
	if s.Bool("use_card", true) {
		card := map[string]interface{}{
			"elements": []map[string]string{{"tag": "markdown", "content": content, "text_align": "left"}},
		}
		if title != "" {
			card["header"] = map[string]interface{}{
				"template": f.colorTheme(vars),
				"title":    map[string]string{"content": title, "tag": "plain_text"},
			}
		}
		payload = map[string]interface{}{"msg_type": "interactive", "card": card}
	} else {
		payload = map[string]interface{}{
			"msg_type": "text",
			"content":  map[string]string{"text": joinTitle(title, content, "\n")},
		}
	}

	if secret := s.String("secret", ""); secret != "" {
		ts := nowFunc().Unix()
		payload["timestamp"] = strconv.FormatInt(ts, 10)
		payload["sign"] = feishuSign(secret, ts)
	}
	body, err := postJSON(ctx, f.cfg.Webhook, payload, nil)
	if err != nil {
		return err
	}
	return checkCode(body, "code", "msg", 0)
}

const defaultFeishuColor = "blue"

// colorTheme renders the color_theme setting, which may itself be a
// template. Without a context, or when rendering fails, the configured value
// is used as-is.
func (f *Feishu) colorTheme(vars Context) string {
	raw := f.cfg.Settings.String("color_theme", defaultFeishuColor)
	if vars == nil {
		return raw
	}
	out, err := Render("color_theme", raw, vars)
	if err != nil {
		logging.Get().Warn().Err(err).Str("platform", "Feishu").Msg("color_theme render failed, using configured value")
		return raw
	}
	if out = strings.TrimSpace(out); out == "" {
		return defaultFeishuColor
	}
	return out
}

// --- WeCom ---
type WeCom struct{ cfg *WebhookConfig }

func (w *WeCom) Send(ctx context.Context, title, content string, _ Context) error {
	var payload map[string]interface{}
	switch mode := strings.ToLower(w.cfg.Settings.String("message_type", "text")); mode {
	case "markdown", "markdown_v2":
		text := content
		if title != "" {
			text = fmt.Sprintf("**%s**\n%s", title, content)
		}
		payload = map[string]interface{}{"msgtype": mode, mode: map[string]string{"content": text}}
	default:
		payload = map[string]interface{}{
			"msgtype": "text",
			"text":    map[string]string{"content": joinTitle(title, content, "\n")},
		}
	}
	body, err := postJSON(ctx, w.cfg.Webhook, payload, nil)
	if err != nil {
		return err
	}
	return checkCode(body, "errcode", "errmsg", 0)
}

// --- Slack ---
type Slack struct{ cfg *WebhookConfig }

func (s *Slack) Send(ctx context.Context, title, content string, vars Context) error {
	set := s.cfg.Settings
	msg := slack.WebhookMessage{
		Username:  set.String("username", ""),
		IconEmoji: set.String("icon_emoji", ""),
		Channel:   set.String("channel", ""),
	}
	if set.Bool("use_attachment", false) {
		msg.Attachments = []slack.Attachment{{
			Color:      outcomeColor(vars, "good", "danger", "warning"),
			Title:      title,
			Text:       content,
			Fallback:   joinTitle(title, content, "\n"),
			MarkdownIn: []string{"text"},
		}}
	} else {
		bold := title
		if title != "" {
			bold = "*" + title + "*"
		}
		msg.Text = joinTitle(bold, content, "\n")
	}
	_, err := postJSON(ctx, s.cfg.Webhook, &msg, nil)
	return err
}

// outcomeColor picks a color from the run outcome flags; partial results and
// a missing context use partial.
func outcomeColor(vars Context, success, failed, partial string) string {
	switch {
	case vars.Bool("all_success"):
		return success
	case vars.Bool("all_failed"):
		return failed
	}
	return partial
}

// --- Discord ---
type Discord struct{ cfg *WebhookConfig }

func (d *Discord) Send(ctx context.Context, title, content string, vars Context) error {
	s := d.cfg.Settings
	embed := map[string]interface{}{
		"description": content,
		"color":       s.Int("color", outcomeColorInt(vars)),
		"timestamp":   nowFunc().Format(time.RFC3339),
	}
	if title != "" {
		embed["title"] = title
	}
	payload := map[string]interface{}{
		"username": s.String("username", "AnyRouter"),
		"embeds":   []map[string]interface{}{embed},
	}
	_, err := postJSON(ctx, d.cfg.Webhook, payload, nil)
	return err
}

func outcomeColorInt(vars Context) int {
	switch {
	case vars.Bool("all_success"):
		return 0x2ECC71
	case vars.Bool("all_failed"):
		return 0xE74C3C
	}
	return 0xF1C40F
}

// --- Teams ---
type Teams struct{ cfg *WebhookConfig }

func (t *Teams) Send(ctx context.Context, title, content string, _ Context) error {
	summary := title
	if summary == "" {
		summary = "AnyRouter check-in"
	}
	section := map[string]string{"text": content}
	if title != "" {
		section["activityTitle"] = title
	}
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": t.cfg.Settings.String("theme_color", "0076D7"),
		"summary":    summary,
		"sections":   []map[string]string{section},
	}
	_, err := postJSON(ctx, t.cfg.Webhook, payload, nil)
	return err
}

// --- Mastodon ---
type Mastodon struct{ cfg *MastodonConfig }

func (m *Mastodon) Send(ctx context.Context, title, content string, _ Context) error {
	endpoint := fmt.Sprintf("%s/api/v1/statuses", strings.TrimRight(m.cfg.ServerURL, "/"))
	payload := map[string]string{
		"status":     joinTitle(title, content, "\n\n"),
		"visibility": m.cfg.Settings.String("visibility", "private"),
	}
	_, err := postJSON(ctx, endpoint, payload, map[string]string{"Authorization": "Bearer " + m.cfg.AccessToken})
	return err
}
