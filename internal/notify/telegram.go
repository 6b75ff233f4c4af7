package notify

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// telegramAPIBase is overridden in tests.
var telegramAPIBase = "https://api.telegram.org"

// Telegram delivers through the Bot API's sendMessage.
type Telegram struct{ cfg *TelegramConfig }

// chatRecipient lets chat_id be a numeric id or an @channel name.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

func (t *Telegram) Send(ctx context.Context, title, content string, _ Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := tele.NewBot(tele.Settings{
		URL:     telegramAPIBase,
		Token:   t.cfg.BotToken,
		Client:  telegramClient(),
		Offline: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	s := t.cfg.Settings
	mode := telegramParseMode(s.String("message_type", string(tele.ModeHTML)))
	opts := &tele.SendOptions{
		ParseMode:             mode,
		DisableWebPagePreview: s.Bool("disable_web_page_preview", false),
		DisableNotification:   s.Bool("disable_notification", false),
		Protected:             s.Bool("protect_content", false),
	}
	if _, err := bot.Send(chatRecipient(t.cfg.ChatID), telegramText(mode, title, content), opts); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}

// telegramClient wraps httpClient so a non-2xx reply surfaces as a
// StatusError instead of a decode error from the bot library.
func telegramClient() *http.Client {
	next := httpClient.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	return &http.Client{Timeout: httpClient.Timeout, Transport: statusTransport{next: next}}
}

type statusTransport struct{ next http.RoundTripper }

func (s statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := s.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxErrorBody))
	return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
}

// telegramParseMode maps message_type onto a Bot API parse mode. Unknown
// values fall back to plain text.
func telegramParseMode(v string) tele.ParseMode {
	switch strings.ToLower(v) {
	case "html":
		return tele.ModeHTML
	case "markdown":
		return tele.ModeMarkdown
	case "markdownv2", "markdown_v2":
		return tele.ModeMarkdownV2
	}
	return tele.ModeDefault
}

func telegramText(mode tele.ParseMode, title, content string) string {
	if title == "" {
		return content
	}
	switch mode {
	case tele.ModeHTML:
		title = "<b>" + html.EscapeString(title) + "</b>"
	case tele.ModeMarkdown, tele.ModeMarkdownV2:
		title = "*" + title + "*"
	}
	return title + "\n\n" + content
}
