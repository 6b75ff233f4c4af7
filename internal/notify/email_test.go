package notify

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureMail(t *testing.T) *mailJob {
	t.Helper()
	job := &mailJob{}
	old := sendMailHook
	sendMailHook = func(_ context.Context, j mailJob) error {
		*job = j
		return nil
	}
	t.Cleanup(func() { sendMailHook = old })
	return job
}

func emailCfg(s Settings) *EmailConfig {
	return &EmailConfig{Config: Config{Settings: s}, User: "bot@example.com", Pass: "pw", To: "a@x.com, b@y.com,"}
}

func TestEmailSendInfersServer(t *testing.T) {
	job := captureMail(t)
	fixedNow(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	e := &Email{cfg: emailCfg(Settings{"from_name": "Checker"})}
	require.NoError(t, e.Send(context.Background(), "Check-in report", "<p>all good</p>", nil))

	assert.Equal(t, "smtp.example.com", job.Host)
	assert.Equal(t, 465, job.Port)
	assert.True(t, job.ImplicitTLS)
	assert.Equal(t, "bot@example.com", job.From)
	assert.Equal(t, []string{"a@x.com", "b@y.com"}, job.To)

	msg := string(job.Msg)
	assert.Contains(t, msg, "From: \"Checker\" <bot@example.com>\r\n")
	assert.Contains(t, msg, "To: a@x.com, b@y.com\r\n")
	assert.Contains(t, msg, "Subject: Check-in report\r\n")
	assert.Contains(t, msg, "Date: Mon, 01 Jan 2024 12:00:00 +0000\r\n")
	assert.Contains(t, msg, "Content-Type: text/html; charset=\"utf-8\"")
	assert.Contains(t, msg, base64.StdEncoding.EncodeToString([]byte("<p>all good</p>")))
}

func TestEmailExplicitServerAndType(t *testing.T) {
	job := captureMail(t)
	cfg := emailCfg(Settings{"message_type": "text"})
	cfg.SMTPServer = "mail.example.org:587"

	e := &Email{cfg: cfg}
	require.NoError(t, e.Send(context.Background(), "", "<b>literal</b>", nil))

	assert.Equal(t, "mail.example.org", job.Host)
	assert.Equal(t, 587, job.Port)
	assert.False(t, job.ImplicitTLS)
	msg := string(job.Msg)
	assert.NotContains(t, msg, "Subject:")
	assert.Contains(t, msg, "Content-Type: text/plain")
}

func TestEmailEncodesSubject(t *testing.T) {
	job := captureMail(t)
	e := &Email{cfg: emailCfg(nil)}
	require.NoError(t, e.Send(context.Background(), "签到提醒", "plain body", nil))
	msg := string(job.Msg)
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.Contains(t, msg, "From: \"AnyRouter Assistant\" <bot@example.com>")
	assert.Contains(t, msg, "Content-Type: text/plain")
}

func TestEmailWrapsLongBody(t *testing.T) {
	job := captureMail(t)
	e := &Email{cfg: emailCfg(nil)}
	require.NoError(t, e.Send(context.Background(), "T", strings.Repeat("a", 300), nil))
	body := string(job.Msg)[strings.Index(string(job.Msg), "\r\n\r\n")+4:]
	for _, line := range strings.Split(strings.TrimSuffix(body, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}

func TestEmailErrors(t *testing.T) {
	captureMail(t)
	noDomain := &Email{cfg: &EmailConfig{User: "nobody", Pass: "p", To: "a@x.com"}}
	assert.Error(t, noDomain.Send(context.Background(), "T", "M", nil))

	noRcpt := &Email{cfg: &EmailConfig{User: "bot@example.com", Pass: "p", To: " , "}}
	assert.Error(t, noRcpt.Send(context.Background(), "T", "M", nil))
}
