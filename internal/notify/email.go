package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultSMTPPort = 465

// mailJob is one fully prepared SMTP delivery.
type mailJob struct {
	Host        string
	Port        int
	ImplicitTLS bool
	Auth        smtp.Auth
	From        string
	To          []string
	Msg         []byte
}

// sendMailHook allows tests to override SMTP sending behavior.
var sendMailHook = sendMail

// Email sends notifications via SMTP.
type Email struct{ cfg *EmailConfig }

// Send builds a MIME message and hands it to the SMTP server. The body is
// sent as HTML when platform_settings.message_type says so, or when it is
// unset and the content looks like HTML.
func (e *Email) Send(ctx context.Context, title, content string, _ Context) error {
	host, port, err := e.server()
	if err != nil {
		return err
	}
	to := splitRecipients(e.cfg.To)
	if len(to) == 0 {
		return errors.New("email: no recipients")
	}
	from := mail.Address{Name: e.cfg.Settings.String("from_name", "AnyRouter Assistant"), Address: e.cfg.User}
	msg := buildMessage(from, to, title, content, e.contentType(content), nowFunc())
	return sendMailHook(ctx, mailJob{
		Host:        host,
		Port:        port,
		ImplicitTLS: port == defaultSMTPPort,
		Auth:        smtp.PlainAuth("", e.cfg.User, e.cfg.Pass, host),
		From:        e.cfg.User,
		To:          to,
		Msg:         msg,
	})
}

// server resolves host and port; the host defaults to smtp.<user domain>.
func (e *Email) server() (string, int, error) {
	host, port := e.cfg.SMTPServer, e.cfg.SMTPPort
	if h, p, err := net.SplitHostPort(host); err == nil {
		host = h
		if n, err := strconv.Atoi(p); err == nil && port == 0 {
			port = n
		}
	}
	if host == "" {
		at := strings.LastIndex(e.cfg.User, "@")
		if at < 0 || at == len(e.cfg.User)-1 {
			return "", 0, fmt.Errorf("email: cannot infer smtp server from user %q", e.cfg.User)
		}
		host = "smtp." + e.cfg.User[at+1:]
	}
	if port == 0 {
		port = defaultSMTPPort
	}
	return host, port, nil
}

var htmlTag = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br|table|tr|td|span|a|b|i|strong|em|h[1-6]|ul|ol|li|pre|code)\b[^>]*>`)

func (e *Email) contentType(content string) string {
	switch strings.ToLower(e.cfg.Settings.String("message_type", "")) {
	case "html":
		return "text/html"
	case "text", "plain":
		return "text/plain"
	}
	if htmlTag.MatchString(content) {
		return "text/html"
	}
	return "text/plain"
}

func splitRecipients(v string) []string {
	var out []string
	for _, r := range strings.Split(v, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func buildMessage(from mail.Address, to []string, title, content, contentType string, now time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from.String())
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	if title != "" {
		fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", title))
	}
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	enc := base64.StdEncoding.EncodeToString([]byte(content))
	for len(enc) > 76 {
		b.WriteString(enc[:76] + "\r\n")
		enc = enc[76:]
	}
	b.WriteString(enc + "\r\n")
	return b.Bytes()
}

// sendMail delivers job over SMTP, using implicit TLS when requested and
// STARTTLS otherwise when the server offers it.
func sendMail(ctx context.Context, job mailJob) error {
	addr := net.JoinHostPort(job.Host, strconv.Itoa(job.Port))
	tlsCfg := &tls.Config{ServerName: job.Host}
	dialer := &net.Dialer{Timeout: SendTimeout}

	var conn net.Conn
	var err error
	if job.ImplicitTLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsCfg}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}
	_ = conn.SetDeadline(time.Now().Add(SendTimeout))

	c, err := smtp.NewClient(conn, job.Host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if !job.ImplicitTLS {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(tlsCfg); err != nil {
				return err
			}
		}
	}
	if err := c.Auth(job.Auth); err != nil {
		return err
	}
	if err := c.Mail(job.From); err != nil {
		return err
	}
	for _, rcpt := range job.To {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(job.Msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
