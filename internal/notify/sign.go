package notify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// nowFunc is overridable for deterministic signatures in tests.
var nowFunc = time.Now

// feishuSign signs with the key "timestamp\nsecret" over an empty message.
func feishuSign(secret string, ts int64) string {
	h := hmac.New(sha256.New, []byte(fmt.Sprintf("%d\n%s", ts, secret)))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// dingtalkSign signs "timestamp\nsecret" with the secret as key. ts is in
// milliseconds.
func dingtalkSign(secret string, ts int64) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(fmt.Sprintf("%d\n%s", ts, secret)))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// signedDingTalkURL appends timestamp and sign query parameters to webhook.
func signedDingTalkURL(webhook, secret string) string {
	ts := nowFunc().UnixMilli()
	sep := "?"
	if strings.Contains(webhook, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%stimestamp=%d&sign=%s", webhook, sep, ts, url.QueryEscape(dingtalkSign(secret, ts)))
}
