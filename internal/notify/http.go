package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

// SendTimeout bounds every outbound notification call.
const SendTimeout = 30 * time.Second

// maxErrorBody is how much of a response body is kept in errors.
const maxErrorBody = 200

// httpClient is shared by the HTTP senders; tests may replace it.
var httpClient = &http.Client{Timeout: SendTimeout}

// ErrTitleRequired is returned before any I/O by platforms that cannot send
// a message without a title.
var ErrTitleRequired = errors.New("title is required")

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
}

// APIError reports a 2xx response whose body signals failure.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api returned error code %d: %s", e.Code, e.Message)
}

// postJSON is a shared helper used by providers. It returns the response
// body on success so callers can inspect platform-level error codes.
// Transport errors are returned unchanged.
func postJSON(ctx context.Context, url string, data interface{}, headers map[string]string) ([]byte, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}
	return body, nil
}

// checkCode inspects a JSON response body for a platform error code. Bodies
// that are not JSON, or that do not carry the field, are treated as success.
func checkCode(body []byte, codeField, msgField string, okCode int) error {
	var resp map[string]interface{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil
	}
	raw, ok := resp[codeField].(float64)
	if !ok || int(raw) == okCode {
		return nil
	}
	msg, _ := resp[msgField].(string)
	return &APIError{Code: int(raw), Message: truncate(msg, maxErrorBody)}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for !utf8.ValidString(cut) && len(cut) > 0 {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}

func titleRequired(platform, hint string) error {
	return fmt.Errorf("%s: %w; %s", platform, ErrTitleRequired, hint)
}
