package checkin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
)

// WAFCookieNames are the cookies the site's firewall hands out before login.
var WAFCookieNames = []string{"acw_tc", "cdn_sec_tc", "acw_sc__v2"}

// CookieProvider obtains the firewall cookies needed before calling the API.
type CookieProvider interface {
	WAFCookies(ctx context.Context, account string) (map[string]string, error)
}

// CookieProviderFunc adapts a function to CookieProvider.
type CookieProviderFunc func(ctx context.Context, account string) (map[string]string, error)

func (f CookieProviderFunc) WAFCookies(ctx context.Context, account string) (map[string]string, error) {
	return f(ctx, account)
}

// HTTPCookieProvider loads the login page with a fresh cookie jar and keeps
// whichever firewall cookies the site set.
type HTTPCookieProvider struct {
	baseURL string
	timeout time.Duration
}

func NewHTTPCookieProvider(baseURL string, timeout time.Duration) *HTTPCookieProvider {
	return &HTTPCookieProvider{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

// WAFCookies fails only when the page cannot be fetched. Missing cookies are
// logged and the check-in proceeds with what was collected.
func (p *HTTPCookieProvider) WAFCookies(ctx context.Context, account string) (map[string]string, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Jar: jar, Timeout: p.timeout}

	loginURL := p.baseURL + "/login"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load login page: %w", err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	resp.Body.Close()

	u, err := url.Parse(loginURL)
	if err != nil {
		return nil, err
	}
	got := make(map[string]string)
	for _, c := range jar.Cookies(u) {
		for _, name := range WAFCookieNames {
			if c.Name == name {
				got[name] = c.Value
			}
		}
	}

	var missing []string
	for _, name := range WAFCookieNames {
		if _, ok := got[name]; !ok {
			missing = append(missing, name)
		}
	}
	log := logging.Get().Debug()
	if len(missing) > 0 {
		log = logging.Get().Warn().Strs("missing", missing)
	}
	log.Str("account", account).Int("count", len(got)).Msg("collected waf cookies")
	return got, nil
}

// mergeCookies overlays user cookies on the firewall cookies; user values
// win on conflict.
func mergeCookies(waf, user map[string]string) map[string]string {
	out := make(map[string]string, len(waf)+len(user))
	for k, v := range waf {
		out[k] = v
	}
	for k, v := range user {
		out[k] = v
	}
	return out
}
