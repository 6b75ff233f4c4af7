package checkin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UserAgent is sent with every request to the site.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36"

const (
	userInfoPath = "/api/user/self"
	signInPath   = "/api/user/sign_in"
	maxBody      = 1 << 20
)

// ErrRejected is returned when the site answers the check-in without
// confirming it.
var ErrRejected = errors.New("check-in rejected")

// Client talks to the AnyRouter API on behalf of one account at a time.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL whose requests time out after
// timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path, apiUser string, cookies map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Referer", c.baseURL+"/console")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("new-api-user", apiUser)
	if len(cookies) > 0 {
		req.Header.Set("Cookie", cookieHeader(cookies))
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	return resp.StatusCode, body, err
}

type userInfoResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Quota     float64 `json:"quota"`
		UsedQuota float64 `json:"used_quota"`
	} `json:"data"`
	Message string `json:"message"`
}

// UserInfo fetches the account balance.
func (c *Client) UserInfo(ctx context.Context, apiUser string, cookies map[string]string) (Balance, error) {
	req, err := c.newRequest(ctx, http.MethodGet, userInfoPath, apiUser, cookies)
	if err != nil {
		return Balance{}, err
	}
	status, body, err := c.do(req)
	if err != nil {
		return Balance{}, fmt.Errorf("get user info: %w", err)
	}
	if status != http.StatusOK {
		return Balance{}, fmt.Errorf("get user info: HTTP %d", status)
	}
	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return Balance{}, fmt.Errorf("get user info: invalid response: %w", err)
	}
	if !info.Success {
		return Balance{}, fmt.Errorf("get user info: %s", orDefault(info.Message, "request not successful"))
	}
	return Balance{Quota: toDollars(info.Data.Quota), Used: toDollars(info.Data.UsedQuota)}, nil
}

// SignIn performs the daily check-in. A nil error means the site confirmed
// it.
func (c *Client) SignIn(ctx context.Context, apiUser string, cookies map[string]string) error {
	req, err := c.newRequest(ctx, http.MethodPost, signInPath, apiUser, cookies)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	status, body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrRejected, status)
	}
	return signInResult(body)
}

// signInResult accepts ret==1, code==0 or success==true. A body that is not
// JSON counts as success when it mentions "success".
func signInResult(body []byte) error {
	var resp map[string]interface{}
	if err := json.Unmarshal(body, &resp); err != nil {
		if strings.Contains(strings.ToLower(string(body)), "success") {
			return nil
		}
		return fmt.Errorf("%w: invalid response format", ErrRejected)
	}
	if n, ok := resp["ret"].(float64); ok && n == 1 {
		return nil
	}
	if n, ok := resp["code"].(float64); ok && n == 0 {
		return nil
	}
	if b, ok := resp["success"].(bool); ok && b {
		return nil
	}
	msg, _ := resp["msg"].(string)
	if msg == "" {
		msg, _ = resp["message"].(string)
	}
	return fmt.Errorf("%w: %s", ErrRejected, orDefault(msg, "unknown error"))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
