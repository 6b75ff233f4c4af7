package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/checkin"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/config"
)

// This integration test is skipped by default. To run it locally, set
// RUN_ANYROUTER_INTEGRATION=1 together with ANYROUTER_ACCOUNTS (and
// optionally ANYROUTER_BASE_URL). It only reads balances; it never checks in.
func TestLiveBalanceLookup(t *testing.T) {
	if os.Getenv("RUN_ANYROUTER_INTEGRATION") != "1" {
		t.Skip("skipping integration test; set RUN_ANYROUTER_INTEGRATION=1 to enable")
	}

	src := config.OSEnv()
	cfg := config.DefaultConfig()
	if err := config.ApplyEnvOverrides(cfg, src); err != nil {
		t.Fatalf("invalid environment: %v", err)
	}
	accounts, err := checkin.LoadAccounts(src)
	if err != nil {
		t.Fatalf("load accounts: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := checkin.NewClient(cfg.BaseURL, cfg.RequestTimeout)
	cookies := checkin.NewHTTPCookieProvider(cfg.BaseURL, cfg.RequestTimeout)
	for i, a := range accounts {
		waf, err := cookies.WAFCookies(ctx, checkin.FullName(a, i))
		if err != nil {
			t.Fatalf("account %d: waf cookies: %v", i+1, err)
		}
		merged := make(map[string]string, len(waf)+len(a.Cookies))
		for k, v := range waf {
			merged[k] = v
		}
		for k, v := range a.Cookies {
			merged[k] = v
		}
		bal, err := client.UserInfo(ctx, a.APIUser, merged)
		if err != nil {
			t.Fatalf("account %d: user info: %v", i+1, err)
		}
		if bal.Quota < 0 || bal.Used < 0 {
			t.Fatalf("account %d: unexpected balance %+v", i+1, bal)
		}
	}
}
