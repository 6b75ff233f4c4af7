package checkin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/config"
)

// Privacy decides how account names and balances appear in logs and the
// step summary. Notifications always carry full names.
type Privacy struct {
	ShowSensitive bool
}

// NewPrivacy resolves, in order: SHOW_SENSITIVE_INFO, ACTIONS_RUNNER_DEBUG,
// REPO_VISIBILITY (public hides), then shows by default.
func NewPrivacy(cfg *config.Config) Privacy {
	if v := strings.TrimSpace(cfg.ShowSensitiveInfo); v != "" {
		return Privacy{ShowSensitive: strings.EqualFold(v, "true")}
	}
	if cfg.ActionsRunnerDebug {
		return Privacy{ShowSensitive: true}
	}
	if v := strings.TrimSpace(cfg.RepoVisibility); v != "" {
		return Privacy{ShowSensitive: !strings.EqualFold(v, "public")}
	}
	return Privacy{ShowSensitive: true}
}

// FullName is the configured name, or "账号 N" (1-based) for unnamed
// accounts.
func FullName(a Account, index int) string {
	if a.Name == "" {
		return defaultName(index)
	}
	return a.Name
}

func defaultName(index int) string {
	return fmt.Sprintf("账号 %d", index+1)
}

// SafeName is FullName, redacted to its first character plus four hex
// digits of its SHA-256 when sensitive info is hidden. Default names are
// never redacted.
func (p Privacy) SafeName(a Account, index int) string {
	name := FullName(a, index)
	if p.ShowSensitive || a.Name == "" {
		return name
	}
	first, _ := utf8.DecodeRuneInString(name)
	sum := sha256.Sum256([]byte(name))
	return string(first) + hex.EncodeToString(sum[:])[:4]
}
