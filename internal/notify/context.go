package notify

import "github.com/rakuyoMo/autocheck-anyrouter/internal/result"

// Context is the flat variable set a template is rendered against.
type Context map[string]interface{}

// BuildContext projects a run result into template variables.
//
// The outcome flags are derived from run.Stats only: callers may pass a
// partial account list, and the counters stay authoritative.
func BuildContext(run result.RunResult) Context {
	var success, failed, changed, unchanged []result.AccountOutcome
	for _, a := range run.Accounts {
		if a.IsSuccess() {
			success = append(success, a)
		} else {
			failed = append(failed, a)
		}
		switch a.BalanceChanged {
		case result.BalanceChanged:
			changed = append(changed, a)
		case result.BalanceUnchanged:
			unchanged = append(unchanged, a)
		}
	}

	stats := run.Stats
	hasSuccess := stats.SuccessCount > 0
	hasFailed := stats.FailedCount > 0
	determinable := len(changed) + len(unchanged)

	return Context{
		"timestamp":        run.Timestamp,
		"timezone":         run.Timezone,
		"stats":            stats,
		"accounts":         nonNil(run.Accounts),
		"success_accounts": nonNil(success),
		"failed_accounts":  nonNil(failed),

		"has_success":     hasSuccess,
		"has_failed":      hasFailed,
		"all_success":     hasSuccess && !hasFailed,
		"all_failed":      hasFailed && !hasSuccess,
		"partial_success": hasSuccess && hasFailed,

		"balance_changed_accounts":   nonNil(changed),
		"balance_unchanged_accounts": nonNil(unchanged),
		"has_balance_changed":        len(changed) > 0,
		"has_balance_unchanged":      len(unchanged) > 0,
		"all_balance_changed":        determinable > 0 && len(unchanged) == 0,
		"all_balance_unchanged":      determinable > 0 && len(changed) == 0,
	}
}

func nonNil(a []result.AccountOutcome) []result.AccountOutcome {
	if a == nil {
		return []result.AccountOutcome{}
	}
	return a
}

// Bool returns the boolean variable key, false when missing.
func (c Context) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}
