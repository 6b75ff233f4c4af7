// Package result holds the outcome of one check-in run.
package result

// Status of a single account check-in.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// BalanceChange is a tri-state: the zero value means the balance could not
// be determined for this run.
type BalanceChange int

const (
	BalanceUnknown BalanceChange = iota
	BalanceUnchanged
	BalanceChanged
)

func (b BalanceChange) String() string {
	switch b {
	case BalanceChanged:
		return "changed"
	case BalanceUnchanged:
		return "unchanged"
	}
	return "unknown"
}

// Known reports whether the change could be determined.
func (b BalanceChange) Known() bool { return b != BalanceUnknown }

// ChangeOf converts a boolean comparison into a known BalanceChange.
func ChangeOf(changed bool) BalanceChange {
	if changed {
		return BalanceChanged
	}
	return BalanceUnchanged
}

// AccountOutcome is one account's result for a run.
type AccountOutcome struct {
	Name   string
	Status Status
	// Quota and Used are set whenever the balance could be read, including
	// on a failed check-in.
	Quota          *float64
	Used           *float64
	BalanceChanged BalanceChange
	// Error is set only on failure.
	Error string
}

// Succeeded returns a success outcome carrying the given balance.
func Succeeded(name string, quota, used float64, change BalanceChange) AccountOutcome {
	return AccountOutcome{Name: name, Status: StatusSuccess, Quota: &quota, Used: &used, BalanceChanged: change}
}

// Failed returns a failure outcome with no balance. Use WithBalance when the
// balance was still read.
func Failed(name, reason string) AccountOutcome {
	return AccountOutcome{Name: name, Status: StatusFailed, Error: reason}
}

// WithBalance returns a copy of a carrying the given balance and change.
func (a AccountOutcome) WithBalance(quota, used float64, change BalanceChange) AccountOutcome {
	a.Quota, a.Used, a.BalanceChanged = &quota, &used, change
	return a
}

func (a AccountOutcome) IsSuccess() bool { return a.Status == StatusSuccess }

// Changed reports whether the balance is known to have changed since the
// previous run.
func (a AccountOutcome) Changed() bool { return a.BalanceChanged == BalanceChanged }

// HasBalance reports whether both quota and used are present.
func (a AccountOutcome) HasBalance() bool { return a.Quota != nil && a.Used != nil }

// RunStats are aggregate counters; TotalCount always equals SuccessCount+FailedCount.
type RunStats struct {
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
	TotalCount   int `json:"total_count"`
}

// NewStats builds consistent counters from explicit success/failure counts.
// Negative inputs are clamped to zero.
func NewStats(success, failed int) RunStats {
	success = max(success, 0)
	failed = max(failed, 0)
	return RunStats{SuccessCount: success, FailedCount: failed, TotalCount: success + failed}
}

// StatsOf counts the outcomes by status.
func StatsOf(accounts []AccountOutcome) RunStats {
	success := 0
	for _, a := range accounts {
		if a.IsSuccess() {
			success++
		}
	}
	return NewStats(success, len(accounts)-success)
}

// RunResult is the data handed to notification dispatch.
type RunResult struct {
	Timestamp string
	Timezone  string
	Accounts  []AccountOutcome
	Stats     RunStats
}

// New builds a RunResult whose stats are derived from accounts.
func New(timestamp string, accounts []AccountOutcome) RunResult {
	return RunResult{Timestamp: timestamp, Accounts: accounts, Stats: StatsOf(accounts)}
}
