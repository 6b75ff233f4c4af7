package notify

import (
	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
)

// Trigger is a condition under which a run sends notifications.
type Trigger string

const (
	TriggerBalanceChanged Trigger = "balance_changed"
	TriggerFailed         Trigger = "failed"
	TriggerSuccess        Trigger = "success"
	TriggerAlways         Trigger = "always"
	TriggerNever          Trigger = "never"
)

var knownTriggers = map[Trigger]bool{
	TriggerBalanceChanged: true,
	TriggerFailed:         true,
	TriggerSuccess:        true,
	TriggerAlways:         true,
	TriggerNever:          true,
}

// Triggers is the set of enabled notification triggers.
type Triggers map[Trigger]bool

// DefaultTriggers notifies on balance changes (including the first run) and
// on failures.
func DefaultTriggers() Triggers {
	return Triggers{TriggerBalanceChanged: true, TriggerFailed: true}
}

// ParseTriggers builds a trigger set from normalized names. Unknown names
// are logged and skipped; an empty result yields the defaults.
func ParseTriggers(names []string) Triggers {
	t := Triggers{}
	for _, n := range names {
		tr := Trigger(n)
		if !knownTriggers[tr] {
			logging.Get().Warn().Str("trigger", n).Msg("unknown notify trigger, ignoring")
			continue
		}
		t[tr] = true
	}
	if len(t) == 0 {
		if len(names) > 0 {
			logging.Get().Warn().Msg("no valid notify trigger configured, using defaults")
		}
		return DefaultTriggers()
	}
	return t
}

// Signals summarizes a run for trigger evaluation.
type Signals struct {
	HasSuccess        bool
	HasFailed         bool
	HasBalanceChanged bool
	FirstRun          bool
}

// ShouldNotify reports whether any enabled trigger matches. "never" wins
// over everything, "always" over the rest.
func (t Triggers) ShouldNotify(s Signals) bool {
	if t[TriggerNever] {
		return false
	}
	if t[TriggerAlways] {
		return true
	}
	return len(t.Reasons(s)) > 0
}

// Reasons lists why a run matches the enabled triggers.
func (t Triggers) Reasons(s Signals) []string {
	var reasons []string
	if t[TriggerBalanceChanged] && s.FirstRun {
		reasons = append(reasons, "first_run")
	}
	if t[TriggerBalanceChanged] && s.HasBalanceChanged {
		reasons = append(reasons, "balance_changed")
	}
	if t[TriggerFailed] && s.HasFailed {
		reasons = append(reasons, "failed")
	}
	if t[TriggerSuccess] && s.HasSuccess {
		reasons = append(reasons, "success")
	}
	return reasons
}
