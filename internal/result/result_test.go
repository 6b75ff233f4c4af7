package result

import "testing"

func TestStatsOf(t *testing.T) {
	accounts := []AccountOutcome{
		Succeeded("a", 25, 5, BalanceChanged),
		Failed("b", "timeout"),
		Succeeded("c", 30, 10, BalanceUnchanged),
	}
	s := StatsOf(accounts)
	if s.SuccessCount != 2 || s.FailedCount != 1 || s.TotalCount != 3 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestNewStatsClamps(t *testing.T) {
	s := NewStats(-1, 2)
	if s.SuccessCount != 0 || s.TotalCount != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestOutcomeConstructors(t *testing.T) {
	ok := Succeeded("a", 1.5, 0.5, BalanceChanged)
	if !ok.IsSuccess() || !ok.HasBalance() || *ok.Quota != 1.5 || ok.Error != "" {
		t.Fatalf("unexpected success outcome: %+v", ok)
	}
	bad := Failed("b", "boom")
	if bad.IsSuccess() || bad.HasBalance() || bad.BalanceChanged.Known() {
		t.Fatalf("unexpected failed outcome: %+v", bad)
	}

	read := bad.WithBalance(3, 1, BalanceChanged)
	if read.IsSuccess() || !read.HasBalance() || *read.Quota != 3 || !read.Changed() || read.Error != "boom" {
		t.Fatalf("unexpected failed outcome with balance: %+v", read)
	}
	if bad.HasBalance() {
		t.Fatal("WithBalance must not modify the receiver")
	}
}

func TestBalanceChange(t *testing.T) {
	if ChangeOf(true) != BalanceChanged || ChangeOf(false) != BalanceUnchanged {
		t.Fatal("ChangeOf mismatch")
	}
	if BalanceUnknown.String() != "unknown" || BalanceChanged.String() != "changed" {
		t.Fatal("unexpected String()")
	}
}
