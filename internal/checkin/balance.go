package checkin

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strconv"
	"strings"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/result"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/state"
)

// quotaUnit converts raw API quota into dollars.
const quotaUnit = 500000

// Balance is an account's quota and usage in dollars.
type Balance struct {
	Quota float64
	Used  float64
}

func toDollars(raw float64) float64 {
	return math.Round(raw/quotaUnit*100) / 100
}

// AccountKey identifies an account in the balance store.
func AccountKey(apiUser string) string {
	sum := sha256.Sum256([]byte(apiUser))
	return hex.EncodeToString(sum[:])
}

// BalanceHash fingerprints a balance as sha256("<quota>_<used>").
func BalanceHash(b Balance) string {
	sum := sha256.Sum256([]byte(formatAmount(b.Quota) + "_" + formatAmount(b.Used)))
	return hex.EncodeToString(sum[:])
}

// formatAmount renders whole amounts with a trailing ".0", e.g. "25.0".
func formatAmount(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// DetectChange compares the current hash of key with the previous run. With
// no previous run, or no entry for key, the balance counts as unchanged.
func DetectChange(prev state.Hashes, key, hash string) result.BalanceChange {
	last, ok := prev[key]
	if !ok {
		return result.BalanceUnchanged
	}
	return result.ChangeOf(last != hash)
}
