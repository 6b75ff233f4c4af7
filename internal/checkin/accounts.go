package checkin

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/config"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
)

const (
	// AccountsEnv holds a JSON array of accounts.
	AccountsEnv = "ANYROUTER_ACCOUNTS"
	// AccountEnvPrefix marks variables holding a single account object.
	AccountEnvPrefix = "ANYROUTER_ACCOUNT_"
)

var (
	// ErrNoAccounts is returned when neither account source is configured.
	ErrNoAccounts = errors.New("no account configured: set " + AccountsEnv + " or " + AccountEnvPrefix + "<NAME>")
	// ErrInvalidAccount wraps a single malformed account entry.
	ErrInvalidAccount = errors.New("invalid account")
)

// Account is one AnyRouter login.
type Account struct {
	// Name is empty when the account has no configured name.
	Name    string
	APIUser string
	Cookies map[string]string

	// rawCookies is the configured value, used for de-duplication.
	rawCookies string
}

type accountSpec struct {
	Name    *string     `mapstructure:"name"`
	APIUser string      `mapstructure:"api_user" validate:"required"`
	Cookies interface{} `mapstructure:"cookies" validate:"required"`
}

// LoadAccounts reads ANYROUTER_ACCOUNTS and every ANYROUTER_ACCOUNT_* variable
// (in key order), drops exact duplicates and validates the rest. A source
// that is not valid JSON is logged and skipped; a malformed entry fails the
// whole load.
func LoadAccounts(src config.Source) ([]Account, error) {
	var raw []interface{}
	raw = append(raw, accountsFromArray(src)...)
	raw = append(raw, accountsFromPrefix(src)...)
	if len(raw) == 0 {
		return nil, ErrNoAccounts
	}

	v := validator.New()
	accounts := make([]Account, 0, len(raw))
	for i, r := range raw {
		a, err := parseAccount(v, r)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i+1, err)
		}
		accounts = append(accounts, a)
	}
	return dedupe(accounts), nil
}

func accountsFromArray(src config.Source) []interface{} {
	v := config.Get(src, AccountsEnv)
	if v == "" {
		return nil
	}
	var list []interface{}
	if err := json.Unmarshal([]byte(v), &list); err != nil {
		logging.Get().Error().Err(err).Str("env", AccountsEnv).Msg("account list must be a JSON array, ignoring")
		return nil
	}
	return list
}

func accountsFromPrefix(src config.Source) []interface{} {
	var out []interface{}
	for _, key := range src.Keys() {
		if !strings.HasPrefix(key, AccountEnvPrefix) {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(config.Get(src, key)), &obj); err != nil || obj == nil {
			logging.Get().Error().Err(err).Str("env", key).Msg("account must be a JSON object, ignoring")
			continue
		}
		out = append(out, obj)
	}
	return out
}

func parseAccount(v *validator.Validate, raw interface{}) (Account, error) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		return Account{}, fmt.Errorf("%w: expected an object", ErrInvalidAccount)
	}
	var spec accountSpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &spec, WeaklyTypedInput: true})
	if err != nil {
		return Account{}, err
	}
	if err := dec.Decode(m); err != nil {
		return Account{}, fmt.Errorf("%w: %v", ErrInvalidAccount, err)
	}
	if err := v.Struct(spec); err != nil {
		return Account{}, fmt.Errorf("%w: missing required fields (cookies, api_user)", ErrInvalidAccount)
	}
	if spec.Name != nil && strings.TrimSpace(*spec.Name) == "" {
		return Account{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidAccount)
	}

	cookies, rawCookies := parseCookies(spec.Cookies)
	if len(cookies) == 0 {
		return Account{}, fmt.Errorf("%w: cookies are empty", ErrInvalidAccount)
	}
	a := Account{APIUser: strings.TrimSpace(spec.APIUser), Cookies: cookies, rawCookies: rawCookies}
	if spec.Name != nil {
		a.Name = strings.TrimSpace(*spec.Name)
	}
	return a, nil
}

// parseCookies accepts "k=v; k2=v2" or an object. The second result is a
// canonical form of the input.
func parseCookies(v interface{}) (map[string]string, string) {
	out := make(map[string]string)
	switch c := v.(type) {
	case string:
		for _, part := range strings.Split(c, ";") {
			k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
			if ok && k != "" {
				out[k] = val
			}
		}
		return out, c
	case map[string]interface{}:
		for k, val := range c {
			out[k] = fmt.Sprint(val)
		}
		b, _ := json.Marshal(c)
		return out, string(b)
	}
	return out, ""
}

func dedupe(accounts []Account) []Account {
	seen := make(map[string]struct{}, len(accounts))
	out := accounts[:0]
	for _, a := range accounts {
		key := a.Name + "|" + a.rawCookies + "|" + a.APIUser
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	if removed := len(accounts) - len(out); removed > 0 {
		logging.Get().Warn().Int("removed", removed).Msg("dropped duplicate accounts")
	}
	return out
}

// cookieHeader renders cookies in a stable order.
func cookieHeader(cookies map[string]string) string {
	keys := make([]string, 0, len(cookies))
	for k := range cookies {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + cookies[k]
	}
	return strings.Join(parts, "; ")
}
