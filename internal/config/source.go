package config

import (
	"os"
	"sort"
	"strings"
)

// Source is a read-only view of environment-style configuration.
// The process environment is the production source; tests pass a MapSource.
type Source interface {
	Lookup(key string) (string, bool)
	Keys() []string
}

type osEnv struct{}

// OSEnv returns a Source backed by the process environment.
func OSEnv() Source { return osEnv{} }

func (osEnv) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

func (osEnv) Keys() []string {
	env := os.Environ()
	keys := make([]string, 0, len(env))
	for _, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// MapSource is an in-memory Source.
type MapSource map[string]string

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapSource) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the trimmed value of key, or "" when unset.
func Get(src Source, key string) string {
	v, _ := src.Lookup(key)
	return strings.TrimSpace(v)
}
