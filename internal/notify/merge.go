package notify

import (
	"fmt"
	"strconv"
	"strings"
)

// Settings is the free-form platform_settings map.
type Settings map[string]interface{}

// MergeSettings deep-merges src on top of dst and returns a new map. Nested
// maps merge key by key; any other value in src overwrites dst. Neither
// input is modified.
func MergeSettings(dst, src map[string]interface{}) Settings {
	out := make(Settings, len(dst)+len(src))
	for k, v := range dst {
		out[k] = cloneValue(v)
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]interface{})
		dstMap, dstIsMap := out[k].(map[string]interface{})
		if srcIsMap && dstIsMap {
			out[k] = map[string]interface{}(MergeSettings(dstMap, srcMap))
			continue
		}
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return map[string]interface{}(MergeSettings(nil, m))
	}
	return v
}

// Lookup returns the value at a dotted path such as "alert.sound".
func (s Settings) Lookup(path string) (interface{}, bool) {
	var cur interface{} = map[string]interface{}(s)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// String returns the value at path as a string, or def when unset or empty.
func (s Settings) String(path, def string) string {
	v, ok := s.Lookup(path)
	if !ok {
		return def
	}
	if str := strings.TrimSpace(toString(v)); str != "" {
		return str
	}
	return def
}

// Bool returns the value at path as a bool. Strings like "true" and "0" are
// accepted; anything unparsable yields def.
func (s Settings) Bool(path string, def bool) bool {
	v, ok := s.Lookup(path)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(b)); err == nil {
			return parsed
		}
	case int:
		return b != 0
	}
	return def
}

// Int returns the value at path as an int, or def.
func (s Settings) Int(path string, def int) int {
	v, ok := s.Lookup(path)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return parsed
		}
	}
	return def
}

// Map returns the nested settings at path, or nil.
func (s Settings) Map(path string) Settings {
	v, ok := s.Lookup(path)
	if !ok {
		return nil
	}
	m, _ := asMap(v)
	return m
}

func asMap(v interface{}) (Settings, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Settings:
		return m, true
	}
	return nil, false
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
