package notify

// DefaultLegacyTitle is used when a legacy string template is given and the
// bundled default has no title either.
const DefaultLegacyTitle = "AnyRouter 签到提醒"

// Template is a (title, content) pair of template strings. An empty Title
// means the notification carries no title.
type Template struct {
	Title   string `yaml:"title" mapstructure:"title"`
	Content string `yaml:"content" mapstructure:"content"`
}

// IsZero reports whether neither half is set.
func (t Template) IsZero() bool { return t.Title == "" && t.Content == "" }

// resolveTemplate merges a user supplied template value over the bundled
// default. Title and content are resolved independently: a key that is
// missing or null inherits the default, a present string (even empty) wins.
// A bare string is the legacy form and replaces the content only.
func resolveTemplate(user interface{}, def Template) Template {
	switch v := user.(type) {
	case nil:
		return def
	case string:
		out := Template{Title: def.Title, Content: v}
		if out.Title == "" {
			out.Title = DefaultLegacyTitle
		}
		return out
	case map[string]interface{}:
		out := def
		if s, ok := stringField(v, "title"); ok {
			out.Title = s
		}
		if s, ok := stringField(v, "content"); ok {
			out.Content = s
		}
		return out
	}
	return def
}

// stringField reports the string value under key, ignoring missing and null
// entries. Scalars of other kinds are formatted as strings.
func stringField(m map[string]interface{}, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return toString(v), true
}
