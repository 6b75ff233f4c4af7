package notify

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
)

// noValue is what text/template prints for a missing map key.
const noValue = "<no value>"

// Render evaluates text as a text/template against vars. A missing variable
// renders as an empty string, and literal "\n" sequences in the output
// become real line breaks.
func Render(name, text string, vars Context) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]interface{}(vars)); err != nil {
		return "", err
	}
	return unescapeNewlines(strings.ReplaceAll(buf.String(), noValue, "")), nil
}

func unescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// RenderTemplate renders title and content independently. A field that
// fails to render falls back to its raw template text; an empty title stays
// empty. Errors are logged, never returned.
func RenderTemplate(t Template, vars Context) (title, content string) {
	return renderField("title", t.Title, vars), renderField("content", t.Content, vars)
}

func renderField(field, text string, vars Context) string {
	if text == "" {
		return ""
	}
	out, err := Render(field, text, vars)
	if err != nil {
		logging.Get().Error().Err(err).Str("field", field).Msg("template render failed, using raw template")
		return text
	}
	return out
}
