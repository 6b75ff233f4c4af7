package notify

import (
	"embed"
	"errors"
	"io/fs"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/rakuyoMo/autocheck-anyrouter/internal/config"
	"github.com/rakuyoMo/autocheck-anyrouter/internal/logging"
)

//go:embed configs/*.yaml
var bundled embed.FS

// BundledDefaults returns the default templates and settings shipped with
// the binary, one "<platform>.yaml" per platform.
func BundledDefaults() fs.FS {
	sub, err := fs.Sub(bundled, "configs")
	if err != nil {
		panic(err)
	}
	return sub
}

// Defaults is the content of one bundled default file.
type Defaults struct {
	Template         Template               `yaml:"template"`
	PlatformSettings map[string]interface{} `yaml:"platform_settings"`
}

// Loader resolves platform configurations from an injected Source and a set
// of bundled defaults.
type Loader struct {
	src      config.Source
	defaults fs.FS
	validate *validator.Validate
}

// NewLoader creates a Loader. A nil defaults FS uses the bundled files.
func NewLoader(src config.Source, defaults fs.FS) *Loader {
	if defaults == nil {
		defaults = BundledDefaults()
	}
	return &Loader{src: src, defaults: defaults, validate: validator.New()}
}

// Load returns the resolved configuration for p, or nil when the platform is
// not configured or its configuration is unusable. It never fails the run.
func (l *Loader) Load(p Platform) PlatformConfig {
	user, ok := l.userConfig(p)
	if !ok {
		return nil
	}
	def := l.loadDefaults(p.Name)

	cfg := p.newConfig()
	if err := decode(user, cfg); err != nil {
		logging.Get().Warn().Err(err).Str("platform", p.Label).Msg("invalid notification config, platform disabled")
		return nil
	}
	if err := l.validate.Struct(cfg); err != nil {
		logging.Get().Warn().Str("platform", p.Label).Str("missing", missingFields(err)).Msg("notification config incomplete, platform disabled")
		return nil
	}

	common := cfg.Common()
	common.Template = resolveTemplate(user["template"], def.Template)
	userSettings, _ := user["platform_settings"].(map[string]interface{})
	common.Settings = MergeSettings(def.PlatformSettings, userSettings)
	return cfg
}

// userConfig returns the structured user configuration for p. The second
// result is false when the platform is unconfigured.
func (l *Loader) userConfig(p Platform) (map[string]interface{}, bool) {
	raw := config.Get(l.src, p.EnvKey)
	if raw == "" {
		if p.Legacy != nil {
			return p.Legacy(func(key string) string { return config.Get(l.src, key) })
		}
		return nil, false
	}
	if m, ok := parseStructured(raw); ok {
		return m, true
	}
	if p.ScalarField == "" {
		logging.Get().Warn().Str("platform", p.Label).Str("env", p.EnvKey).Msg("notification config must be an object for this platform, platform disabled")
		return nil, false
	}
	return map[string]interface{}{p.ScalarField: raw}, true
}

// parseStructured attempts to read raw as a JSON or YAML mapping. Any parse
// failure or non-mapping result means the value is a bare scalar.
func parseStructured(raw string) (map[string]interface{}, bool) {
	var v interface{}
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	return m, ok
}

func (l *Loader) loadDefaults(name string) Defaults {
	var d Defaults
	b, err := fs.ReadFile(l.defaults, name+".yaml")
	if err != nil {
		logging.Get().Warn().Err(err).Str("platform", name).Msg("no bundled default config")
		return d
	}
	if err := yaml.Unmarshal(b, &d); err != nil {
		logging.Get().Warn().Err(err).Str("platform", name).Msg("bundled default config is invalid, ignoring")
		return Defaults{}
	}
	return d
}

func decode(input map[string]interface{}, out PlatformConfig) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       trimStrings,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func trimStrings(_ reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if s, ok := data.(string); ok && to.Kind() == reflect.String {
		return strings.TrimSpace(s), nil
	}
	return data, nil
}

func missingFields(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return strings.Join(names, ",")
}

// Handler pairs a platform with its resolved configuration and sender.
type Handler struct {
	Name     string
	Platform string
	Config   PlatformConfig
	Sender   Sender
}

// Available reports whether the handler has a configuration.
func (h Handler) Available() bool { return h.Config != nil && h.Sender != nil }

// Handlers loads every registered platform and returns a handler for each
// configured one, in registration order.
func (l *Loader) Handlers() []Handler {
	var out []Handler
	for _, p := range Platforms() {
		cfg := l.Load(p)
		if cfg == nil {
			continue
		}
		out = append(out, Handler{Name: p.Label, Platform: p.Name, Config: cfg, Sender: p.newSender(cfg)})
	}
	return out
}
