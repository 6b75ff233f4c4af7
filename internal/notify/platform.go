package notify

// Config is the part of every platform configuration that the loader
// resolves from bundled defaults.
type Config struct {
	Settings Settings `mapstructure:"-"`
	Template Template `mapstructure:"-"`
}

// Common exposes the shared part of a platform configuration.
func (c *Config) Common() *Config { return c }

// PlatformConfig is implemented by every typed platform configuration.
type PlatformConfig interface {
	Common() *Config
}

// EmailConfig configures SMTP delivery.
type EmailConfig struct {
	Config `mapstructure:"-"`
	User   string `mapstructure:"user" validate:"required"`
	Pass   string `mapstructure:"pass" validate:"required"`
	To     string `mapstructure:"to" validate:"required"`
	// SMTPServer defaults to smtp.<domain of User>.
	SMTPServer string `mapstructure:"smtp_server"`
	SMTPPort   int    `mapstructure:"smtp_port"`
}

// WebhookConfig is shared by the platforms addressed by a single URL.
type WebhookConfig struct {
	Config  `mapstructure:"-"`
	Webhook string `mapstructure:"webhook" validate:"required"`
}

// URLConfig is used by gateways taking a plain endpoint URL.
type URLConfig struct {
	Config `mapstructure:"-"`
	URL    string `mapstructure:"url" validate:"required"`
}

type PushPlusConfig struct {
	Config `mapstructure:"-"`
	Token  string `mapstructure:"token" validate:"required"`
}

type ServerPushConfig struct {
	Config  `mapstructure:"-"`
	SendKey string `mapstructure:"send_key" validate:"required"`
}

type BarkConfig struct {
	Config    `mapstructure:"-"`
	ServerURL string `mapstructure:"server_url" validate:"required"`
	DeviceKey string `mapstructure:"device_key" validate:"required"`
}

type TelegramConfig struct {
	Config   `mapstructure:"-"`
	BotToken string `mapstructure:"bot_token" validate:"required"`
	ChatID   string `mapstructure:"chat_id" validate:"required"`
}

type GotifyConfig struct {
	Config    `mapstructure:"-"`
	ServerURL string `mapstructure:"server_url" validate:"required"`
	Token     string `mapstructure:"token" validate:"required"`
}

type PushoverConfig struct {
	Config `mapstructure:"-"`
	User   string `mapstructure:"user" validate:"required"`
	Token  string `mapstructure:"token" validate:"required"`
}

type MastodonConfig struct {
	Config      `mapstructure:"-"`
	ServerURL   string `mapstructure:"server_url" validate:"required"`
	AccessToken string `mapstructure:"access_token" validate:"required"`
}

// Platform describes one messaging channel known to the loader.
type Platform struct {
	// Name keys the bundled default file and metric labels.
	Name string
	// Label is what operators see in logs.
	Label  string
	EnvKey string
	// ScalarField receives a bare (non-structured) env value. Platforms
	// without one reject the scalar form.
	ScalarField string
	// Legacy reads the historic environment layout when EnvKey is unset.
	Legacy    func(env lookupFunc) (map[string]interface{}, bool)
	newConfig func() PlatformConfig
	newSender func(PlatformConfig) Sender
}

type lookupFunc func(key string) string

// Platforms returns the known platforms in registration order.
func Platforms() []Platform {
	return []Platform{
		{
			Name: "email", Label: "Email", EnvKey: "EMAIL_NOTIF_CONFIG",
			Legacy:    legacyEmail,
			newConfig: func() PlatformConfig { return &EmailConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Email{cfg: c.(*EmailConfig)} },
		},
		{
			Name: "pushplus", Label: "PushPlus", EnvKey: "PUSHPLUS_NOTIF_CONFIG", ScalarField: "token",
			Legacy:    legacyScalar("PUSHPLUS_TOKEN", "token"),
			newConfig: func() PlatformConfig { return &PushPlusConfig{} },
			newSender: func(c PlatformConfig) Sender { return &PushPlus{cfg: c.(*PushPlusConfig)} },
		},
		{
			Name: "serverpush", Label: "ServerChan", EnvKey: "SERVERPUSH_NOTIF_CONFIG", ScalarField: "send_key",
			Legacy:    legacyScalar("SERVERPUSHKEY", "send_key"),
			newConfig: func() PlatformConfig { return &ServerPushConfig{} },
			newSender: func(c PlatformConfig) Sender { return &ServerPush{cfg: c.(*ServerPushConfig)} },
		},
		{
			Name: "dingtalk", Label: "DingTalk", EnvKey: "DINGTALK_NOTIF_CONFIG", ScalarField: "webhook",
			Legacy:    legacyScalar("DINGDING_WEBHOOK", "webhook"),
			newConfig: func() PlatformConfig { return &WebhookConfig{} },
			newSender: func(c PlatformConfig) Sender { return &DingTalk{cfg: c.(*WebhookConfig)} },
		},
		{
			Name: "feishu", Label: "Feishu", EnvKey: "FEISHU_NOTIF_CONFIG", ScalarField: "webhook",
			Legacy:    legacyScalar("FEISHU_WEBHOOK", "webhook"),
			newConfig: func() PlatformConfig { return &WebhookConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Feishu{cfg: c.(*WebhookConfig)} },
		},
		{
			Name: "wecom", Label: "WeCom", EnvKey: "WECOM_NOTIF_CONFIG", ScalarField: "webhook",
			Legacy:    legacyScalar("WEIXIN_WEBHOOK", "webhook"),
			newConfig: func() PlatformConfig { return &WebhookConfig{} },
			newSender: func(c PlatformConfig) Sender { return &WeCom{cfg: c.(*WebhookConfig)} },
		},
		{
			Name: "bark", Label: "Bark", EnvKey: "BARK_NOTIF_CONFIG",
			newConfig: func() PlatformConfig { return &BarkConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Bark{cfg: c.(*BarkConfig)} },
		},
		{
			Name: "telegram", Label: "Telegram", EnvKey: "TELEGRAM_NOTIF_CONFIG",
			newConfig: func() PlatformConfig { return &TelegramConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Telegram{cfg: c.(*TelegramConfig)} },
		},
		{
			Name: "slack", Label: "Slack", EnvKey: "SLACK_NOTIF_CONFIG", ScalarField: "webhook",
			newConfig: func() PlatformConfig { return &WebhookConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Slack{cfg: c.(*WebhookConfig)} },
		},
		{
			Name: "discord", Label: "Discord", EnvKey: "DISCORD_NOTIF_CONFIG", ScalarField: "webhook",
			newConfig: func() PlatformConfig { return &WebhookConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Discord{cfg: c.(*WebhookConfig)} },
		},
		{
			Name: "teams", Label: "Teams", EnvKey: "TEAMS_NOTIF_CONFIG", ScalarField: "webhook",
			newConfig: func() PlatformConfig { return &WebhookConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Teams{cfg: c.(*WebhookConfig)} },
		},
		{
			Name: "gotify", Label: "Gotify", EnvKey: "GOTIFY_NOTIF_CONFIG",
			newConfig: func() PlatformConfig { return &GotifyConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Gotify{cfg: c.(*GotifyConfig)} },
		},
		{
			Name: "pushover", Label: "Pushover", EnvKey: "PUSHOVER_NOTIF_CONFIG",
			newConfig: func() PlatformConfig { return &PushoverConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Pushover{cfg: c.(*PushoverConfig)} },
		},
		{
			Name: "mastodon", Label: "Mastodon", EnvKey: "MASTODON_NOTIF_CONFIG",
			newConfig: func() PlatformConfig { return &MastodonConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Mastodon{cfg: c.(*MastodonConfig)} },
		},
		{
			Name: "apprise", Label: "Apprise", EnvKey: "APPRISE_NOTIF_CONFIG", ScalarField: "url",
			newConfig: func() PlatformConfig { return &URLConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Apprise{cfg: c.(*URLConfig)} },
		},
		{
			Name: "webhook", Label: "Webhook", EnvKey: "WEBHOOK_NOTIF_CONFIG", ScalarField: "url",
			newConfig: func() PlatformConfig { return &URLConfig{} },
			newSender: func(c PlatformConfig) Sender { return &Webhook{cfg: c.(*URLConfig)} },
		},
	}
}

// PlatformByName returns the registered platform with the given name.
func PlatformByName(name string) (Platform, bool) {
	for _, p := range Platforms() {
		if p.Name == name {
			return p, true
		}
	}
	return Platform{}, false
}

func legacyScalar(env, field string) func(lookupFunc) (map[string]interface{}, bool) {
	return func(get lookupFunc) (map[string]interface{}, bool) {
		v := get(env)
		if v == "" {
			return nil, false
		}
		return map[string]interface{}{field: v}, true
	}
}

func legacyEmail(get lookupFunc) (map[string]interface{}, bool) {
	user, pass, to := get("EMAIL_USER"), get("EMAIL_PASS"), get("EMAIL_TO")
	if user == "" && pass == "" && to == "" {
		return nil, false
	}
	m := map[string]interface{}{"user": user, "pass": pass, "to": to}
	if server := get("EMAIL_SMTP_SERVER"); server != "" {
		m["smtp_server"] = server
	}
	return m, true
}
