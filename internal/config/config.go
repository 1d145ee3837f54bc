package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/watchdog/internal/domain"
)

// Defaults for escalation thresholds when the config leaves them out. The
// first channel of a target's list always fires on the first failure.
const (
	defaultEmailEscalateAfter = 3
	defaultSMSEscalateAfter   = 5
	defaultTimeout            = 10 * time.Second
	defaultExpectedStatus     = 200
)

// File is the YAML shape of the targets/alerts config.
type File struct {
	Targets []TargetDef `yaml:"targets"`
	Alerts  AlertsDef   `yaml:"alerts"`
}

type TargetDef struct {
	Name           string   `yaml:"name"`
	URL            string   `yaml:"url"`
	Method         string   `yaml:"method"`
	ExpectedStatus int      `yaml:"expected_status"`
	TimeoutSeconds int      `yaml:"timeout"`
	Contains       string   `yaml:"contains"`
	Enabled        *bool    `yaml:"enabled"` // default true
	AlertChannels  []string `yaml:"alert_channels"`
}

type AlertsDef struct {
	Chat  ChatDef  `yaml:"chat"`
	Email EmailDef `yaml:"email"`
	SMS   SMSDef   `yaml:"sms"`
}

type ChatDef struct {
	Enabled *bool  `yaml:"enabled"`
	Webhook string `yaml:"webhook"`
	Channel string `yaml:"channel"`
}

type EmailDef struct {
	Enabled       *bool    `yaml:"enabled"`
	Recipients    []string `yaml:"recipients"`
	EscalateAfter int      `yaml:"escalate_after"`
}

type SMSDef struct {
	Enabled       *bool    `yaml:"enabled"`
	Recipients    []string `yaml:"recipients"`
	EscalateAfter int      `yaml:"escalate_after"`
	Method        string   `yaml:"method"` // "twilio" or "email_gateway"
}

// Config is the fully resolved configuration for one process: validated
// targets from YAML plus runtime settings and credentials from env. Treated
// as immutable once loaded; reload builds a new value.
type Config struct {
	Targets []domain.Target
	Alerts  AlertsDef

	// runtime, from env
	Addr        string
	LogDir      string
	DatabaseURL string
	Interval    time.Duration
	Concurrency int

	PublicAPIKeys []string
	AdminAPIKeys  []string

	// channel credentials, from env
	SlackWebhook string // overrides alerts.chat.webhook when set
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	EmailFrom    string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	SMSEmailGateway  string
}

// Load reads the YAML targets file and the environment. Malformed targets
// are skipped with a warning; zero usable targets is a hard error.
// A .env file next to the process is honored if present.
func Load(path string, log *zap.Logger) (*Config, error) {
	_ = godotenv.Load()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConfig, path, err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfig, path, err)
	}

	cfg := &Config{Alerts: f.Alerts}
	for _, def := range f.Targets {
		t, err := def.normalize(f.Alerts)
		if err != nil {
			log.Warn("target_skipped",
				zap.String("name", def.Name),
				zap.String("url", def.URL),
				zap.Error(err),
			)
			continue
		}
		cfg.Targets = append(cfg.Targets, *t)
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("%w: no usable targets in %s", domain.ErrConfig, path)
	}

	cfg.fromEnv()
	return cfg, nil
}

func (d TargetDef) normalize(alerts AlertsDef) (*domain.Target, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("name required")
	}
	if d.URL == "" {
		return nil, fmt.Errorf("url required")
	}
	u, err := url.Parse(d.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", d.URL)
	}

	t := &domain.Target{
		Name:           d.Name,
		URL:            d.URL,
		Method:         strings.ToUpper(d.Method),
		ExpectedStatus: d.ExpectedStatus,
		Contains:       d.Contains,
		Enabled:        d.Enabled == nil || *d.Enabled,
	}
	if t.Method == "" {
		t.Method = "GET"
	}
	if t.ExpectedStatus == 0 {
		t.ExpectedStatus = defaultExpectedStatus
	}
	t.Timeout = defaultTimeout
	if d.TimeoutSeconds > 0 {
		t.Timeout = time.Duration(d.TimeoutSeconds) * time.Second
	}

	for i, name := range d.AlertChannels {
		ch := domain.Channel(strings.ToLower(name))
		if !ch.Valid() {
			return nil, fmt.Errorf("unknown alert channel %q", name)
		}
		t.Channels = append(t.Channels, domain.ChannelConfig{
			Channel:       ch,
			EscalateAfter: escalateAfter(ch, i, alerts),
		})
	}
	return t, nil
}

// escalateAfter resolves the threshold for one channel entry: first channel
// fires immediately, the rest use their alerts-section threshold or the
// channel default.
func escalateAfter(ch domain.Channel, idx int, alerts AlertsDef) int {
	if idx == 0 {
		return 1
	}
	switch ch {
	case domain.ChannelEmail:
		if alerts.Email.EscalateAfter > 0 {
			return alerts.Email.EscalateAfter
		}
		return defaultEmailEscalateAfter
	case domain.ChannelSMS:
		if alerts.SMS.EscalateAfter > 0 {
			return alerts.SMS.EscalateAfter
		}
		return defaultSMSEscalateAfter
	default:
		return 1
	}
}

func (c *Config) fromEnv() {
	c.Addr = getenv("ADDR", "")
	c.LogDir = getenv("LOG_DIR", "logs")
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.Interval = time.Duration(getenvInt("CHECK_INTERVAL_SECONDS", 60)) * time.Second
	c.Concurrency = getenvInt("MAX_CONCURRENT_CHECKS", 4)
	c.PublicAPIKeys = splitKeys(os.Getenv("PUBLIC_API_KEYS"))
	c.AdminAPIKeys = splitKeys(os.Getenv("ADMIN_API_KEYS"))

	c.SlackWebhook = os.Getenv("SLACK_WEBHOOK_URL")
	c.SMTPHost = os.Getenv("SMTP_HOST")
	c.SMTPPort = getenvInt("SMTP_PORT", 587)
	c.SMTPUser = os.Getenv("SMTP_USER")
	c.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	c.EmailFrom = getenv("EMAIL_FROM", c.SMTPUser)

	c.TwilioAccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	c.TwilioAuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.TwilioFromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	c.SMSEmailGateway = os.Getenv("SMS_EMAIL_GATEWAY")
}

// ChatWebhook is the effective chat webhook: env wins over YAML.
func (c *Config) ChatWebhook() string {
	if c.SlackWebhook != "" {
		return c.SlackWebhook
	}
	return c.Alerts.Chat.Webhook
}

func enabled(b *bool) bool { return b == nil || *b }

// ChatEnabled etc. report whether the alerts section enables a channel;
// absent means enabled (matching the targets' enabled default).
func (c *Config) ChatEnabled() bool  { return enabled(c.Alerts.Chat.Enabled) }
func (c *Config) EmailEnabled() bool { return enabled(c.Alerts.Email.Enabled) }
func (c *Config) SMSEnabled() bool   { return enabled(c.Alerts.SMS.Enabled) }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func splitKeys(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
