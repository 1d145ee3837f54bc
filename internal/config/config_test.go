package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/watchdog/internal/domain"
)

const sampleYAML = `
targets:
  - name: "svc-a"
    url: "https://svc-a.example.com/health"
    method: get
    expected_status: 200
    timeout: 5
    contains: "ok"
    alert_channels: [chat, email, sms]

  - name: "svc-b"
    url: "https://svc-b.example.com"
    enabled: false
    alert_channels: [chat]

  - name: "broken"
    url: "not a url"

  - url: "https://nameless.example.com"

alerts:
  chat:
    channel: "#alerts"
    webhook: "https://hooks.example.com/T000/B000"
  email:
    recipients: ["ops@example.com"]
    escalate_after: 3
  sms:
    enabled: false
    recipients: ["+15551234567"]
    escalate_after: 5
    method: "email_gateway"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "targets.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_ParsesTargetsAndSkipsMalformed(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML), zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// "broken" and the nameless target are skipped, two remain
	if len(cfg.Targets) != 2 {
		t.Fatalf("want 2 targets, got %d: %+v", len(cfg.Targets), cfg.Targets)
	}

	a := cfg.Targets[0]
	if a.Name != "svc-a" || a.Method != "GET" || a.ExpectedStatus != 200 {
		t.Fatalf("svc-a wrong: %+v", a)
	}
	if a.Timeout != 5*time.Second || a.Contains != "ok" || !a.Enabled {
		t.Fatalf("svc-a fields wrong: %+v", a)
	}
	if len(a.Channels) != 3 {
		t.Fatalf("svc-a channels wrong: %+v", a.Channels)
	}
	// ordered with resolved thresholds: chat first-alert, email 3, sms 5
	if a.Channels[0].Channel != domain.ChannelChat || a.Channels[0].EscalateAfter != 1 {
		t.Fatalf("chat threshold wrong: %+v", a.Channels[0])
	}
	if a.Channels[1].EscalateAfter != 3 || a.Channels[2].EscalateAfter != 5 {
		t.Fatalf("escalation thresholds wrong: %+v", a.Channels)
	}

	b := cfg.Targets[1]
	if b.Name != "svc-b" || b.Enabled {
		t.Fatalf("svc-b should be disabled: %+v", b)
	}
	if b.Timeout != 10*time.Second || b.ExpectedStatus != 200 {
		t.Fatalf("svc-b defaults wrong: %+v", b)
	}
}

func TestLoad_AlertsSection(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML), zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.ChatEnabled() || !cfg.EmailEnabled() {
		t.Fatal("chat/email default to enabled")
	}
	if cfg.SMSEnabled() {
		t.Fatal("sms explicitly disabled")
	}
	if cfg.ChatWebhook() != "https://hooks.example.com/T000/B000" {
		t.Fatalf("chat webhook wrong: %q", cfg.ChatWebhook())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.example.com/env-wins")
	t.Setenv("CHECK_INTERVAL_SECONDS", "30")
	t.Setenv("MAX_CONCURRENT_CHECKS", "8")
	t.Setenv("ADDR", ":9090")
	t.Setenv("PUBLIC_API_KEYS", "pub_a, pub_b")
	t.Setenv("ADMIN_API_KEYS", "adm_x")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USER", "bot@example.com")
	t.Setenv("EMAIL_FROM", "")

	cfg, err := Load(writeConfig(t, sampleYAML), zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChatWebhook() != "https://hooks.example.com/env-wins" {
		t.Fatalf("env webhook should win: %q", cfg.ChatWebhook())
	}
	if cfg.Interval != 30*time.Second || cfg.Concurrency != 8 || cfg.Addr != ":9090" {
		t.Fatalf("env runtime settings wrong: %+v", cfg)
	}
	if len(cfg.PublicAPIKeys) != 2 || cfg.PublicAPIKeys[1] != "pub_b" {
		t.Fatalf("public keys wrong: %+v", cfg.PublicAPIKeys)
	}
	if cfg.EmailFrom != "bot@example.com" {
		t.Fatalf("EMAIL_FROM should default to SMTP_USER, got %q", cfg.EmailFrom)
	}
}

func TestLoad_NoUsableTargetsIsFatal(t *testing.T) {
	_, err := Load(writeConfig(t, `
targets:
  - name: "broken"
    url: "::::"
`), zap.NewNop())
	if err == nil {
		t.Fatal("expected error for zero usable targets")
	}
}

func TestLoad_UnknownChannelSkipsTarget(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
targets:
  - name: "svc-a"
    url: "https://a.example.com"
    alert_channels: [pager]
  - name: "svc-b"
    url: "https://b.example.com"
    alert_channels: [chat]
`), zap.NewNop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Name != "svc-b" {
		t.Fatalf("unknown channel should skip only that target: %+v", cfg.Targets)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), zap.NewNop()); err == nil {
		t.Fatal("expected error for missing file")
	}
}
