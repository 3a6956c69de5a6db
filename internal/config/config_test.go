package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meetlens/internal/classify"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != "127.0.0.1:8080" || cfg.Preferences.MeetingsPerPage != 20 || cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoadReadsFileAndNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
listen: ":9090"
timezone: "UTC"
ics:
  - url: "https://example.com/a.ics"
outlook:
  base_url: "https://outlook.example.com/api"
  token: "tok"
  timeout: 10s
preferences:
  meetings_per_page: 50
  theme: neon
  classification_rules:
    noFlex:
      keywords: ["urgent"]
    priority: ["noFlex", "flex"]
    defaultColor: "blue"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen != ":9090" || cfg.Timezone != "UTC" {
		t.Errorf("listen/timezone = %q %q", cfg.Listen, cfg.Timezone)
	}
	if len(cfg.ICS) != 1 || cfg.ICS[0].ID != "ics-1" {
		t.Errorf("ics = %+v", cfg.ICS)
	}
	if !cfg.Outlook.Enabled() || cfg.Outlook.Timeout != 10*time.Second {
		t.Errorf("outlook = %+v", cfg.Outlook)
	}
	if cfg.Preferences.MeetingsPerPage != 50 || cfg.Preferences.Theme != "light" || cfg.Preferences.DefaultRangeDays != 30 {
		t.Errorf("preferences = %+v", cfg.Preferences)
	}

	rules := cfg.Preferences.ClassificationRules
	if rules == nil || rules.NoFlex == nil || len(rules.NoFlex.Keywords) != 1 || rules.DefaultColor != "blue" {
		t.Fatalf("classification rules = %+v", rules)
	}
	if _, err := classify.FromConfig(*rules); err != nil {
		t.Errorf("rules do not compile: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MEETLENS_LISTEN", ":7070")
	t.Setenv("MEETLENS_OUTLOOK_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":7070" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.Outlook.Token != "from-env" {
		t.Errorf("outlook.token = %q", cfg.Outlook.Token)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"cron", "refresh: \"every minute\"\n", "refresh"},
		{"timezone", "timezone: \"Mars/Olympus\"\n", "timezone"},
		{"rules", "preferences:\n  classification_rules:\n    flex:\n      patterns: [\"/(unclosed/\"]\n", "classification_rules"},
		{"notify", "notify:\n  enabled: true\n", "bot_token"},
		{"level", "logging:\n  level: loud\n", "logging.level"},
		{"auth", "basic_auth:\n  username: admin\n", "basic_auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	rules := classify.DefaultConfig()
	cfg.Preferences.ClassificationRules = &rules
	cfg.Preferences.AutoLoad = true
	cfg.BasicAuth = &BasicAuthConfig{Username: "admin", PasswordHash: "$2a$10$abcdefghijklmnopqrstuv"}

	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Preferences.AutoLoad || got.BasicAuth == nil || got.BasicAuth.Username != "admin" {
		t.Errorf("reloaded = %+v", got)
	}
	gr := got.Preferences.ClassificationRules
	if gr == nil || gr.Deplacement == nil || len(gr.Deplacement.Patterns) != len(rules.Deplacement.Patterns) {
		t.Fatalf("rules lost: %+v", gr)
	}
	if len(gr.Priority) != 3 || gr.Priority[1] != "deplacement" {
		t.Errorf("priority = %v", gr.Priority)
	}
}

func TestNormalizeDropsEmptyBasicAuth(t *testing.T) {
	cfg := &Config{BasicAuth: &BasicAuthConfig{}}
	cfg.Normalize()
	if cfg.BasicAuth != nil {
		t.Error("empty basic auth should be cleared")
	}
	if cfg.Preferences.Theme != "light" || cfg.Notify.DigestCron == "" {
		t.Errorf("normalize left zero values: %+v", cfg)
	}
}

func TestLocationFallback(t *testing.T) {
	cfg := &Config{Timezone: "Nowhere/City"}
	if cfg.Location() != time.Local {
		t.Error("expected time.Local fallback")
	}
	cfg.Timezone = "UTC"
	if cfg.Location().String() != "UTC" {
		t.Errorf("location = %v", cfg.Location())
	}
}
