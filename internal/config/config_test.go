package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "coachcal.yaml")
	cfg, err := loadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxEvents != 100 || cfg.PurgeCron != "15 3 * * *" {
		t.Errorf("defaults = %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestLoadFileAndNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coachcal.yaml")
	data := "listen: 127.0.0.1:9000\nmax_events: 250\nlog_format: JSON\ntimezone: America/Denver\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9000" || cfg.MaxEvents != 250 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("log format = %q, want json", cfg.LogFormat)
	}
	if cfg.RetentionDays != 30 || cfg.DBPath != "coachcal.db" {
		t.Error("unset keys should keep defaults")
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coachcal.yaml")
	os.WriteFile(path, []byte("max_events: [nope"), 0o600)
	if _, err := loadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(env(map[string]string{
		"COACHCAL_LISTEN":            ":9999",
		"COACHCAL_MAX_EVENTS":        "12",
		"COACHCAL_RETENTION_DAYS":    "0",
		"COACHCAL_WEBSOCKET_ORIGINS": "app.example.com, admin.example.com",
		"COACHCAL_LOG_LEVEL":         "",
	}))
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Listen != ":9999" || cfg.MaxEvents != 12 || cfg.RetentionDays != 0 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Error("empty variables should not override")
	}
	if len(cfg.WebSocketOrigins) != 2 || cfg.WebSocketOrigins[1] != "admin.example.com" {
		t.Errorf("origins = %v", cfg.WebSocketOrigins)
	}

	if err := cfg.ApplyEnv(env(map[string]string{"COACHCAL_CACHE_SIZE": "lots"})); err == nil {
		t.Error("non-numeric value should fail")
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cfg.PurgeCron = "every night"
	if err := cfg.Validate(); err == nil {
		t.Error("bad cron should fail")
	}

	cfg = DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown timezone should fail")
	}
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Retention() != 30*24*time.Hour {
		t.Errorf("retention = %v", cfg.Retention())
	}
	if cfg.PINWindow() != 15*time.Minute {
		t.Errorf("pin window = %v", cfg.PINWindow())
	}
	if cfg.Location() != time.UTC {
		t.Errorf("location = %v", cfg.Location())
	}
}
