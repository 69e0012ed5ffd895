// Package config loads coachcal settings from a YAML file with COACHCAL_*
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/dukerupert/coachcal/internal/recurrence"
)

const envPrefix = "COACHCAL_"

type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// DBPath is the SQLite file; ":memory:" is accepted for throwaway runs.
	DBPath    string `yaml:"db_path"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Timezone anchors wall-clock times for coaches without their own zone.
	Timezone string `yaml:"timezone"`

	// MaxEvents caps how many events one recurring record expands to.
	MaxEvents int `yaml:"max_events"`

	// PurgeCron is a standard five-field cron spec for the janitor.
	PurgeCron     string `yaml:"purge_cron"`
	RetentionDays int    `yaml:"retention_days"`

	CacheSize int `yaml:"cache_size"`

	PINAttempts      int `yaml:"pin_attempts"`
	PINWindowMinutes int `yaml:"pin_window_minutes"`

	// WebSocketOrigins lists allowed Origin host patterns; empty allows any.
	WebSocketOrigins []string `yaml:"websocket_origins"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:           ":8080",
		DBPath:           "coachcal.db",
		LogLevel:         "info",
		LogFormat:        "text",
		Timezone:         "UTC",
		MaxEvents:        recurrence.DefaultMaxEvents,
		PurgeCron:        "15 3 * * *",
		RetentionDays:    30,
		CacheSize:        256,
		PINAttempts:      5,
		PINWindowMinutes: 15,
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
		c.LogFormat = strings.ToLower(c.LogFormat)
	default:
		c.LogFormat = d.LogFormat
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = d.MaxEvents
	}
	if c.PurgeCron == "" {
		c.PurgeCron = d.PurgeCron
	}
	if c.RetentionDays < 0 {
		c.RetentionDays = d.RetentionDays
	}
	if c.CacheSize <= 0 {
		c.CacheSize = d.CacheSize
	}
	if c.PINAttempts <= 0 {
		c.PINAttempts = d.PINAttempts
	}
	if c.PINWindowMinutes <= 0 {
		c.PINWindowMinutes = d.PINWindowMinutes
	}
}

// Validate checks values that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.PurgeCron); err != nil {
		return fmt.Errorf("purge_cron %q: %w", c.PurgeCron, err)
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

func (c *Config) PINWindow() time.Duration {
	return time.Duration(c.PINWindowMinutes) * time.Minute
}

// Load reads path, creating it with defaults on first run, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// ApplyEnv overrides fields from COACHCAL_* variables, e.g.
// COACHCAL_MAX_EVENTS=250 or COACHCAL_WEBSOCKET_ORIGINS=a.com,b.com.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("LISTEN", &c.Listen)
	str("DB_PATH", &c.DBPath)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("TIMEZONE", &c.Timezone)
	str("PURGE_CRON", &c.PurgeCron)

	for key, dst := range map[string]*int{
		"MAX_EVENTS":         &c.MaxEvents,
		"RETENTION_DAYS":     &c.RetentionDays,
		"CACHE_SIZE":         &c.CacheSize,
		"PIN_ATTEMPTS":       &c.PINAttempts,
		"PIN_WINDOW_MINUTES": &c.PINWindowMinutes,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup(envPrefix + "WEBSOCKET_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.WebSocketOrigins = origins
	}
	return nil
}

// Save writes cfg atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".coachcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
