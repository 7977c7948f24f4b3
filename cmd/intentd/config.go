package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all intentd server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr      string  `json:"listen_addr"`
	BaseURL         string  `json:"base_url"`
	DBPath          string  `json:"db_path"`
	LogLevel        string  `json:"log_level"`
	Threshold       float64 `json:"threshold"`
	EmbedEndpoint   string  `json:"embed_endpoint"`
	EmbedModel      string  `json:"embed_model"`
	EmbedDimensions int     `json:"embed_dimensions"`
	DispatchTimeout string  `json:"dispatch_timeout"`
	SessionTTL      string  `json:"session_ttl"`
	SessionSweep    string  `json:"session_sweep"`
	FSRoot          string  `json:"fs_root"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:      ":8000",
		DBPath:          filepath.Join(intentdDir(), "intentd.db"),
		LogLevel:        "info",
		Threshold:       0.45,
		DispatchTimeout: "30s",
		// Session eviction is off until a TTL is configured.
		SessionTTL:   "",
		SessionSweep: "@every 10m",
	}
}

func intentdDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".intentd"
	}
	return filepath.Join(home, ".intentd")
}

func settingsPath() string {
	return filepath.Join(intentdDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("INTENTD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("INTENTD_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("INTENTD_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("INTENTD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("INTENTD_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Threshold = f
		}
	}
	if v := os.Getenv("INTENTD_EMBED_ENDPOINT"); v != "" {
		cfg.EmbedEndpoint = v
	}
	if v := os.Getenv("INTENTD_EMBED_MODEL"); v != "" {
		cfg.EmbedModel = v
	}
	if v := os.Getenv("INTENTD_EMBED_DIMENSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.EmbedDimensions = n
		}
	}
	if v := os.Getenv("INTENTD_DISPATCH_TIMEOUT"); v != "" {
		cfg.DispatchTimeout = v
	}
	if v := os.Getenv("INTENTD_SESSION_TTL"); v != "" {
		cfg.SessionTTL = v
	}
	if v := os.Getenv("INTENTD_SESSION_SWEEP"); v != "" {
		cfg.SessionSweep = v
	}
	if v := os.Getenv("INTENTD_FS_ROOT"); v != "" {
		cfg.FSRoot = v
	}

	// Derive base_url from listen_addr if empty.
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	return cfg
}

// duration parses a config duration string, falling back to def.
func duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
