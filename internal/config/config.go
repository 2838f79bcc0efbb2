// Package config loads service configuration from a TOML file, fills in
// defaults, and validates the result. Secrets can also arrive through the
// environment so they stay out of the config file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the service.
type Config struct {
	ListenAddr string `toml:"listen_addr"`
	DBPath     string `toml:"db_path"`
	JWTSecret  string `toml:"jwt_secret"`

	Twilio   Twilio   `toml:"twilio"`
	Agent    Agent    `toml:"agent"`
	Matching Matching `toml:"matching"`
}

// Twilio configures the notification providers.
type Twilio struct {
	AccountSID   string `toml:"account_sid"`
	AuthToken    string `toml:"auth_token"`
	SMSFrom      string `toml:"sms_from"`
	WhatsAppFrom string `toml:"whatsapp_from"`
	BaseURL      string `toml:"base_url"`
	// RequestTimeout bounds each provider call, in seconds.
	RequestTimeout int `toml:"request_timeout"`
}

// Enabled reports whether notification credentials are present.
func (t Twilio) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != ""
}

// Agent configures the external reasoning service.
type Agent struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	// RequestTimeout bounds each service call, in seconds.
	RequestTimeout int `toml:"request_timeout"`
}

// Matching configures the match decision and notification fan-out.
type Matching struct {
	MaxHammingDistance  int      `toml:"max_hamming_distance"`
	MinCosineSimilarity float64  `toml:"min_cosine_similarity"`
	TopK                int      `toml:"top_k"`
	Channels            []string `toml:"channels"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		ListenAddr: ":8080",
		DBPath:     "lostfound.sqlite3",
		Twilio: Twilio{
			RequestTimeout: 10,
		},
		Agent: Agent{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4o-mini",
			RequestTimeout: 30,
		},
		Matching: Matching{
			MaxHammingDistance:  20,
			MinCosineSimilarity: 0.6,
			TopK:                3,
			Channels:            []string{"sms", "whatsapp", "voice"},
		},
	}
}

// Load reads the TOML file at path over the defaults. A missing file is not
// an error: the defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays secrets from the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Agent.APIKey = v
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		c.Twilio.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		c.Twilio.AuthToken = v
	}
	if v := os.Getenv("LOSTFOUND_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
}

// Validate checks values that would otherwise fail at an awkward time.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.Matching.MaxHammingDistance < 0 || c.Matching.MaxHammingDistance > 64 {
		return fmt.Errorf("max_hamming_distance must be between 0 and 64, got %d", c.Matching.MaxHammingDistance)
	}
	if c.Matching.MinCosineSimilarity < -1 || c.Matching.MinCosineSimilarity > 1 {
		return fmt.Errorf("min_cosine_similarity must be between -1 and 1, got %v", c.Matching.MinCosineSimilarity)
	}
	if c.Matching.TopK < 0 {
		return fmt.Errorf("top_k must not be negative, got %d", c.Matching.TopK)
	}
	for _, ch := range c.Matching.Channels {
		switch ch {
		case "sms", "whatsapp", "voice":
		default:
			return fmt.Errorf("unknown notification channel %q", ch)
		}
	}
	return nil
}
