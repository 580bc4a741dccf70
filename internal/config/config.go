package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	API        APIConfig        `yaml:"api"`
	OAuth      OAuthConfig      `yaml:"oauth"`
	State      StateConfig      `yaml:"state"`
	Encryption EncryptionConfig `yaml:"encryption"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type OAuthConfig struct {
	// BaseURL defaults to the API base URL with its "/api" suffix stripped.
	BaseURL        string `yaml:"base_url"`
	GoogleClientID string `yaml:"google_client_id"`
	CallbackPort   int    `yaml:"callback_port"`
}

type StateConfig struct {
	Dir string `yaml:"dir"` // default: <user config dir>/codemate
}

type EncryptionConfig struct {
	Key        string `yaml:"key"`        // hex-encoded 32-byte key
	Passphrase string `yaml:"passphrase"` // alternative: key derived via scrypt
}

// Load reads configuration from an optional .env file, an optional yaml file
// and CODEMATE_* environment overrides, in that order.
func Load(path string) (*Config, error) {
	// Best-effort .env; a missing file is the normal case.
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := expandEnvVars(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func defaults() *Config {
	stateDir := ""
	if base, err := os.UserConfigDir(); err == nil {
		stateDir = filepath.Join(base, "codemate")
	}

	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: 30 * time.Second,
		},
		OAuth: OAuthConfig{
			CallbackPort: 48231,
		},
		State: StateConfig{
			Dir: stateDir,
		},
	}
}

func expandEnvVars(s string) string {
	return os.ExpandEnv(s)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CODEMATE_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("CODEMATE_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.API.Timeout = d
		}
	}
	if v := os.Getenv("CODEMATE_OAUTH_BASE_URL"); v != "" {
		cfg.OAuth.BaseURL = v
	}
	if v := os.Getenv("CODEMATE_GOOGLE_CLIENT_ID"); v != "" {
		cfg.OAuth.GoogleClientID = v
	}
	if v := os.Getenv("CODEMATE_STATE_DIR"); v != "" {
		cfg.State.Dir = v
	}
	if v := os.Getenv("CODEMATE_ENCRYPTION_KEY"); v != "" {
		cfg.Encryption.Key = v
	}
	if v := os.Getenv("CODEMATE_ENCRYPTION_PASSPHRASE"); v != "" {
		cfg.Encryption.Passphrase = v
	}
}

// Validate reports a fatal configuration error. The API base URL is the one
// hard requirement; everything else has a usable default.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required (set CODEMATE_API_BASE_URL)")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not a valid URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.OAuth.CallbackPort < 1 || c.OAuth.CallbackPort > 65535 {
		return fmt.Errorf("oauth.callback_port %d out of range", c.OAuth.CallbackPort)
	}
	if c.State.Dir == "" {
		return fmt.Errorf("state.dir is required (set CODEMATE_STATE_DIR)")
	}
	if c.Encryption.Key != "" && c.Encryption.Passphrase != "" {
		return fmt.Errorf("encryption.key and encryption.passphrase are mutually exclusive")
	}
	return nil
}

// OAuthBaseURL returns the configured OAuth origin, falling back to the API
// base URL with its "/api" suffix removed.
func (c *Config) OAuthBaseURL() string {
	if c.OAuth.BaseURL != "" {
		return strings.TrimSuffix(c.OAuth.BaseURL, "/")
	}
	return strings.TrimSuffix(strings.TrimSuffix(c.API.BaseURL, "/"), "/api")
}
