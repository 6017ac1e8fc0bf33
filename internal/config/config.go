package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/waabox/deviceauth/internal/domain"
)

//go:embed defaults.toml
var packagedDefaults string

// AuthConfig holds the authorization server settings shared by every session.
type AuthConfig struct {
	Domain   string `toml:"domain"`
	ClientID string `toml:"client_id"`
	Audience string `toml:"audience"`
	Scope    string `toml:"scope"`
}

// Validate returns a *domain.ConfigurationError naming every missing field.
func (a AuthConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(a.Domain) == "" {
		missing = append(missing, "domain")
	}
	if strings.TrimSpace(a.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(a.Audience) == "" {
		missing = append(missing, "audience")
	}
	if strings.TrimSpace(a.Scope) == "" {
		missing = append(missing, "scope")
	}
	if len(missing) > 0 {
		return &domain.ConfigurationError{Missing: missing}
	}
	return nil
}

// StoreConfig selects the secret store backend.
type StoreConfig struct {
	Backend string `toml:"backend"`
	Service string `toml:"service"`
	Path    string `toml:"path"`
}

// Config holds all deviceauth configuration.
type Config struct {
	Auth               AuthConfig  `toml:"auth"`
	Store              StoreConfig `toml:"store"`
	SignInScopes       []string    `toml:"signin_scopes"`
	HTTPTimeoutSeconds int         `toml:"http_timeout_seconds"`
}

const defaultHTTPTimeout = 15 * time.Second

// HTTPTimeout returns the configured per-request timeout, falling back to 15s.
func (c Config) HTTPTimeout() time.Duration {
	if c.HTTPTimeoutSeconds > 0 {
		return time.Duration(c.HTTPTimeoutSeconds) * time.Second
	}
	return defaultHTTPTimeout
}

// Defaults returns the packaged configuration.
func Defaults() (Config, error) {
	var cfg Config
	if _, err := toml.Decode(packagedDefaults, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding packaged defaults: %w", err)
	}
	return cfg, nil
}

// LoadFrom reads the packaged defaults and overlays the TOML file at path.
// If the file does not exist, the packaged defaults are used without error.
// Environment variables always take precedence over file values:
//   - DEVICEAUTH_DOMAIN    overrides auth.domain
//   - DEVICEAUTH_CLIENT_ID overrides auth.client_id
//   - DEVICEAUTH_AUDIENCE  overrides auth.audience
//   - DEVICEAUTH_SCOPE     overrides auth.scope
//   - DEVICEAUTH_STORE     overrides store.backend
//
// The auth block is not validated here; see AuthConfig.Validate.
func LoadFrom(path string) (Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return Config{}, err
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// DefaultConfigPath returns the default path for the deviceauth config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "deviceauth", "config.toml")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DEVICEAUTH_DOMAIN"); v != "" {
		cfg.Auth.Domain = v
	}
	if v := os.Getenv("DEVICEAUTH_CLIENT_ID"); v != "" {
		cfg.Auth.ClientID = v
	}
	if v := os.Getenv("DEVICEAUTH_AUDIENCE"); v != "" {
		cfg.Auth.Audience = v
	}
	if v := os.Getenv("DEVICEAUTH_SCOPE"); v != "" {
		cfg.Auth.Scope = v
	}
	if v := os.Getenv("DEVICEAUTH_STORE"); v != "" {
		cfg.Store.Backend = v
	}
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
