package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Insecure values that must never reach production.
var insecureDefaults = map[string]bool{
	"your-secret-key-change-in-production": true,
	"internal-secret":                      true,
	"changeme":                             true,
	"":                                     true,
}

// Poll interval bounds for the dashboard status poller.
const (
	MinPollInterval = 10 * time.Second
	MaxPollInterval = 5 * time.Minute
)

type Config struct {
	Server         ServerConfig
	JWT            JWTConfig
	Panel          PanelConfig
	Encryption     EncryptionConfig
	Status         StatusConfig
	Console        ConsoleConfig
	Stripe         StripeConfig
	Catalog        CatalogConfig
	CORS           CORSConfig
	InternalSecret string `envconfig:"INTERNAL_SECRET"`
}

type ServerConfig struct {
	Port        string `envconfig:"SERVER_PORT" default:"8080"`
	Mode        string `envconfig:"GIN_MODE" default:"release"`
	Environment string `envconfig:"ENV" default:"production"`
}

type JWTConfig struct {
	SecretKey string `envconfig:"JWT_SECRET_KEY"`
}

// PanelConfig points at the backend panel API. PublicURL is what the browser
// sees (NEXT_PUBLIC_API_URL); APIURL is the server-side address and falls back
// to the public one.
type PanelConfig struct {
	PublicURL string        `envconfig:"NEXT_PUBLIC_API_URL" default:"http://localhost:8000"`
	APIURL    string        `envconfig:"API_URL"`
	Timeout   time.Duration `envconfig:"PANEL_TIMEOUT" default:"30s"`
}

type EncryptionConfig struct {
	PasswordKey       string `envconfig:"PASSWORD_KEY"`
	PasswordCipher    string `envconfig:"PASSWORD_CIPHER" default:"gcm"`
	PasswordKeySecret string `envconfig:"PASSWORD_KEY_SECRET"`
}

type StatusConfig struct {
	MCStatusURL     string        `envconfig:"MCSTATUS_URL" default:"https://api.mcstatus.io"`
	MCStatusTimeout time.Duration `envconfig:"MCSTATUS_TIMEOUT" default:"10s"`
	PingTimeout     time.Duration `envconfig:"PING_TIMEOUT" default:"5s"`
	PollInterval    time.Duration `envconfig:"STATUS_POLL_INTERVAL" default:"30s"`
}

type ConsoleConfig struct {
	MaxLines int `envconfig:"CONSOLE_MAX_LINES" default:"1000"`
}

type StripeConfig struct {
	SecretKey  string `envconfig:"STRIPE_SECRET_KEY"`
	SuccessURL string `envconfig:"STRIPE_SUCCESS_URL" default:"http://localhost:8080/dashboard?checkout=success"`
	CancelURL  string `envconfig:"STRIPE_CANCEL_URL" default:"http://localhost:8080/pricing?checkout=cancel"`
}

type CatalogConfig struct {
	File string `envconfig:"CATALOG_FILE"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if cfg.Panel.APIURL == "" {
		cfg.Panel.APIURL = cfg.Panel.PublicURL
	}
	cfg.Panel.PublicURL = strings.TrimRight(cfg.Panel.PublicURL, "/")
	cfg.Panel.APIURL = strings.TrimRight(cfg.Panel.APIURL, "/")
	cfg.Status.PollInterval = ClampPollInterval(cfg.Status.PollInterval)
	return &cfg, nil
}

// Validate rejects configurations that must not run in production.
func (c *Config) Validate() error {
	if insecureDefaults[c.JWT.SecretKey] {
		return fmt.Errorf("JWT_SECRET_KEY must be set to a secure value (current value is insecure or empty)")
	}
	if len(c.JWT.SecretKey) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters long")
	}
	if c.Encryption.PasswordKeySecret == "" {
		if err := ValidatePasswordKey(c.Encryption.PasswordKey); err != nil {
			return err
		}
	}
	switch c.Encryption.PasswordCipher {
	case "gcm", "ecb":
	default:
		return fmt.Errorf("PASSWORD_CIPHER must be gcm or ecb, got %q", c.Encryption.PasswordCipher)
	}
	if _, err := url.Parse(c.Panel.PublicURL); err != nil {
		return fmt.Errorf("NEXT_PUBLIC_API_URL is not a valid URL: %w", err)
	}
	return nil
}

// ValidatePasswordKey accepts 64 hex characters or 32 raw bytes.
func ValidatePasswordKey(key string) error {
	if len(key) == 64 {
		if _, err := hex.DecodeString(key); err == nil {
			return nil
		}
	}
	if len(key) == 32 {
		return nil
	}
	return fmt.Errorf("PASSWORD_KEY must be 64 hex characters or 32 bytes")
}

// ConsoleHost rewrites the public API URL to the websocket scheme used by the
// console proxy.
func (c *Config) ConsoleHost() string {
	return WebSocketURL(c.Panel.PublicURL)
}

// WebSocketURL maps http to ws and https to wss. Other schemes are returned
// unchanged.
func WebSocketURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// ClampPollInterval keeps a poll interval within [MinPollInterval, MaxPollInterval].
func ClampPollInterval(d time.Duration) time.Duration {
	if d < MinPollInterval {
		return MinPollInterval
	}
	if d > MaxPollInterval {
		return MaxPollInterval
	}
	return d
}

func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}
