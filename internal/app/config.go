package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/signet/internal/observability"
	"github.com/florianilch/signet/internal/provider"
	"github.com/florianilch/signet/internal/proxy"
	"github.com/florianilch/signet/internal/tokencache"
	"github.com/florianilch/signet/internal/tokensource"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// AuthenticationMethod represents the different credential backends supported.
type AuthenticationMethod string

const (
	AuthenticationMethodOAuth AuthenticationMethod = "oauth"
	AuthenticationMethodMock  AuthenticationMethod = "mock"
)

// Default configuration values
const (
	DefaultConfigLogFormat           = LogFormatText
	DefaultConfigTelemetryExporter   = observability.ExporterNone
	DefaultConfigServerHost          = "127.0.0.1"
	DefaultConfigServerPort          = 4000
	DefaultConfigShutdownTimeout     = 5 * time.Second
	DefaultConfigUpstreamBaseURL     = proxy.DefaultBaseURL
	DefaultConfigAuthMethod          = AuthenticationMethodOAuth
	DefaultConfigAuthRefreshSkew     = provider.DefaultRefreshSkew
	DefaultConfigAuthMockLifetime    = time.Hour
	DefaultConfigCacheStorage        = tokencache.StorageTypeFile
	DefaultConfigCacheKeyringService = "signet"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// UpstreamConfig holds remote API configuration.
type UpstreamConfig struct {
	BaseURL string `json:"base_url" validate:"required,url"`
	// ClientInfo is sent as SDK identification header when set.
	ClientInfo string `json:"client_info,omitempty"`
}

// TelemetryConfig selects where OpenTelemetry log records are exported.
type TelemetryConfig struct {
	Exporter observability.Exporter `json:"exporter" validate:"oneof=none stdout otlphttp otlpgrpc"`
}

// AuthConfig describes how credentials are acquired.
type AuthConfig struct {
	Method AuthenticationMethod `json:"method" validate:"required,oneof=oauth mock"`

	// OAuth settings. Tenant selects the Microsoft identity platform authority
	// unless explicit endpoints are configured.
	ClientID           string        `json:"client_id,omitempty"`
	Tenant             string        `json:"tenant,omitempty"`
	AuthURL            string        `json:"auth_url,omitempty" validate:"omitempty,url"`
	TokenURL           string        `json:"token_url,omitempty" validate:"omitempty,url"`
	RevocationURL      string        `json:"revocation_url,omitempty" validate:"omitempty,url"`
	RedirectURL        string        `json:"redirect_url" validate:"required,url"`
	InteractiveTimeout time.Duration `json:"interactive_timeout"`
	JSONTokenRequests  bool          `json:"json_token_requests"`

	// Scopes is the comma-separated scope set credentials are requested for.
	Scopes      string        `json:"scopes" validate:"required"`
	RefreshSkew time.Duration `json:"refresh_skew" validate:"gte=0"`

	// Mock settings
	MockLifetime time.Duration `json:"mock_lifetime" validate:"gte=0"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level        `json:"log_level"`
	LogFormat LogFormat         `json:"log_format" validate:"oneof=text json"`
	Telemetry TelemetryConfig   `json:"telemetry"`
	Server    ServerConfig      `json:"server"`
	Shutdown  ShutdownConfig    `json:"shutdown"`
	Upstream  UpstreamConfig    `json:"upstream"`
	Auth      AuthConfig        `json:"auth"`
	Cache     tokencache.Config `json:"cache"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultConfigTelemetryExporter
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultConfigUpstreamBaseURL
	}

	if c.Auth.Method == "" {
		c.Auth.Method = DefaultConfigAuthMethod
	}
	if c.Auth.Tenant == "" {
		c.Auth.Tenant = tokensource.DefaultTenant
	}
	if c.Auth.RedirectURL == "" {
		c.Auth.RedirectURL = tokensource.DefaultRedirectURL
	}
	if c.Auth.InteractiveTimeout == 0 {
		c.Auth.InteractiveTimeout = tokensource.DefaultInteractiveTimeout
	}
	if c.Auth.Scopes == "" {
		c.Auth.Scopes = tokensource.DefaultScopes
	}
	if c.Auth.RefreshSkew == 0 {
		c.Auth.RefreshSkew = DefaultConfigAuthRefreshSkew
	}
	if c.Auth.MockLifetime == 0 {
		c.Auth.MockLifetime = DefaultConfigAuthMockLifetime
	}

	if c.Cache.Storage == "" {
		c.Cache.Storage = DefaultConfigCacheStorage
	}

	// Dynamic defaults based on storage type
	switch c.Cache.Storage {
	case tokencache.StorageTypeFile:
		if c.Cache.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("cache.file required (auto-detect failed: %w)", err)
			}
			c.Cache.File = filepath.Join(configDir, "signet", "token-cache.json")
		}
	case tokencache.StorageTypeKeyring:
		if c.Cache.KeyringService == "" {
			c.Cache.KeyringService = DefaultConfigCacheKeyringService
		}
		if c.Cache.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("cache.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Cache.KeyringUser = currentUser.Username
		}
	case tokencache.StorageTypeEnv:
		// env_key must be explicitly configured (no sensible default)
	}

	return nil
}

// Validate validates the configuration using struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Auth.Method == AuthenticationMethodOAuth {
		if c.Auth.ClientID == "" {
			return errors.New("auth.client_id required for oauth authentication")
		}
		if (c.Auth.AuthURL == "") != (c.Auth.TokenURL == "") {
			return errors.New("auth.auth_url and auth.token_url must be configured together")
		}
	}

	switch c.Cache.Storage {
	case tokencache.StorageTypeFile:
		if c.Cache.File == "" {
			return errors.New("file path required for file storage")
		}
	case tokencache.StorageTypeEnv:
		if c.Cache.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case tokencache.StorageTypeKeyring:
		if c.Cache.KeyringService == "" || c.Cache.KeyringUser == "" {
			return errors.New("keyring_service and keyring_user required for keyring storage")
		}
	}

	return nil
}
