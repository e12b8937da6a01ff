package main

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/taskforge/identity"
)

const envPrefix = "IDENTITY_"

type ServerConfig struct {
	Address        string `koanf:"address"`
	MetricsAddress string `koanf:"metrics_address"`
}

type DatabaseConfig struct {
	DSN string `koanf:"dsn"`
}

// AuthConfig satisfies identity.Config
type AuthConfig struct {
	SigningKey      string        `koanf:"signing_key"`
	SigningMethod   string        `koanf:"signing_method"`
	ContextKey      string        `koanf:"context_key"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl"`
	TokenLookup     string        `koanf:"token_lookup"`
	AuthScheme      string        `koanf:"auth_scheme"`
	Issuer          string        `koanf:"issuer"`
	Audience        []string      `koanf:"audience"`
	ResetTokenTTL   time.Duration `koanf:"reset_token_ttl"`
	ResetBaseURL    string        `koanf:"reset_base_url"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

var _ identity.Config = (*AuthConfig)(nil)

func (c *AuthConfig) GetSigningKey() string             { return c.SigningKey }
func (c *AuthConfig) GetSigningMethod() string          { return c.SigningMethod }
func (c *AuthConfig) GetContextKey() string             { return c.ContextKey }
func (c *AuthConfig) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *AuthConfig) GetRefreshTokenTTL() time.Duration { return c.RefreshTokenTTL }
func (c *AuthConfig) GetTokenLookup() string            { return c.TokenLookup }
func (c *AuthConfig) GetAuthScheme() string             { return c.AuthScheme }
func (c *AuthConfig) GetIssuer() string                 { return c.Issuer }
func (c *AuthConfig) GetAudience() []string             { return c.Audience }
func (c *AuthConfig) GetResetTokenTTL() time.Duration   { return c.ResetTokenTTL }
func (c *AuthConfig) GetResetBaseURL() string           { return c.ResetBaseURL }

type AppConfig struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
}

// LoadConfig layers an optional YAML file under IDENTITY_* environment
// variables, e.g. IDENTITY_AUTH__SIGNING_KEY maps to auth.signing_key.
func LoadConfig(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, err
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8572"
	}
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = ":9090"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:identity.db?cache=shared&_pragma=foreign_keys(1)"
	}

	auth := &cfg.Auth
	if auth.SigningMethod == "" {
		auth.SigningMethod = "HS256"
	}
	if auth.ContextKey == "" {
		auth.ContextKey = "claims"
	}
	if auth.AccessTokenTTL <= 0 {
		auth.AccessTokenTTL = identity.DefaultAccessTokenTTL
	}
	if auth.RefreshTokenTTL <= 0 {
		auth.RefreshTokenTTL = identity.DefaultRefreshTokenTTL
	}
	if auth.TokenLookup == "" {
		auth.TokenLookup = "header:Authorization"
	}
	if auth.AuthScheme == "" {
		auth.AuthScheme = identity.BearerTokenType
	}
	if auth.Issuer == "" {
		auth.Issuer = "taskforge-identity"
	}
	if auth.ResetTokenTTL <= 0 {
		auth.ResetTokenTTL = identity.DefaultResetTokenTTL
	}
	if auth.ResetBaseURL == "" {
		auth.ResetBaseURL = "/password-reset"
	}
	if auth.CleanupInterval <= 0 {
		auth.CleanupInterval = identity.DefaultCleanupInterval
	}
}
