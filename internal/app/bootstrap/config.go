package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
// It merges file defaults and environment overrides to support both local and
// deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	// PublicBaseURL is the externally-visible address of this service; the
	// OAuth callback URL and the internal token issuer derive from it.
	PublicBaseURL string
	// ClientAppURL is the front-end the callback redirects to.
	ClientAppURL  string
	SecureCookies bool

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	ProviderDomain       string
	ProviderClientID     string
	ProviderClientSecret string
	ProviderAudience     string
	ProviderScopes       []string
	ProviderName         string
	ConnectionHint       string
	LogoutReturnURL      string
	ProviderHTTPTimeout  time.Duration

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	LoginStateTTL      time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so env-only secrets stay out of it.
type configFile struct {
	Service struct {
		ID            string `yaml:"id"`
		HTTPPort      int    `yaml:"http_port"`
		GRPCPort      int    `yaml:"grpc_port"`
		PublicBaseURL string `yaml:"public_base_url"`
		ClientAppURL  string `yaml:"client_app_url"`
		SecureCookies bool   `yaml:"secure_cookies"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Provider struct {
		Domain          string   `yaml:"domain"`
		ClientID        string   `yaml:"client_id"`
		ClientSecret    string   `yaml:"client_secret"`
		Audience        string   `yaml:"audience"`
		Scopes          []string `yaml:"scopes"`
		Name            string   `yaml:"name"`
		Connection      string   `yaml:"connection"`
		LogoutReturnURL string   `yaml:"logout_return_url"`
	} `yaml:"provider"`
	Tokens struct {
		AccessSecret     string `yaml:"access_secret"`
		RefreshSecret    string `yaml:"refresh_secret"`
		AccessTTLMinutes int    `yaml:"access_ttl_minutes"`
		RefreshTTLDays   int    `yaml:"refresh_ttl_days"`
		StateTTLMinutes  int    `yaml:"state_ttl_minutes"`
	} `yaml:"tokens"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:           "auth-connector",
		HTTPPort:            8080,
		GRPCPort:            9090,
		PublicBaseURL:       "http://localhost:8080",
		ClientAppURL:        "http://localhost:3000",
		ProviderName:        "auth0",
		ConnectionHint:      "google-oauth2",
		ProviderScopes:      []string{"openid", "profile", "email"},
		ProviderHTTPTimeout: 8 * time.Second,
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		LoginStateTTL:       10 * time.Minute,
		MaxDBConns:          20,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Service.PublicBaseURL != "" {
			cfg.PublicBaseURL = f.Service.PublicBaseURL
		}
		if f.Service.ClientAppURL != "" {
			cfg.ClientAppURL = f.Service.ClientAppURL
		}
		cfg.SecureCookies = f.Service.SecureCookies
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Provider.Domain != "" {
			cfg.ProviderDomain = f.Provider.Domain
		}
		if f.Provider.ClientID != "" {
			cfg.ProviderClientID = f.Provider.ClientID
		}
		if f.Provider.ClientSecret != "" {
			cfg.ProviderClientSecret = f.Provider.ClientSecret
		}
		if f.Provider.Audience != "" {
			cfg.ProviderAudience = f.Provider.Audience
		}
		if len(f.Provider.Scopes) > 0 {
			cfg.ProviderScopes = f.Provider.Scopes
		}
		if f.Provider.Name != "" {
			cfg.ProviderName = f.Provider.Name
		}
		if f.Provider.Connection != "" {
			cfg.ConnectionHint = f.Provider.Connection
		}
		if f.Provider.LogoutReturnURL != "" {
			cfg.LogoutReturnURL = f.Provider.LogoutReturnURL
		}
		if f.Tokens.AccessSecret != "" {
			cfg.AccessTokenSecret = f.Tokens.AccessSecret
		}
		if f.Tokens.RefreshSecret != "" {
			cfg.RefreshTokenSecret = f.Tokens.RefreshSecret
		}
		if f.Tokens.AccessTTLMinutes > 0 {
			cfg.AccessTokenTTL = time.Duration(f.Tokens.AccessTTLMinutes) * time.Minute
		}
		if f.Tokens.RefreshTTLDays > 0 {
			cfg.RefreshTokenTTL = time.Duration(f.Tokens.RefreshTTLDays) * 24 * time.Hour
		}
		if f.Tokens.StateTTLMinutes > 0 {
			cfg.LoginStateTTL = time.Duration(f.Tokens.StateTTLMinutes) * time.Minute
		}
	}

	cfg.PublicBaseURL = strings.TrimRight(envOrDefault("PUBLIC_BASE_URL", cfg.PublicBaseURL), "/")
	cfg.ClientAppURL = envOrDefault("CLIENT_APP_URL", cfg.ClientAppURL)
	cfg.SecureCookies = envBool("SECURE_COOKIES", cfg.SecureCookies)
	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.ProviderDomain = envOrDefault("AUTH0_DOMAIN", cfg.ProviderDomain)
	cfg.ProviderClientID = envOrDefault("AUTH0_CLIENT_ID", cfg.ProviderClientID)
	cfg.ProviderClientSecret = envOrDefault("AUTH0_CLIENT_SECRET", cfg.ProviderClientSecret)
	cfg.ProviderAudience = envOrDefault("AUTH0_AUDIENCE", cfg.ProviderAudience)
	cfg.ProviderScopes = envCSV("AUTH0_SCOPES", cfg.ProviderScopes)
	cfg.ConnectionHint = envOrDefault("AUTH0_CONNECTION", cfg.ConnectionHint)
	cfg.LogoutReturnURL = envOrDefault("LOGOUT_RETURN_URL", cfg.LogoutReturnURL)
	cfg.AccessTokenSecret = envOrDefault("ACCESS_TOKEN_SECRET", cfg.AccessTokenSecret)
	cfg.RefreshTokenSecret = envOrDefault("REFRESH_TOKEN_SECRET", cfg.RefreshTokenSecret)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))
	cfg.AccessTokenTTL = time.Duration(envInt("ACCESS_TOKEN_TTL_MINUTES", int(cfg.AccessTokenTTL.Minutes()))) * time.Minute
	cfg.RefreshTokenTTL = time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", int(cfg.RefreshTokenTTL.Hours()/24))) * 24 * time.Hour
	cfg.LoginStateTTL = time.Duration(envInt("LOGIN_STATE_TTL_MINUTES", int(cfg.LoginStateTTL.Minutes()))) * time.Minute
	cfg.ProviderHTTPTimeout = time.Duration(envInt("PROVIDER_HTTP_TIMEOUT_SECONDS", int(cfg.ProviderHTTPTimeout.Seconds()))) * time.Second

	if cfg.LogoutReturnURL == "" {
		cfg.LogoutReturnURL = cfg.ClientAppURL
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.ProviderDomain == "" || cfg.ProviderClientID == "" || cfg.ProviderClientSecret == "" {
		return Config{}, fmt.Errorf("missing AUTH0_DOMAIN, AUTH0_CLIENT_ID or AUTH0_CLIENT_SECRET")
	}
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		return Config{}, fmt.Errorf("missing ACCESS_TOKEN_SECRET or REFRESH_TOKEN_SECRET")
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
