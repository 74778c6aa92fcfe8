// Package config loads the portalauth server configuration from a YAML file
// overlaid with environment variables.
//
// Sources, first match wins:
//  1. the explicit path (-config flag);
//  2. CONFIG_PATH;
//  3. environment variables only.
package config

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/intranetkit/portalauth"
	"github.com/intranetkit/portalauth/internal/logging"
)

type Config struct {
	Env      string         `yaml:"env" env:"PORTAL_ENV" env-default:"development"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Auth     AuthConfig     `yaml:"auth"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"8080"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

func (h HTTPConfig) Addr() string { return net.JoinHostPort(h.Host, h.Port) }

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

func (l LogConfig) Logging() logging.Config {
	return logging.Config{Level: l.Level, Format: l.Format, Output: "stdout"}
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// PostgresConfig holds the user database. Revocations live here too when
// auth.revocation_backend is "postgres".
type PostgresConfig struct {
	DSN      string `yaml:"dsn" env:"POSTGRES_DSN" env-required:"true"`
	MaxConns int32  `yaml:"max_conns" env:"POSTGRES_MAX_CONNS" env-default:"10"`
}

type AuthConfig struct {
	Secret            string        `yaml:"secret" env:"PORTAL_AUTH_SECRET" env-required:"true"`
	AccessTTL         time.Duration `yaml:"access_ttl" env:"PORTAL_ACCESS_TTL" env-default:"15m"`
	RefreshTTL        time.Duration `yaml:"refresh_ttl" env:"PORTAL_REFRESH_TTL" env-default:"168h"`
	RotateRefresh     bool          `yaml:"rotate_refresh" env:"PORTAL_ROTATE_REFRESH" env-default:"false"`
	SessionIdleTTL    time.Duration `yaml:"session_idle_ttl" env:"PORTAL_SESSION_IDLE_TTL" env-default:"30m"`
	SessionAbsolute   time.Duration `yaml:"session_absolute_ttl" env:"PORTAL_SESSION_ABSOLUTE_TTL" env-default:"12h"`
	RevocationBackend string        `yaml:"revocation_backend" env:"PORTAL_REVOCATION_BACKEND" env-default:"redis"`
	AllowQueryToken   bool          `yaml:"allow_query_token" env:"PORTAL_ALLOW_QUERY_TOKEN" env-default:"false"`
	SecureCookies     bool          `yaml:"secure_cookies" env:"PORTAL_SECURE_COOKIES" env-default:"true"`
	SameSite          string        `yaml:"same_site" env:"PORTAL_SAME_SITE" env-default:"lax"`
	LoginURL          string        `yaml:"login_url" env:"PORTAL_LOGIN_URL" env-default:"/login"`
	LoginMaxAttempts  int           `yaml:"login_max_attempts" env:"PORTAL_LOGIN_MAX_ATTEMPTS" env-default:"5"`
	LoginWindow       time.Duration `yaml:"login_window" env:"PORTAL_LOGIN_WINDOW" env-default:"15m"`
	UpgradeHashes     bool          `yaml:"upgrade_hashes" env:"PORTAL_UPGRADE_HASHES" env-default:"true"`
	Audit             bool          `yaml:"audit" env:"PORTAL_AUDIT" env-default:"true"`
	LatencyHistograms bool          `yaml:"latency_histograms" env:"PORTAL_LATENCY_HISTOGRAMS" env-default:"true"`
}

func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	return &cfg, nil
}

// Portal maps the server configuration onto the library configuration.
// Fields without a server setting keep portalauth.DefaultConfig values.
func (c *Config) Portal() portalauth.Config {
	pc := portalauth.DefaultConfig()
	pc.Env = c.Env
	pc.Secret = []byte(c.Auth.Secret)

	pc.Token.AccessTTL = c.Auth.AccessTTL
	pc.Token.RefreshTTL = c.Auth.RefreshTTL
	pc.Token.RotateRefresh = c.Auth.RotateRefresh

	pc.Session.IdleTTL = c.Auth.SessionIdleTTL
	pc.Session.AbsoluteTTL = c.Auth.SessionAbsolute

	pc.Revocation.Backend = portalauth.RevocationBackend(c.Auth.RevocationBackend)

	pc.HTTP.AllowQueryToken = c.Auth.AllowQueryToken
	pc.HTTP.SecureCookies = c.Auth.SecureCookies
	pc.HTTP.SameSite = parseSameSite(c.Auth.SameSite)
	pc.HTTP.LoginURL = c.Auth.LoginURL

	pc.RateLimit.MaxAttempts = c.Auth.LoginMaxAttempts
	pc.RateLimit.Window = c.Auth.LoginWindow
	pc.Password.UpgradeOnLogin = c.Auth.UpgradeHashes
	pc.Audit.Enabled = c.Auth.Audit
	pc.Metrics.EnableLatencyHistograms = c.Auth.LatencyHistograms
	return pc
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
