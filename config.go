package portalauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/intranetkit/portalauth/password"
	"github.com/intranetkit/portalauth/refresh"
	"github.com/intranetkit/portalauth/revocation"
	"github.com/intranetkit/portalauth/session"
	"github.com/intranetkit/portalauth/token"
)

// EnvProduction is the Config.Env value that enables production-only checks.
const EnvProduction = "production"

// Config holds every tunable of the Engine. Build it from DefaultConfig and
// override fields; the zero value is not valid.
type Config struct {
	// Env is the deployment environment name, e.g. "development" or "production".
	Env string
	// Secret is the HMAC key for tokens. There is no default.
	Secret []byte

	Token      TokenConfig
	Session    SessionConfig
	Revocation RevocationConfig
	HTTP       HTTPConfig
	Password   PasswordConfig
	RateLimit  RateLimitConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RotateRefresh revokes a presented refresh token and returns a new one.
	RotateRefresh bool
}

/*
====================================
SESSION CONFIG
====================================
*/

type SessionConfig struct {
	RedisPrefix string
	IdleTTL     time.Duration
	AbsoluteTTL time.Duration
}

// RevocationBackend selects where revoked tokens are recorded.
type RevocationBackend string

const (
	RevocationRedis    RevocationBackend = "redis"
	RevocationPostgres RevocationBackend = "postgres"
)

type RevocationConfig struct {
	Backend     RevocationBackend
	RedisPrefix string
	// PurgeInterval is how often the janitor sweeps lapsed Postgres rows.
	PurgeInterval time.Duration
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig controls credential transport.
type HTTPConfig struct {
	TokenCookie     string
	SessionCookie   string
	QueryTokenParam string
	// AllowQueryToken accepts ?token= credentials. Development only.
	AllowQueryToken bool
	// LoginURL is where unauthenticated browser requests are redirected.
	LoginURL      string
	SecureCookies bool
	SameSite      http.SameSite
}

type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

// Argon2Params converts the config to hasher parameters.
func (c PasswordConfig) Argon2Params() password.Argon2Params {
	return password.Argon2Params{
		Memory:      c.Memory,
		Time:        c.Time,
		Parallelism: c.Parallelism,
		SaltLength:  c.SaltLength,
		KeyLength:   c.KeyLength,
	}
}

type RateLimitConfig struct {
	Enabled      bool
	RedisPrefix  string
	MaxAttempts  int
	Window       time.Duration
	ThrottleByIP bool
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the documented defaults. Secret is left empty and
// must be supplied.
func DefaultConfig() Config {
	def := password.DefaultArgon2Params()
	return Config{
		Env: "development",
		Token: TokenConfig{
			AccessTTL:  refresh.DefaultAccessTTL,
			RefreshTTL: refresh.DefaultRefreshTTL,
		},
		Session: SessionConfig{
			RedisPrefix: session.DefaultPrefix,
			IdleTTL:     session.DefaultIdleTTL,
			AbsoluteTTL: session.DefaultAbsoluteTTL,
		},
		Revocation: RevocationConfig{
			Backend:       RevocationRedis,
			RedisPrefix:   revocation.DefaultRedisPrefix,
			PurgeInterval: 10 * time.Minute,
		},
		HTTP: HTTPConfig{
			TokenCookie:     "portal_token",
			SessionCookie:   "portal_session",
			QueryTokenParam: "token",
			LoginURL:        "/login",
			SecureCookies:   true,
			SameSite:        http.SameSiteLaxMode,
		},
		Password: PasswordConfig{
			Memory:         def.Memory,
			Time:           def.Time,
			Parallelism:    def.Parallelism,
			SaltLength:     def.SaltLength,
			KeyLength:      def.KeyLength,
			UpgradeOnLogin: true,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			RedisPrefix:  "prl",
			MaxAttempts:  5,
			Window:       15 * time.Minute,
			ThrottleByIP: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	if len(cfg.Secret) > 0 {
		out.Secret = append([]byte(nil), cfg.Secret...)
	}
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field. It fails when no secret is set.
func (c *Config) Validate() error {
	switch {
	case len(c.Secret) == 0:
		return token.ErrSecretRequired
	case len(c.Secret) < token.MinSecretLength:
		return fmt.Errorf("%w: need %d bytes, have %d", token.ErrSecretTooShort, token.MinSecretLength, len(c.Secret))
	}

	// Token
	if c.Token.AccessTTL <= 0 {
		return errors.New("Token AccessTTL must be > 0")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("Token RefreshTTL must be greater than AccessTTL")
	}

	// Session
	if c.Session.IdleTTL <= 0 {
		return errors.New("Session IdleTTL must be > 0")
	}
	if c.Session.AbsoluteTTL < c.Session.IdleTTL {
		return errors.New("Session AbsoluteTTL must be >= IdleTTL")
	}

	// Revocation
	switch c.Revocation.Backend {
	case RevocationRedis:
	case RevocationPostgres:
		if c.Revocation.PurgeInterval <= 0 {
			return errors.New("Revocation PurgeInterval must be > 0 for the postgres backend")
		}
	default:
		return fmt.Errorf("Revocation Backend %q is not supported", c.Revocation.Backend)
	}

	// HTTP
	if c.HTTP.SessionCookie == "" || c.HTTP.TokenCookie == "" {
		return errors.New("HTTP cookie names must be set")
	}
	if c.HTTP.SessionCookie == c.HTTP.TokenCookie {
		return errors.New("HTTP SessionCookie and TokenCookie must differ")
	}
	if c.HTTP.AllowQueryToken {
		if c.Env == EnvProduction {
			return errors.New("HTTP AllowQueryToken must be false in production")
		}
		if c.HTTP.QueryTokenParam == "" {
			return errors.New("HTTP QueryTokenParam is required when AllowQueryToken is true")
		}
	}
	if c.Env == EnvProduction && !c.HTTP.SecureCookies {
		return errors.New("HTTP SecureCookies must be true in production")
	}

	// Password
	if err := c.Password.Argon2Params().Validate(); err != nil {
		return err
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
