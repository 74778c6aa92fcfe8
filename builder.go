package portalauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/intranetkit/portalauth/internal/audit"
	"github.com/intranetkit/portalauth/internal/rate"
	"github.com/intranetkit/portalauth/password"
	"github.com/intranetkit/portalauth/refresh"
	"github.com/intranetkit/portalauth/revocation"
	"github.com/intranetkit/portalauth/session"
	"github.com/intranetkit/portalauth/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users       UserStore
	revocations revocation.Store
	auditSink   AuditSink
	logger      *slog.Logger
	now         func() time.Time

	built bool
}

// New returns a Builder preloaded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client used for sessions, login throttling and, with the
// Redis backend, revocations.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(users UserStore) *Builder {
	b.users = users
	return b
}

// WithRevocationStore overrides the store selected by Config.Revocation.
// It is required for the Postgres backend.
func (b *Builder) WithRevocationStore(store revocation.Store) *Builder {
	b.revocations = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now for token issuance and verification, session
// timestamps and the TTLs of the default Redis revocation store. A store
// passed to WithRevocationStore keeps its own clock. Login rate-limit windows
// are Redis key TTLs and follow the server clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("component", "portalauth"))

	var tokenOpts []token.Option
	if b.now != nil {
		tokenOpts = append(tokenOpts, token.WithClock(b.now))
	}
	signer, err := token.NewSigner(cfg.Secret, tokenOpts...)
	if err != nil {
		return nil, err
	}
	verifier, err := token.NewVerifier(cfg.Secret, tokenOpts...)
	if err != nil {
		return nil, err
	}

	// -------- REVOCATION --------
	revocations := b.revocations
	if revocations == nil {
		if cfg.Revocation.Backend == RevocationPostgres {
			return nil, errors.New("postgres revocation backend requires WithRevocationStore")
		}
		revocations = revocation.NewRedisStore(b.redis, cfg.Revocation.RedisPrefix).WithClock(b.now)
	}

	refreshSvc, err := refresh.NewService(signer, verifier, revocations, refresh.Config{
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Rotate:     cfg.Token.RotateRefresh,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.Argon2Params())
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash("portalauth-timing-equalizer")
	if err != nil {
		return nil, err
	}

	// -------- SESSION STORE --------
	sessions := session.NewStore(b.redis, session.Config{
		Prefix:      cfg.Session.RedisPrefix,
		IdleTTL:     cfg.Session.IdleTTL,
		AbsoluteTTL: cfg.Session.AbsoluteTTL,
		Now:         b.now,
	})

	metrics := NewMetrics(cfg.Metrics)

	engine := &Engine{
		config:      cfg,
		logger:      logger,
		users:       b.users,
		verifier:    verifier,
		revocations: revocations,
		sessions:    sessions,
		refresh:     refreshSvc,
		hasher:      hasher,
		metrics:     metrics,
		dummyHash:   dummy,
	}
	if cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:       cfg.RateLimit.RedisPrefix,
			MaxAttempts:  cfg.RateLimit.MaxAttempts,
			Window:       cfg.RateLimit.Window,
			ThrottleByIP: cfg.RateLimit.ThrottleByIP,
		})
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	engine.gateway = &Gateway{
		verifier:    verifier,
		revocations: revocations,
		sessions:    sessions,
		http:        cfg.HTTP,
		metrics:     metrics,
		logger:      logger,
	}
	engine.guard = &AdminGuard{
		users:   b.users,
		metrics: metrics,
		logger:  logger,
		onDeny: func(ctx context.Context, p Principal, err error) {
			engine.emitAudit(ctx, auditEventAdminDenied, false, p.UserID, err, nil)
		},
	}

	b.built = true
	return engine, nil
}
