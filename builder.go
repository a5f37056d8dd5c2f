package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/detector"
	"github.com/MrEthical07/authcore/internal/history"
	"github.com/MrEthical07/authcore/internal/limiters"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/internal/stores"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single use: Build may succeed
// at most once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts     AccountStore
	lockoutStore LockoutStore
	historyStore HistoryStore
	auditSink    AuditSink
	logger       *slog.Logger
	clock        func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder configuration with a copy of cfg.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the rate limiter, reset tokens and audit
// store. It is required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore sets the account persistence. It is required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

// WithLockoutStore replaces the Redis lockout guard.
func (b *Builder) WithLockoutStore(store LockoutStore) *Builder {
	b.lockoutStore = store
	return b
}

// WithHistoryStore replaces the Redis password history.
func (b *Builder) WithHistoryStore(store HistoryStore) *Builder {
	b.historyStore = store
	return b
}

// WithAuditSink forwards audit events to sink when Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the operational logger. The default is slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms enables the login latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Audit.Enabled && b.auditSink == nil {
		return nil, errors.New("Audit enabled requires an audit sink")
	}

	ph, err := password.NewHasher(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(cfg.jwtConfig())
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		accounts:     b.accounts,
		rateLimiter:  rate.New(b.redis, cfg.rateConfig()),
		resetStore:   stores.NewPasswordResetStore(b.redis),
		resetLimiter: limiters.NewPasswordResetLimiter(b.redis, cfg.resetLimiterConfig()),
		auditStore:   audit.NewRedisStore(b.redis),
		metrics:      NewMetrics(cfg.Metrics),
		passwordHash: ph,
		jwtManager:   jm,
		logger:       b.logger,
		clock:        b.clock,
	}

	engine.lockout = b.lockoutStore
	if engine.lockout == nil {
		engine.lockout = limiters.NewLockoutLimiter(b.redis, cfg.lockoutConfig())
	}

	var hs history.Store = b.historyStore
	if b.historyStore == nil {
		hs = history.NewRedisStore(b.redis, cfg.Password.HistoryRetention)
	}
	engine.history = history.NewEnforcer(hs, ph.Verify, cfg.Password.HistoryDepth)

	if cfg.Detector.Enabled {
		engine.detector = detector.New(engine.auditStore, cfg.detectorConfig())
	}

	if cfg.Audit.Enabled {
		engine.audit = audit.NewDispatcher(cfg.auditConfig(), b.auditSink, engine.auditDeliveryFailed)
	}

	b.built = true

	return engine, nil
}
