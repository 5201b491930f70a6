package staffauth

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/staffauth/internal/audit"
	"github.com/MrEthical07/staffauth/internal/flows"
	internalmetrics "github.com/MrEthical07/staffauth/internal/metrics"
	"github.com/MrEthical07/staffauth/jwt"
	"github.com/MrEthical07/staffauth/refresh"
)

// Builder assembles an Engine. It is single use: a second Build fails.
type Builder struct {
	config Config

	store    refresh.Store
	redis    redis.UniversalClient
	postgres *sql.DB

	directory UserDirectory
	auditSink AuditSink
	logger    *zap.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the refresh store directly. It takes precedence over
// WithRedis and WithPostgres.
func (b *Builder) WithStore(store refresh.Store) *Builder {
	b.store = store
	return b
}

// WithRedis backs refresh records with a RedisStore using Config.Store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPostgres backs refresh records with a PostgresStore using Config.Store.
// The schema must already be migrated.
func (b *Builder) WithPostgres(db *sql.DB) *Builder {
	b.postgres = db
	return b
}

func (b *Builder) WithUserDirectory(dir UserDirectory) *Builder {
	b.directory = dir
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now for signing, verification and record timestamps.
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

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.directory == nil {
		return nil, fmt.Errorf("%w: user directory required", ErrEngineNotReady)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	storeOpts := []refresh.Option{
		refresh.WithOpTimeout(cfg.Store.OpTimeout),
		refresh.WithClock(now),
	}
	if cfg.Store.KeyPrefix != "" {
		storeOpts = append(storeOpts, refresh.WithPrefix(cfg.Store.KeyPrefix))
	}

	store := b.store
	switch {
	case store != nil:
	case b.redis != nil:
		store = refresh.NewRedisStore(b.redis, storeOpts...)
	case b.postgres != nil:
		store = refresh.NewPostgresStore(b.postgres, storeOpts...)
	default:
		return nil, fmt.Errorf("%w: refresh store required", ErrEngineNotReady)
	}

	signer, err := jwt.NewSigner(jwt.Config{
		Secret: cloneBytes(cfg.Signing.Secret),
		Issuer: cfg.Signing.Issuer,
		Leeway: cfg.Signing.Leeway,
		Now:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	engine := &Engine{
		config:    cloneConfig(cfg),
		signer:    signer,
		store:     store,
		directory: b.directory,
		logger:    logger.With(zap.String("component", "staffauth")),
		now:       now,
		metrics: internalmetrics.New(internalmetrics.Config{
			Enabled:                 cfg.Metrics.Enabled,
			EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
		}),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}
	engine.minter = flows.Minter{
		Encode:     signer.Encode,
		Now:        now,
		AccessTTL:  cfg.TTL.Access,
		RefreshTTL: cfg.TTL.Refresh,
	}
	engine.deps = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
