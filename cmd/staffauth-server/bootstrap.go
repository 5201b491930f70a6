package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/staffauth"
	"github.com/MrEthical07/staffauth/directory"
	"github.com/MrEthical07/staffauth/internal/config"
	"github.com/MrEthical07/staffauth/password"
	"github.com/MrEthical07/staffauth/refresh"
)

type deps struct {
	engine  *staffauth.Engine
	closers []func() error
	logger  *zap.Logger
}

func (d *deps) close() {
	// reverse order: the engine drains its audit queue before the store client closes
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.logger.Warn("close", zap.Error(err))
		}
	}
}

func bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*deps, error) {
	d := &deps{logger: logger}
	fail := func(err error) (*deps, error) {
		d.close()
		return nil, err
	}

	engineCfg, err := cfg.Engine()
	if err != nil {
		return fail(err)
	}

	dir, err := seedDirectory(cfg, logger)
	if err != nil {
		return fail(err)
	}

	b := staffauth.New().
		WithConfig(engineCfg).
		WithUserDirectory(dir).
		WithLogger(logger)

	switch cfg.Store.Driver {
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		d.closers = append(d.closers, rdb.Close)
		b = b.WithRedis(rdb)
		logger.Info("refresh store", zap.String("driver", "redis"), zap.String("addr", cfg.Store.Redis.Addr))
	case config.DriverPostgres:
		db, err := openPostgres(ctx, cfg, logger)
		if err != nil {
			return fail(err)
		}
		d.closers = append(d.closers, db.Close)
		b = b.WithPostgres(db)
	}

	switch cfg.Audit.Sink {
	case config.SinkLog:
		b = b.WithAuditSink(staffauth.NewZapSink(logger))
	case config.SinkKafka:
		b = b.WithAuditSink(staffauth.NewKafkaSink(cfg.Audit.Kafka.Brokers, cfg.Audit.Kafka.Topic, logger))
		logger.Info("audit to kafka", zap.Strings("brokers", cfg.Audit.Kafka.Brokers), zap.String("topic", cfg.Audit.Kafka.Topic))
	}

	engine, err := b.Build()
	if err != nil {
		return fail(fmt.Errorf("build engine: %w", err))
	}
	d.engine = engine
	d.closers = append(d.closers, engine.Close)

	if err := engine.Ping(ctx); err != nil {
		logger.Warn("refresh store not reachable yet", zap.Error(err))
	}
	return d, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*sql.DB, error) {
	db, err := refresh.OpenPostgres(ctx, cfg.Store.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Postgres.Migrate {
		n, err := refresh.MigratePostgres(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		logger.Info("migrations applied", zap.Int("count", n))
	}
	logger.Info("refresh store", zap.String("driver", "postgres"))
	return db, nil
}

func seedDirectory(cfg *config.Config, logger *zap.Logger) (*directory.Memory, error) {
	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return nil, err
	}
	dir, err := directory.NewMemory(hasher, logger)
	if err != nil {
		return nil, err
	}
	for _, m := range cfg.Directory.Members {
		if _, err := dir.Add(directory.Member{ID: m.ID, Username: m.Username, Password: m.Password, Staff: m.Staff}); err != nil {
			return nil, fmt.Errorf("seed %s: %w", m.Username, err)
		}
	}
	if dir.Len() == 0 {
		logger.Warn("directory is empty, every login will fail")
	}
	return dir, nil
}
