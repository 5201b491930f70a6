// Command staffauth-server runs the staff credential API over HTTP and a gRPC
// health endpoint guarded by the same access check.
//
// Configuration comes from an optional YAML file (-config) overlaid with
// STAFFAUTH_* environment variables; see internal/config.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/MrEthical07/staffauth/internal/config"
	"github.com/MrEthical07/staffauth/internal/obs"
)

func main() {
	configPath := flag.String("config", os.Getenv("STAFFAUTH_CONFIG"), "path to a YAML config file")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := obs.NewLogger(cfg.Log.AsLoggerConfig(cfg.App))
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting staffauth", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	app, err := bootstrap(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}
	defer app.close()

	reg, grpcMetrics := newRegistry(app.engine)
	httpSrv, err := buildHTTPServer(cfg, logger, app.engine, reg)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}

	grpcServer, grpcLn, health, err := buildGRPCServer(cfg, app.engine, grpcMetrics)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}
	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, cfg, logger) }()

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal")
	case err := <-grpcErrCh:
		if err != nil {
			logger.Error("grpc serve", zap.Error(err))
		}
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}

	health.Shutdown()
	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("bye")
}
