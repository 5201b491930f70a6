package main

import (
	"net/http"
	"time"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/MrEthical07/staffauth"
	"github.com/MrEthical07/staffauth/internal/config"
	"github.com/MrEthical07/staffauth/internal/obs"
	"github.com/MrEthical07/staffauth/middleware"
	promexport "github.com/MrEthical07/staffauth/metrics/export/prometheus"
	"github.com/MrEthical07/staffauth/transport/httpapi"
)

func newRegistry(engine *staffauth.Engine) (*prometheus.Registry, *grpcprometheus.ServerMetrics) {
	reg := prometheus.NewRegistry()
	grpcMetrics := grpcprometheus.NewServerMetrics()
	grpcMetrics.EnableHandlingTimeHistogram()

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(engine),
		grpcMetrics,
	)
	return reg, grpcMetrics
}

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, engine *staffauth.Engine, reg *prometheus.Registry) (*http.Server, error) {
	clientIP, err := middleware.TrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}
	api := httpapi.NewHandler(engine, logger, httpapi.WithClientIP(clientIP)).Routes()

	root := http.NewServeMux()
	root.Handle("/auth/", otelhttp.NewHandler(api, "staffauth.http"))
	root.Handle("/metrics", obs.MetricsHandler(reg))
	root.Handle("/healthz", obs.HealthHandler(engine.Ping))

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           root,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
