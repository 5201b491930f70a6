package main

import (
	"net"

	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/MrEthical07/staffauth"
	"github.com/MrEthical07/staffauth/internal/config"
	"github.com/MrEthical07/staffauth/middleware"
	"github.com/MrEthical07/staffauth/transport/grpcapi"
)

// Every unary method not listed here goes through UnaryGuard.
var publicMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
}

func buildGRPCServer(cfg *config.Config, engine *staffauth.Engine, grpcMetrics *grpcprometheus.ServerMetrics) (*grpc.Server, net.Listener, *health.Server, error) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			middleware.UnaryGuard(engine, publicMethods),
		),
		grpc.ChainStreamInterceptor(
			grpcMetrics.StreamServerInterceptor(),
		),
	)

	grpcapi.RegisterIdentityServer(grpcServer, grpcapi.IdentityServer{})

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	ln, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return nil, nil, nil, err
	}
	return grpcServer, ln, healthSrv, nil
}

func serveGRPC(s *grpc.Server, ln net.Listener, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("grpc listening", zap.String("addr", cfg.Server.GRPCAddr))
	return s.Serve(ln)
}
