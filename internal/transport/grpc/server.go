package grpcx

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName под этим именем публикуется статус relay в grpc.health.v1.
const ServiceName = "chat.Relay"

// NewServer gRPC-сервер с интерсепторами, health и reflection.
func NewServer(callTimeout time.Duration) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(callTimeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return s, hs
}

// Watch периодически проверяет хранилище и переключает статус SERVING/NOT_SERVING.
// Блокируется до отмены ctx, после чего выставляет NOT_SERVING.
func Watch(ctx context.Context, hs *health.Server, ping func(ctx context.Context) error, every time.Duration) {
	if every <= 0 {
		every = 10 * time.Second
	}

	check := func() {
		pctx, cancel := context.WithTimeout(ctx, every)
		defer cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err := ping(pctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			slog.Warn("storage check failed", "err", err)
		}
		hs.SetServingStatus("", st)
		hs.SetServingStatus(ServiceName, st)
	}

	check()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			check()
		}
	}
}
