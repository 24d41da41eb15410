package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/postgres"
	"github.com/cwrk-planet/chat-service/internal/redisstore"
	"github.com/cwrk-planet/chat-service/internal/relay"
	"github.com/cwrk-planet/chat-service/internal/security"
	"github.com/cwrk-planet/chat-service/internal/service"
	grpcx "github.com/cwrk-planet/chat-service/internal/transport/grpc"
	httpx "github.com/cwrk-planet/chat-service/internal/transport/http"
	"github.com/cwrk-planet/chat-service/internal/transport/ws"
	"github.com/cwrk-planet/chat-service/pkg/logger"
	"github.com/cwrk-planet/chat-service/pkg/tracing"

	"golang.org/x/sync/errgroup"
)

// storage то, что отдаёт выбранный драйвер хранилища.
type storage struct {
	messages relay.MessageStore
	history  service.HistoryRepository
	members  service.MembershipChecker // nil: проверки членства нет
	ping     func(ctx context.Context) error
	close    func()
}

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
		Attrs:     []slog.Attr{slog.String("storage", cfg.Storage.Driver)},
	})
	slog.Info("starting chat-service", "env", cfg.Logging.Env, "version", cfg.Logging.Version)

	if err := run(cfg); err != nil {
		slog.Error("chat-service stopped with error", "err", err)
		os.Exit(1)
	}
	slog.Info("stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init(cfg.Tracing.SampleRatio)

	// --- storage ---
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	// --- auth ---
	keys, err := security.LoadKeys(security.KeyConfig{
		Alg:            cfg.Auth.Alg,
		Secret:         cfg.Auth.Secret,
		PrivateKeyPath: cfg.Auth.PrivateKeyPath,
		PublicKeyPath:  cfg.Auth.PublicKeyPath,
	})
	if err != nil {
		return fmt.Errorf("load jwt keys: %w", err)
	}
	verifier := security.NewJWTVerifier(keys, security.Options{
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
		ClockSkew: cfg.Auth.ClockSkew,
	})

	// --- relay ---
	registry := relay.NewRegistry()
	rl := relay.New(registry, st.messages, relay.Options{
		MaxContentLength: cfg.Relay.MaxContentLength,
		StoreTimeout:     cfg.Relay.StoreTimeout,
		Logger:           logger.L(),
	})
	msgSvc := service.NewMessageService(st.history, st.members, rl)

	// --- WS & HTTP ---
	wsServer := ws.NewServer(verifier, rl, ws.Options{
		PingInterval:   cfg.Relay.PingInterval,
		WriteTimeout:   cfg.Relay.WriteTimeout,
		MaxFrameBytes:  cfg.Relay.MaxFrameBytes,
		SendBuffer:     cfg.Relay.SendBuffer,
		InboundBuffer:  cfg.Relay.InboundBuffer,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	router := httpx.NewRouter(httpx.Deps{
		Handler:        httpx.NewHandler(msgSvc),
		WS:             wsServer.HandleWS,
		Verifier:       verifier,
		Ready:          st.ping,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- gRPC ---
	grpcServer, healthSrv := grpcx.NewServer(cfg.HTTP.RequestTimeout)

	// --- run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		grpcx.Watch(gctx, healthSrv, st.ping, cfg.GRPC.HealthEvery)
		return nil
	})

	// --- graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// ws-соединения захвачены и http.Server.Shutdown их не видит
		if err := wsServer.Shutdown(shCtx); err != nil {
			slog.Warn("ws shutdown", "err", err)
		}
		if err := httpSrv.Shutdown(shCtx); err != nil {
			slog.Warn("http shutdown", "err", err)
		}
		grpcServer.GracefulStop()
		if err := shutdownTracing(shCtx); err != nil {
			slog.Warn("tracing shutdown", "err", err)
		}
		return nil
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverRedis:
		store, err := redisstore.New(ctx, cfg.Redis.URL, cfg.Redis.MessageTTL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		return &storage{
			messages: store,
			history:  store,
			ping:     store.Ping,
			close: func() {
				if err := store.Close(); err != nil {
					slog.Warn("redis close", "err", err)
				}
			},
		}, nil

	default:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		repo := postgres.NewMessageRepository(db.Pool)
		return &storage{
			messages: repo,
			history:  repo,
			members:  postgres.NewMemberRepository(db.Pool),
			ping:     db.Ping,
			close:    db.Close,
		}, nil
	}
}
