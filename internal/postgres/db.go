package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-service/config"
	"github.com/cwrk-planet/chat-service/internal/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
)

const pingTimeout = 5 * time.Second

// DB пул сообщений и членства; Ping заодно публикует состояние пула.
type DB struct {
	Pool *pgxpool.Pool
}

// Open поднимает пул по секции postgres, проверяет связь и,
// если postgres.migrate включён, создаёт схему messages/group_members.
func Open(ctx context.Context, cfg config.Postgres) (*DB, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	db := &DB{Pool: pool}

	if err := db.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if cfg.Migrate {
		if err := EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("postgres schema ensured", "app", pc.ConnConfig.RuntimeParams["application_name"])
	}
	return db, nil
}

func poolConfig(cfg config.Postgres) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = min(cfg.MinConns, pc.MaxConns)
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod > 0 {
		pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.ApplicationName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	return pc, nil
}

// Ping для /readyz и grpc health.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	st := db.Pool.Stat()
	publishPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns(), st.MaxConns())

	return db.Pool.Ping(ctx)
}

func (db *DB) Close() {
	db.Pool.Close()
}

func publishPoolStats(total, idle, acquired, maxConns int32) {
	metrics.PGPoolConns.WithLabelValues("total").Set(float64(total))
	metrics.PGPoolConns.WithLabelValues("idle").Set(float64(idle))
	metrics.PGPoolConns.WithLabelValues("acquired").Set(float64(acquired))
	metrics.PGPoolConns.WithLabelValues("max").Set(float64(maxConns))
}
