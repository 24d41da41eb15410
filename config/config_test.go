package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const minimalYAML = `
http:
  addr: ":8080"
grpc:
  addr: ":9090"
postgres:
  dsn: "postgres://localhost/chat"
auth:
  secret: "abc"
`

func TestParse_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Parse([]byte(minimalYAML))
	req.NoError(err)

	req.Equal(DriverPostgres, cfg.Storage.Driver)
	req.Equal("chat-service", cfg.Logging.Service)
	req.Equal("dev", cfg.Logging.Env)
	req.Equal("std", cfg.Logging.Backend)
	req.Equal("HS256", cfg.Auth.Alg)
	req.Equal(24*time.Hour, cfg.Auth.AccessTTL)
	req.Equal(4000, cfg.Relay.MaxContentLength)
	req.Equal(64, cfg.Relay.SendBuffer)
	req.Equal(15*time.Second, cfg.Relay.PingInterval)
	req.Equal(int64(1<<20), cfg.Relay.MaxFrameBytes)
	req.Equal(10*time.Second, cfg.HTTP.ReadTimeout)
	req.Equal([]string{"*"}, cfg.HTTP.AllowedOrigins)
	req.Equal(10*time.Second, cfg.ShutdownTimeout)
}

func TestParse_Durations(t *testing.T) {
	req := require.New(t)

	cfg, err := Parse([]byte(minimalYAML + `
relay:
  pingInterval: 3s
  writeTimeout: 250ms
`))
	req.NoError(err)
	req.Equal(3*time.Second, cfg.Relay.PingInterval)
	req.Equal(250*time.Millisecond, cfg.Relay.WriteTimeout)
}

func TestParse_EnvOverrides(t *testing.T) {
	req := require.New(t)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DATABASE_URL", "postgres://env/chat")

	cfg, err := Parse([]byte(minimalYAML))
	req.NoError(err)
	req.Equal("from-env", cfg.Auth.Secret)
	req.Equal("postgres://env/chat", cfg.Postgres.DSN)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing http addr", yaml: "grpc: {addr: ':9090'}\npostgres: {dsn: x}\nauth: {secret: x}\n"},
		{name: "missing dsn", yaml: "http: {addr: ':8080'}\ngrpc: {addr: ':9090'}\nauth: {secret: x}\n"},
		{name: "redis without url", yaml: minimalYAML + "storage: {driver: redis}\n"},
		{name: "unknown driver", yaml: minimalYAML + "storage: {driver: mongo}\n"},
		{name: "unknown alg", yaml: "http: {addr: ':8080'}\ngrpc: {addr: ':9090'}\npostgres: {dsn: x}\nauth: {alg: ES512}\n"},
		{name: "rs256 without keys", yaml: "http: {addr: ':8080'}\ngrpc: {addr: ':9090'}\npostgres: {dsn: x}\nauth: {alg: RS256}\n"},
		{name: "bad env", yaml: minimalYAML + "logging: {env: qa}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			t.Setenv("DATABASE_URL", "")
			t.Setenv("REDIS_URL", "")
			t.Setenv("APP_ENV", "")
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestLoadConfig_FromPath(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	req.NoError(os.WriteFile(path, []byte(minimalYAML), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal(":8080", cfg.HTTP.Addr)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadConfig()
	require.Error(t, err)
}
