package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

type HTTP struct {
	Addr           string        `yaml:"addr" validate:"required"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	IdleTimeout    time.Duration `yaml:"idleTimeout"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
}

type GRPC struct {
	Addr        string        `yaml:"addr" validate:"required"`
	HealthEvery time.Duration `yaml:"healthEvery"`
}

type Logging struct {
	Env       string `yaml:"env" validate:"omitempty,oneof=dev stage prod"`
	Service   string `yaml:"service"`
	Version   string `yaml:"version"`
	Backend   string `yaml:"backend" validate:"omitempty,oneof=std zap"`
	AddSource bool   `yaml:"addSource"`
	Debug     bool   `yaml:"debug"`
}

type Tracing struct {
	SampleRatio float64 `yaml:"sampleRatio" validate:"gte=0,lte=1"` // 0: по умолчанию 1
}

type Storage struct {
	Driver string `yaml:"driver" validate:"oneof=postgres redis"`
}

type Postgres struct {
	DSN               string        `yaml:"dsn"`
	MaxConns          int32         `yaml:"maxConns" validate:"gte=0"`
	MinConns          int32         `yaml:"minConns" validate:"gte=0"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod"`
	ApplicationName   string        `yaml:"applicationName"`
	Migrate           bool          `yaml:"migrate"`
}

type Redis struct {
	URL        string        `yaml:"url"`
	MessageTTL time.Duration `yaml:"messageTTL"` // 0: хранить бессрочно
}

type Auth struct {
	Alg            string        `yaml:"alg" validate:"oneof=HS256 RS256"`
	Secret         string        `yaml:"secret"`
	PrivateKeyPath string        `yaml:"privateKeyPath"`
	PublicKeyPath  string        `yaml:"publicKeyPath"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	AccessTTL      time.Duration `yaml:"accessTTL"`
	ClockSkew      time.Duration `yaml:"clockSkew"`
}

type Relay struct {
	MaxContentLength int           `yaml:"maxContentLength" validate:"gte=0"`
	SendBuffer       int           `yaml:"sendBuffer" validate:"gte=0"`
	InboundBuffer    int           `yaml:"inboundBuffer" validate:"gte=0"`
	PingInterval     time.Duration `yaml:"pingInterval"`
	WriteTimeout     time.Duration `yaml:"writeTimeout"`
	MaxFrameBytes    int64         `yaml:"maxFrameBytes" validate:"gte=0"`
	StoreTimeout     time.Duration `yaml:"storeTimeout"`
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	GRPC     GRPC     `yaml:"grpc"`
	Logging  Logging  `yaml:"logging"`
	Tracing  Tracing  `yaml:"tracing"`
	Storage  Storage  `yaml:"storage"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Auth     Auth     `yaml:"auth"`
	Relay    Relay    `yaml:"relay"`

	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

var validate = validator.New()

// LoadConfig читает .env (если есть), затем YAML из CONFIG_PATH, затем env-переопределения.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv("APP_ENV"); v != "" && c.Logging.Env == "" {
		c.Logging.Env = strings.ToLower(v)
	}
}

func (c *Config) validate() error {
	c.setDefaults()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
	case DriverRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required")
		}
	}

	switch c.Auth.Alg {
	case "HS256":
		if c.Auth.Secret == "" {
			return errors.New("auth.secret is required for HS256")
		}
	case "RS256":
		if c.Auth.PublicKeyPath == "" && c.Auth.PrivateKeyPath == "" {
			return errors.New("auth.publicKeyPath is required for RS256")
		}
	}
	return nil
}

// установка дефолтов, если значения не указаны
func (c *Config) setDefaults() {
	if c.Logging.Service == "" {
		c.Logging.Service = "chat-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}

	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.WriteTimeout = durationOr(c.HTTP.WriteTimeout, 15*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)
	c.HTTP.RequestTimeout = durationOr(c.HTTP.RequestTimeout, 30*time.Second)
	if len(c.HTTP.AllowedOrigins) == 0 {
		c.HTTP.AllowedOrigins = []string{"*"}
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
	c.GRPC.HealthEvery = durationOr(c.GRPC.HealthEvery, 10*time.Second)

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	if c.Postgres.ApplicationName == "" {
		c.Postgres.ApplicationName = c.Logging.Service
	}

	if c.Auth.Alg == "" {
		c.Auth.Alg = "HS256"
	}
	c.Auth.Alg = strings.ToUpper(c.Auth.Alg)
	c.Auth.AccessTTL = durationOr(c.Auth.AccessTTL, 24*time.Hour)

	if c.Relay.MaxContentLength == 0 {
		c.Relay.MaxContentLength = 4000
	}
	if c.Relay.SendBuffer == 0 {
		c.Relay.SendBuffer = 64
	}
	if c.Relay.InboundBuffer == 0 {
		c.Relay.InboundBuffer = 16
	}
	if c.Relay.MaxFrameBytes == 0 {
		c.Relay.MaxFrameBytes = 1 << 20
	}
	c.Relay.PingInterval = durationOr(c.Relay.PingInterval, 15*time.Second)
	c.Relay.WriteTimeout = durationOr(c.Relay.WriteTimeout, 5*time.Second)
	c.Relay.StoreTimeout = durationOr(c.Relay.StoreTimeout, 5*time.Second)

	c.ShutdownTimeout = durationOr(c.ShutdownTimeout, 10*time.Second)
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
