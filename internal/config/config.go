package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server Server
	DB     DB
	Redis  Redis
	NATS   NATS
	Auth   Auth
	Engine Engine
	Log    Log
}

type Server struct {
	Host string
	Port int
}

type DB struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type Redis struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c Redis) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATS struct {
	URL     string
	Enabled bool
}

type Auth struct {
	// Secret signs the service-to-service bearer tokens presented by
	// platform callers (document generation, AI endpoints, billing hooks).
	Secret   string
	Issuer   string
	Audience string
}

// Engine holds tunables for the accounting engine itself.
type Engine struct {
	// StorageTimeout bounds every storage round trip so a degraded
	// database surfaces as a retryable fault instead of a hang.
	StorageTimeout time.Duration

	// MigrationsPath is the directory holding the schema migrations
	// applied at startup.
	MigrationsPath string

	// AbuseGuard is the transport-level per-caller ceiling in front of the
	// engine endpoints. Independent of the per-user RateLimiter.
	AbuseGuardMaxReqs   int
	AbuseGuardWindowSec int

	CORSAllowedOrigins []string
}

type Log struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: Server{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DB{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: Redis{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATS{
			URL:     k.String("nats.url"),
			Enabled: k.Bool("nats.enabled"),
		},
		Auth: Auth{
			Secret:   k.String("auth.secret"),
			Issuer:   k.String("auth.issuer"),
			Audience: k.String("auth.audience"),
		},
		Engine: Engine{
			MigrationsPath:      k.String("engine.migrations.path"),
			AbuseGuardMaxReqs:   k.Int("engine.abuse.max.reqs"),
			AbuseGuardWindowSec: k.Int("engine.abuse.window.sec"),
			CORSAllowedOrigins:  k.Strings("engine.cors.origins"),
		},
		Log: Log{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "usagegate"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "usagegate"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "usagegate"
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "usagegate-engine"
	}
	if cfg.Engine.MigrationsPath == "" {
		cfg.Engine.MigrationsPath = "migrations"
	}
	if cfg.Engine.AbuseGuardMaxReqs == 0 {
		cfg.Engine.AbuseGuardMaxReqs = 300
	}
	if cfg.Engine.AbuseGuardWindowSec == 0 {
		cfg.Engine.AbuseGuardWindowSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	timeoutStr := k.String("engine.storage.timeout")
	if timeoutStr == "" {
		timeoutStr = "5s"
	}
	cfg.Engine.StorageTimeout, err = time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing storage timeout: %w", err)
	}

	return cfg, nil
}
