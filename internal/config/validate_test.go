package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Server: Server{Host: "0.0.0.0", Port: 8080},
		DB: DB{
			Host: "localhost", Port: 5432, User: "usagegate",
			Password: "secret", Name: "usagegate", SSLMode: "disable", MaxConns: 25,
		},
		Redis: Redis{Host: "localhost", Port: 6379},
		Auth: Auth{
			Secret:   "service-secret-that-is-at-least-32-chars",
			Issuer:   "usagegate",
			Audience: "usagegate-engine",
		},
		Engine: Engine{
			StorageTimeout:      5 * time.Second,
			AbuseGuardMaxReqs:   300,
			AbuseGuardWindowSec: 60,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestValidate_AuthSecretTooShort(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Secret = "short"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "AUTH_SECRET") {
		t.Fatalf("expected AUTH_SECRET error, got: %v", err)
	}
}

func TestValidate_DBPasswordRequired(t *testing.T) {
	cfg := validConfig()
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "DB_PASSWORD is required") {
		t.Fatalf("expected DB_PASSWORD required error, got: %v", err)
	}
}

func TestValidate_PortRanges(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	cfg.DB.Port = 70000
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SERVER_PORT") || !strings.Contains(err.Error(), "DB_PORT") {
		t.Fatalf("expected port range errors, got: %v", err)
	}
}

func TestValidate_StorageTimeoutPositive(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.StorageTimeout = 0
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "ENGINE_STORAGE_TIMEOUT") {
		t.Fatalf("expected storage timeout error, got: %v", err)
	}
}

func TestValidate_AbuseGuardBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Engine.AbuseGuardMaxReqs = 0
	cfg.Engine.AbuseGuardWindowSec = -1
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "ENGINE_ABUSE_MAX_REQS") || !strings.Contains(err.Error(), "ENGINE_ABUSE_WINDOW_SEC") {
		t.Fatalf("expected abuse guard errors, got: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.Secret = ""
	cfg.DB.Password = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "AUTH_SECRET") || !strings.Contains(err.Error(), "DB_PASSWORD") {
		t.Fatalf("expected both errors collected, got: %v", err)
	}
}
