package config

import (
	"testing"
	"time"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.KafkaTopic != "ride-events" {
		t.Fatalf("KafkaTopic = %q", cfg.KafkaTopic)
	}
	if cfg.JWTExpiry != 7*24*time.Hour {
		t.Fatalf("JWTExpiry = %v", cfg.JWTExpiry)
	}
}

func TestLoadServerConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("MIGRATE", "TRUE")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadServerConfig()
	if err != nil {
		t.Fatalf("LoadServerConfig: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "a:9092" || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.JWTExpiry != 30*time.Minute {
		t.Fatalf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if !cfg.RunMigrations {
		t.Fatal("RunMigrations not set")
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadServerConfig_Invalid(t *testing.T) {
	t.Setenv("HTTP_READ_TIMEOUT", "not-a-duration")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for invalid duration")
	}

	t.Setenv("HTTP_READ_TIMEOUT", "")
	t.Setenv("PG_DSN", "postgres://localhost/db")
	t.Setenv("MONGO_URI", "mongodb://localhost")
	if _, err := LoadServerConfig(); err == nil {
		t.Fatal("expected error for conflicting store config")
	}
}
