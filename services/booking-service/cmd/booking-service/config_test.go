package main

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://sloty@localhost/sloty")
	for _, k := range []string{"PORT", "GRPC_PORT", "RESERVATION_TIMEOUT", "MAX_QUERY_RANGE_DAYS", "AVAILABILITY_MARK_OCCUPANCY", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTPPort != "8083" || cfg.GRPCPort != "9093" {
		t.Fatalf("unexpected ports %s/%s", cfg.HTTPPort, cfg.GRPCPort)
	}
	if cfg.ReservationTimeout != 5*time.Second {
		t.Fatalf("expected 5s reservation timeout, got %s", cfg.ReservationTimeout)
	}
	if cfg.MaxQueryRangeDays != 62 || cfg.MarkOccupancy {
		t.Fatalf("unexpected engine settings %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://sloty@localhost/sloty")
	t.Setenv("RESERVATION_TIMEOUT", "750ms")
	t.Setenv("AVAILABILITY_MARK_OCCUPANCY", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ReservationTimeout != 750*time.Millisecond || !cfg.MarkOccupancy || len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://sloty@localhost/sloty")

	t.Setenv("RESERVATION_TIMEOUT", "0s")
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for zero reservation timeout")
	}

	t.Setenv("RESERVATION_TIMEOUT", "")
	t.Setenv("MAX_QUERY_RANGE_DAYS", "0")
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for zero query range")
	}

	t.Setenv("MAX_QUERY_RANGE_DAYS", "")
	t.Setenv("DATABASE_URL", "")
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}
