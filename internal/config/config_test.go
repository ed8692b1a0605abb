package config

import (
	"strings"
	"testing"
	"time"

	"cabride/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want 8080", cfg.Server.Port)
	}
	if cfg.Policy.FreshnessWindow != 60*time.Minute {
		t.Errorf("FreshnessWindow = %v, want 60m", cfg.Policy.FreshnessWindow)
	}
	if cfg.Policy.CancelGracePeriod != 3*time.Minute {
		t.Errorf("CancelGracePeriod = %v, want 3m", cfg.Policy.CancelGracePeriod)
	}
	if cfg.Policy.CustomerCancelFine != 50 || cfg.Policy.DriverCancelFine != 30 {
		t.Errorf("fines = %v/%v, want 50/30", cfg.Policy.CustomerCancelFine, cfg.Policy.DriverCancelFine)
	}
	if cfg.Policy.NearbyRadiusKm != 10 {
		t.Errorf("NearbyRadiusKm = %v, want 10", cfg.Policy.NearbyRadiusKm)
	}
	if cfg.Events.Sink != "none" {
		t.Errorf("Events.Sink = %q, want none", cfg.Events.Sink)
	}
	for _, vt := range domain.VehicleTypes {
		if cfg.Policy.FarePerKm[vt] <= 0 {
			t.Errorf("FarePerKm[%s] not set", vt)
		}
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CANCEL_GRACE_PERIOD", "5m")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("EVENT_SINK", "KAFKA")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Policy.CancelGracePeriod != 5*time.Minute {
		t.Errorf("CancelGracePeriod = %v, want 5m", cfg.Policy.CancelGracePeriod)
	}
	if len(cfg.Events.KafkaBrokers) != 2 || cfg.Events.KafkaBrokers[1] != "b:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.Events.KafkaBrokers)
	}
	if cfg.Events.Sink != "kafka" {
		t.Errorf("Events.Sink = %q, want kafka", cfg.Events.Sink)
	}
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REDIS_DB", "zero")
	t.Setenv("PAYMENT_PROVIDER", "stripe")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}

	msg := err.Error()
	for _, want := range []string{"JWT_SECRET", "REDIS_DB", "STRIPE_API_KEY"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q does not mention %s", msg, want)
		}
	}
}
