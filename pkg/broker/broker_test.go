package broker_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/assay/pkg/broker"
)

func TestFinalize(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg := broker.Config{}
		if err := cfg.Finalize(nil); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if cfg.Addr != "localhost:6379" || cfg.PoolSize != 20 || cfg.DialTimeout != "5s" {
			t.Errorf("defaults: %+v", cfg)
		}
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("TEST_REDIS_ADDR", "redis:6380")
		t.Setenv("TEST_REDIS_DB", "2")

		cfg := broker.Config{}
		if err := cfg.Finalize(&broker.Env{Addr: "TEST_REDIS_ADDR", DB: "TEST_REDIS_DB"}); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if cfg.Addr != "redis:6380" || cfg.DB != 2 {
			t.Errorf("env overrides: %+v", cfg)
		}
	})

	t.Run("invalid timeout", func(t *testing.T) {
		cfg := broker.Config{ReadTimeout: "fast"}
		err := cfg.Finalize(nil)
		if err == nil || !strings.Contains(err.Error(), "read_timeout") {
			t.Errorf("got %v, want read_timeout error", err)
		}
	})
}

func TestPingUnreachable(t *testing.T) {
	cfg := broker.Config{Addr: "127.0.0.1:1", DialTimeout: "200ms"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	sys := broker.New(&cfg, slog.Default())
	defer sys.Client().Close()

	if err := sys.Ping(context.Background()); err == nil {
		t.Error("expected ping error against closed port")
	}
}
