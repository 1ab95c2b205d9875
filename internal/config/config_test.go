package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestSetDefaultsInventory(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults failed: %v", err)
	}
	if cfg.Inventory.Backend != "database" {
		t.Fatalf("default backend want database got %s", cfg.Inventory.Backend)
	}
	if cfg.Inventory.SyntheticFallback {
		t.Fatalf("synthetic fallback must be disabled by default")
	}
	if cfg.Inventory.AllocateMaxRetries != 3 {
		t.Fatalf("default retries want 3 got %d", cfg.Inventory.AllocateMaxRetries)
	}
	if cfg.Inventory.MaxAllocateQuantity != 1000 {
		t.Fatalf("default max allocate quantity want 1000 got %d", cfg.Inventory.MaxAllocateQuantity)
	}
	if cfg.RateLimit.Checkout.Quota != 30 {
		t.Fatalf("default checkout limit want 30 got %d", cfg.RateLimit.Checkout.Quota)
	}
}

func TestInventoryConfigNormalize(t *testing.T) {
	cfg := InventoryConfig{Backend: " MEMORY ", AllocateMaxRetries: 0, StatsCacheTTLSeconds: -1}
	cfg.Normalize()
	if cfg.Backend != "memory" {
		t.Fatalf("backend want memory got %s", cfg.Backend)
	}
	if cfg.AllocateMaxRetries != 1 {
		t.Fatalf("retries want 1 got %d", cfg.AllocateMaxRetries)
	}
	if cfg.StatsCacheTTLSeconds != 0 {
		t.Fatalf("ttl want 0 got %d", cfg.StatsCacheTTLSeconds)
	}
	if cfg.MaxAllocateQuantity != 1000 {
		t.Fatalf("max allocate quantity want 1000 got %d", cfg.MaxAllocateQuantity)
	}

	unknown := InventoryConfig{Backend: "redis"}
	unknown.Normalize()
	if unknown.Backend != "database" {
		t.Fatalf("unknown backend should fall back to database, got %s", unknown.Backend)
	}
}
