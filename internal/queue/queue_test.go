package queue

import (
	"encoding/json"
	"testing"

	"github.com/matajir-next/internal/config"
	"github.com/matajir-next/internal/constants"
)

func TestNewInventoryReleaseRetryTask(t *testing.T) {
	task, err := NewInventoryReleaseRetryTask(InventoryReleaseRetryPayload{
		ProductID: "p1",
		OrderID:   "o1",
		Codes:     []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("create task failed: %v", err)
	}
	if task.Type() != constants.TaskInventoryReleaseRetry {
		t.Fatalf("task type want %s got %s", constants.TaskInventoryReleaseRetry, task.Type())
	}
	var payload InventoryReleaseRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatalf("unmarshal payload failed: %v", err)
	}
	if payload.OrderID != "o1" || len(payload.Codes) != 2 {
		t.Fatalf("payload mismatch: %+v", payload)
	}
}

func TestDisabledClientIsNoop(t *testing.T) {
	client, err := NewClient(&config.QueueConfig{Enabled: false})
	if err != nil {
		t.Fatalf("create client failed: %v", err)
	}
	if client.Enabled() {
		t.Fatalf("disabled client should report disabled")
	}
	if err := client.EnqueueLowStockAlert(InventoryLowStockAlertPayload{ProductID: "p1"}); err != nil {
		t.Fatalf("disabled enqueue should be noop, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close disabled client failed: %v", err)
	}
}

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(nil)
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("default addr want 127.0.0.1:6379 got %s", opt.Addr)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("default concurrency want 10 got %d", cfg.Concurrency)
	}
	if cfg.Queues[constants.QueueCritical] == 0 {
		t.Fatalf("critical queue should be configured by default")
	}
}
