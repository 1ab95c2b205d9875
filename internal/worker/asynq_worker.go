package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/provider"
	"github.com/matajir-next/internal/queue"
	"github.com/matajir-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskInventoryReconcile, c.handleInventoryReconcile)
	mux.HandleFunc(queue.TaskInventoryLowStockAlert, c.handleLowStockAlert)
	mux.HandleFunc(queue.TaskInventoryReleaseRetry, c.handleReleaseRetry)
}

func (c *Consumer) handleInventoryReconcile(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_inventory_reconcile_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.InventoryReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_inventory_reconcile_unmarshal_failed", "error", err)
		return err
	}
	if c.InventoryService == nil {
		logger.Warnw("worker_inventory_reconcile_skip_service_nil", "product_id", payload.ProductID)
		return nil
	}
	recounts, err := c.InventoryService.Reconcile(ctx, strings.TrimSpace(payload.ProductID))
	if err != nil {
		if errors.Is(err, service.ErrProductNotFound) {
			logger.Debugw("worker_inventory_reconcile_skip_product_not_found", "product_id", payload.ProductID)
			return nil
		}
		logger.Warnw("worker_inventory_reconcile_failed", "product_id", payload.ProductID, "error", err)
		return err
	}
	logger.Debugw("worker_inventory_reconcile_done", "product_id", payload.ProductID, "products", len(recounts))
	return nil
}

func (c *Consumer) handleLowStockAlert(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_low_stock_alert_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.InventoryLowStockAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_low_stock_alert_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.ProductID) == "" {
		logger.Debugw("worker_low_stock_alert_skip_invalid_payload")
		return nil
	}
	logger.Ctx(ctx).Warnw("inventory_low_stock",
		"product_id", payload.ProductID,
		"stock", payload.Stock,
		"threshold", payload.Threshold,
	)
	return nil
}

func (c *Consumer) handleReleaseRetry(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_release_retry_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.InventoryReleaseRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_release_retry_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.ProductID) == "" || strings.TrimSpace(payload.OrderID) == "" || len(payload.Codes) == 0 {
		logger.Debugw("worker_release_retry_skip_invalid_payload", "product_id", payload.ProductID, "order_id", payload.OrderID)
		return nil
	}
	if c.AllocatorService == nil {
		logger.Warnw("worker_release_retry_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	released, err := c.AllocatorService.Release(ctx, payload.ProductID, payload.OrderID, payload.Codes)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			logger.Debugw("worker_release_retry_skip_invalid", "order_id", payload.OrderID, "error", err)
			return nil
		}
		logger.Warnw("worker_release_retry_failed", "product_id", payload.ProductID, "order_id", payload.OrderID, "error", err)
		return err
	}
	logger.Infow("worker_release_retry_done",
		"product_id", payload.ProductID,
		"order_id", payload.OrderID,
		"released", released,
	)
	return nil
}
