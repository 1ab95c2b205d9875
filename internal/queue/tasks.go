package queue

import (
	"encoding/json"

	"github.com/matajir-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskInventoryReconcile 库存计数重算任务
	TaskInventoryReconcile = constants.TaskInventoryReconcile
	// TaskInventoryLowStockAlert 低库存告警任务
	TaskInventoryLowStockAlert = constants.TaskInventoryLowStockAlert
	// TaskInventoryReleaseRetry 补偿释放重试任务
	TaskInventoryReleaseRetry = constants.TaskInventoryReleaseRetry
)

// InventoryReconcilePayload 重算任务载荷，ProductID 为空表示全部商品
type InventoryReconcilePayload struct {
	ProductID string `json:"product_id,omitempty"`
}

// InventoryLowStockAlertPayload 低库存告警载荷
type InventoryLowStockAlertPayload struct {
	ProductID string `json:"product_id"`
	Stock     int64  `json:"stock"`
	Threshold int    `json:"threshold"`
}

// InventoryReleaseRetryPayload 补偿释放失败后的重试载荷
type InventoryReleaseRetryPayload struct {
	ProductID string   `json:"product_id"`
	OrderID   string   `json:"order_id"`
	Codes     []string `json:"codes"`
}

// NewInventoryReconcileTask 创建库存重算任务
func NewInventoryReconcileTask(payload InventoryReconcilePayload) (*asynq.Task, error) {
	return newJSONTask(TaskInventoryReconcile, payload)
}

// NewInventoryLowStockAlertTask 创建低库存告警任务
func NewInventoryLowStockAlertTask(payload InventoryLowStockAlertPayload) (*asynq.Task, error) {
	return newJSONTask(TaskInventoryLowStockAlert, payload)
}

// NewInventoryReleaseRetryTask 创建补偿释放重试任务
func NewInventoryReleaseRetryTask(payload InventoryReleaseRetryPayload) (*asynq.Task, error) {
	return newJSONTask(TaskInventoryReleaseRetry, payload)
}

func newJSONTask(taskType string, payload interface{}) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body), nil
}
