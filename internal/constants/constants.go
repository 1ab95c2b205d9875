package constants

// 卡码状态常量
const (
	CodeStatusAvailable = "available"
	CodeStatusSold      = "sold"
)

// 分配结果类型常量
const (
	AllocationKindAllocated         = "allocated"
	AllocationKindSyntheticFallback = "synthetic_fallback"
)

// 订单状态常量
const (
	OrderStatusCompleted = "completed"
	OrderStatusVoided    = "voided"
)

// 导入来源常量
const (
	CodeBatchSourceManual = "manual"
	CodeBatchSourceCSV    = "csv"
)

// 库存存储后端常量
const (
	InventoryBackendDatabase = "database"
	InventoryBackendMemory   = "memory"
)

// 导出文件分段标题
const (
	ExportSectionAvailable = "Non-sold"
	ExportSectionSold      = "Sold"
)

// 队列与任务常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"

	TaskInventoryReconcile     = "inventory:reconcile"
	TaskInventoryLowStockAlert = "inventory:low_stock_alert"
	TaskInventoryReleaseRetry  = "inventory:release_retry"
)
