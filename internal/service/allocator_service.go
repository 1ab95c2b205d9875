package service

import (
	"context"
	"errors"
	"strings"

	"github.com/matajir-next/internal/cache"
	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/queue"
	"github.com/matajir-next/internal/repository"
	"github.com/matajir-next/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AllocationKind 分配结果类型
type AllocationKind string

const (
	// AllocationAllocated 全部来自卡码池
	AllocationAllocated AllocationKind = constants.AllocationKindAllocated
	// AllocationSyntheticFallback 部分或全部为兜底生成
	AllocationSyntheticFallback AllocationKind = constants.AllocationKindSyntheticFallback
)

// Allocation 一次分配的结果
type Allocation struct {
	ProductID      string         `json:"product_id"`
	OrderID        string         `json:"order_id"`
	Codes          []string       `json:"codes"`
	Kind           AllocationKind `json:"kind"`
	SyntheticCount int            `json:"synthetic_count"`
	StockAfter     int64          `json:"stock_after"`
}

// InventoryTaskPublisher 库存异步任务发布接口
type InventoryTaskPublisher interface {
	EnqueueLowStockAlert(payload queue.InventoryLowStockAlertPayload) error
	EnqueueReleaseRetry(payload queue.InventoryReleaseRetryPayload) error
}

// AllocatorOptions 分配器配置
type AllocatorOptions struct {
	SyntheticFallback bool
	MaxRetries        int
	LowStockThreshold int
	// MaxQuantity 单次分配件数上限，<=0 使用 defaultMaxAllocateQuantity
	MaxQuantity int
	Generate    repository.CodeGenerator
}

const defaultMaxAllocateQuantity = 1000

// AllocatorService 卡码分配服务，唯一负责 available -> sold 的状态流转
type AllocatorService struct {
	store      repository.InventoryStore
	options    AllocatorOptions
	publisher  InventoryTaskPublisher
	statsCache cache.Store
	metrics    *telemetry.InventoryMetrics
	tracer     trace.Tracer
}

// NewAllocatorService 创建卡码分配服务
func NewAllocatorService(store repository.InventoryStore, options AllocatorOptions, publisher InventoryTaskPublisher, statsCache cache.Store, metrics *telemetry.InventoryMetrics) *AllocatorService {
	if options.MaxRetries < 1 {
		options.MaxRetries = 1
	}
	if options.MaxQuantity <= 0 {
		options.MaxQuantity = defaultMaxAllocateQuantity
	}
	if options.Generate == nil {
		options.Generate = GenerateSyntheticCode
	}
	if statsCache == nil {
		statsCache = cache.NoopStore{}
	}
	return &AllocatorService{
		store:      store,
		options:    options,
		publisher:  publisher,
		statsCache: statsCache,
		metrics:    metrics,
		tracer:     telemetry.Tracer(),
	}
}

// Allocate 为订单原子地分配 quantity 个卡码；库存不足时整体失败且不修改任何卡码
func (s *AllocatorService) Allocate(ctx context.Context, productID string, quantity int, orderID string) (*Allocation, error) {
	productID = strings.TrimSpace(productID)
	orderID = strings.TrimSpace(orderID)
	if productID == "" {
		return nil, invalidRequest("product id is required")
	}
	if orderID == "" {
		return nil, invalidRequest("order id is required")
	}
	if err := s.checkQuantity(quantity); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "inventory.allocate", trace.WithAttributes(
		attribute.String("product_id", productID),
		attribute.String("order_id", orderID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	allocation, err := s.allocate(ctx, productID, quantity, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		outcome := "error"
		if errors.Is(err, ErrInsufficientStock) {
			outcome = "insufficient_stock"
		}
		s.metrics.RecordAllocation(ctx, productID, outcome, 0, 0)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("allocation_kind", string(allocation.Kind)),
		attribute.Int("synthetic_count", allocation.SyntheticCount),
	)
	s.metrics.RecordAllocation(ctx, productID, string(allocation.Kind), len(allocation.Codes), allocation.SyntheticCount)
	return allocation, nil
}

// MaxQuantity 单次分配件数上限
func (s *AllocatorService) MaxQuantity() int {
	return s.options.MaxQuantity
}

func (s *AllocatorService) checkQuantity(quantity int) error {
	if quantity < 1 {
		return invalidRequest("quantity must be positive, got %d", quantity)
	}
	if quantity > s.options.MaxQuantity {
		return invalidRequest("quantity %d exceeds limit %d", quantity, s.options.MaxQuantity)
	}
	return nil
}

func (s *AllocatorService) allocate(ctx context.Context, productID string, quantity int, orderID string) (*Allocation, error) {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, newStorageError("get product", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	req := repository.AllocateRequest{
		ProductID: productID,
		Quantity:  quantity,
		OrderID:   orderID,
	}
	if s.options.SyntheticFallback {
		req.Generate = s.options.Generate
	}

	var result *repository.AllocateResult
	for attempt := 1; attempt <= s.options.MaxRetries; attempt++ {
		result, err = s.store.Allocate(ctx, req)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrAllocationConflict) {
			break
		}
		s.metrics.RecordConflictRetry(ctx, productID)
		logger.Ctx(ctx).Warnw("inventory_allocate_conflict_retry",
			"product_id", productID,
			"order_id", orderID,
			"attempt", attempt,
		)
	}
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCodesShort):
			return nil, &ItemUnavailableError{ProductID: productID, Requested: quantity}
		case errors.Is(err, repository.ErrProductMissing):
			return nil, ErrProductNotFound
		default:
			return nil, newStorageError("allocate", err)
		}
	}

	allocation := &Allocation{
		ProductID:      productID,
		OrderID:        orderID,
		Codes:          result.Codes,
		Kind:           AllocationAllocated,
		SyntheticCount: result.Synthetic,
		StockAfter:     result.Stock,
	}
	if result.Synthetic > 0 {
		allocation.Kind = AllocationSyntheticFallback
		logger.Ctx(ctx).Warnw("inventory_synthetic_fallback_used",
			"product_id", productID,
			"order_id", orderID,
			"synthetic_count", result.Synthetic,
			"requested", quantity,
		)
	}

	s.invalidateStats(ctx, productID)
	s.checkLowStock(ctx, productID, product.LowStockThreshold, result.Stock)
	return allocation, nil
}

// Release 补偿释放：将订单已占用且未展示的卡码退回可用，仅用于整单回滚与未展示订单作废
func (s *AllocatorService) Release(ctx context.Context, productID, orderID string, codes []string) (int, error) {
	productID = strings.TrimSpace(productID)
	orderID = strings.TrimSpace(orderID)
	if productID == "" || orderID == "" {
		return 0, invalidRequest("product id and order id are required")
	}
	if len(codes) == 0 {
		return 0, nil
	}

	ctx, span := s.tracer.Start(ctx, "inventory.release", trace.WithAttributes(
		attribute.String("product_id", productID),
		attribute.String("order_id", orderID),
		attribute.Int("codes", len(codes)),
	))
	defer span.End()

	result, err := s.store.Release(ctx, productID, orderID, codes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if errors.Is(err, repository.ErrProductMissing) {
			return 0, ErrProductNotFound
		}
		return 0, newStorageError("release", err)
	}
	if result.Released != len(codes) {
		logger.Ctx(ctx).Infow("inventory_release_partial",
			"product_id", productID,
			"order_id", orderID,
			"requested", len(codes),
			"released", result.Released,
			"code_fingerprints", codeFingerprints(codes),
		)
	}
	s.metrics.RecordRelease(ctx, productID, result.Released)
	s.invalidateStats(ctx, productID)
	return result.Released, nil
}

// ScheduleReleaseRetry 同步释放失败时投递重试任务，避免卡码长期滞留在已售状态
func (s *AllocatorService) ScheduleReleaseRetry(ctx context.Context, productID, orderID string, codes []string) error {
	if s.publisher == nil {
		return errors.New("task publisher unavailable")
	}
	err := s.publisher.EnqueueReleaseRetry(queue.InventoryReleaseRetryPayload{
		ProductID: productID,
		OrderID:   orderID,
		Codes:     codes,
	})
	if err != nil {
		logger.Ctx(ctx).Errorw("inventory_release_retry_enqueue_failed",
			"product_id", productID,
			"order_id", orderID,
			"code_fingerprints", codeFingerprints(codes),
			"error", err,
		)
	}
	return err
}

func (s *AllocatorService) invalidateStats(ctx context.Context, productID string) {
	if err := s.statsCache.Del(ctx, cache.InventoryStatsKeys(productID)...); err != nil {
		logger.Ctx(ctx).Warnw("inventory_stats_cache_invalidate_failed", "product_id", productID, "error", err)
	}
}

func (s *AllocatorService) checkLowStock(ctx context.Context, productID string, productThreshold int, stock int64) {
	threshold := s.options.LowStockThreshold
	if productThreshold > 0 {
		threshold = productThreshold
	}
	if threshold <= 0 || stock > int64(threshold) || s.publisher == nil {
		return
	}
	if err := s.publisher.EnqueueLowStockAlert(queue.InventoryLowStockAlertPayload{
		ProductID: productID,
		Stock:     stock,
		Threshold: threshold,
	}); err != nil {
		logger.Ctx(ctx).Warnw("inventory_low_stock_alert_enqueue_failed", "product_id", productID, "error", err)
	}
}
