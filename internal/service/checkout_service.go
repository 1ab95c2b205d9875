package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/models"
	"github.com/matajir-next/internal/repository"
	"github.com/matajir-next/internal/telemetry"

	"github.com/google/uuid"
)

// CheckoutService 支付确认后的下单与交付服务
type CheckoutService struct {
	allocator *AllocatorService
	store     repository.InventoryStore
	orders    repository.OrderRepository
	metrics   *telemetry.InventoryMetrics
}

// NewCheckoutService 创建下单服务
func NewCheckoutService(allocator *AllocatorService, store repository.InventoryStore, orders repository.OrderRepository, metrics *telemetry.InventoryMetrics) *CheckoutService {
	return &CheckoutService{
		allocator: allocator,
		store:     store,
		orders:    orders,
		metrics:   metrics,
	}
}

// CheckoutItem 下单行
type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrderInput 下单输入
type PlaceOrderInput struct {
	OrderNo    string
	UserRef    string
	PaymentRef string
	Items      []CheckoutItem
}

// PlaceOrderResult 下单结果
type PlaceOrderResult struct {
	Order       *models.Order        `json:"order"`
	Codes       models.DeliveryCodes `json:"codes"`
	Allocations []Allocation         `json:"allocations"`
}

// VoidOrderResult 作废结果
type VoidOrderResult struct {
	OrderNo  string `json:"order_no"`
	Released int    `json:"released"`
}

// PlaceOrder 为每一行分配卡码，任一行失败时释放已成功的行并返回错误
func (s *CheckoutService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	lines, err := mergeCheckoutItems(input.Items, s.allocator.MaxQuantity())
	if err != nil {
		return nil, err
	}
	orderNo := strings.TrimSpace(input.OrderNo)
	if orderNo == "" {
		orderNo = generateOrderNo()
	}

	existing, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, newStorageError("get order", err)
	}
	if existing != nil {
		return nil, ErrOrderExists
	}

	products := make(map[string]*models.Product, len(lines))
	for _, line := range lines {
		product, err := s.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, newStorageError("get product", err)
		}
		if product == nil {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductID)
		}
		products[line.ProductID] = product
	}

	allocations := make([]Allocation, 0, len(lines))
	for _, line := range lines {
		allocation, err := s.allocator.Allocate(ctx, line.ProductID, line.Quantity, orderNo)
		if err != nil {
			logger.Ctx(ctx).Warnw("checkout_line_allocate_failed",
				"order_no", orderNo,
				"product_id", line.ProductID,
				"quantity", line.Quantity,
				"error", err,
			)
			s.metrics.RecordCheckoutRollback(ctx, line.ProductID)
			s.rollback(ctx, orderNo, allocations)
			return nil, err
		}
		allocations = append(allocations, *allocation)
	}

	now := time.Now()
	delivery := make(models.DeliveryCodes, len(allocations))
	items := make([]models.OrderItem, 0, len(lines))
	total := models.Money{}
	for i, line := range lines {
		allocation := allocations[i]
		delivery[line.ProductID] = append([]string(nil), allocation.Codes...)
		unitPrice := products[line.ProductID].PriceAmount
		lineTotal := unitPrice.MulInt(line.Quantity)
		total = total.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  unitPrice,
			TotalPrice: lineTotal,
			Allocation: string(allocation.Kind),
			CreatedAt:  now,
		})
	}

	order := &models.Order{
		OrderNo:       orderNo,
		UserRef:       strings.TrimSpace(input.UserRef),
		PaymentRef:    strings.TrimSpace(input.PaymentRef),
		Status:        constants.OrderStatusCompleted,
		TotalAmount:   total,
		DeliveryCodes: delivery,
		Items:         items,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		logger.Ctx(ctx).Errorw("checkout_order_persist_failed", "order_no", orderNo, "error", err)
		s.metrics.RecordCheckoutRollback(ctx, "")
		s.rollback(ctx, orderNo, allocations)
		if errors.Is(err, repository.ErrOrderDuplicated) {
			return nil, ErrOrderExists
		}
		return nil, newStorageError("create order", err)
	}

	logger.Ctx(ctx).Infow("checkout_order_completed",
		"order_no", orderNo,
		"lines", len(lines),
		"total_amount", total.String(),
	)
	return &PlaceOrderResult{
		Order:       order,
		Codes:       delivery.Clone(),
		Allocations: allocations,
	}, nil
}

// rollback 逐个商品释放已分配的卡码，释放失败时投递异步重试
func (s *CheckoutService) rollback(ctx context.Context, orderNo string, allocations []Allocation) {
	for i := len(allocations) - 1; i >= 0; i-- {
		allocation := allocations[i]
		released, err := s.allocator.Release(ctx, allocation.ProductID, orderNo, allocation.Codes)
		if err != nil {
			logger.Ctx(ctx).Errorw("checkout_rollback_release_failed",
				"order_no", orderNo,
				"product_id", allocation.ProductID,
				"error", err,
			)
			_ = s.allocator.ScheduleReleaseRetry(ctx, allocation.ProductID, orderNo, allocation.Codes)
			continue
		}
		logger.Ctx(ctx).Infow("checkout_rollback_released",
			"order_no", orderNo,
			"product_id", allocation.ProductID,
			"released", released,
		)
		if orphaned := orphanedSynthetic(allocation); len(orphaned) > 0 {
			// 合成码释放时被跳过，保持已售状态，留痕供人工作废
			logger.Ctx(ctx).Warnw("checkout_synthetic_orphaned",
				"order_no", orderNo,
				"product_id", allocation.ProductID,
				"synthetic_count", len(orphaned),
				"code_fingerprints", codeFingerprints(orphaned),
			)
		}
	}
}

// orphanedSynthetic 返回分配结果中的合成码，合成码追加在真实卡码之后
func orphanedSynthetic(allocation Allocation) []string {
	if allocation.Kind != AllocationSyntheticFallback || allocation.SyntheticCount <= 0 {
		return nil
	}
	count := min(allocation.SyntheticCount, len(allocation.Codes))
	return allocation.Codes[len(allocation.Codes)-count:]
}

// GetOrder 获取订单
func (s *CheckoutService) GetOrder(ctx context.Context, orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, invalidRequest("order no is required")
	}
	order, err := s.orders.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, newStorageError("get order", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders 分页查询订单
func (s *CheckoutService) ListOrders(ctx context.Context, filter repository.OrderListFilter) ([]models.Order, int64, error) {
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, 0, newStorageError("list orders", err)
	}
	return orders, total, nil
}

// RevealCodes 展示订单卡码并记录首次展示时间，展示后订单不可作废
func (s *CheckoutService) RevealCodes(ctx context.Context, orderNo string) (models.DeliveryCodes, error) {
	order, err := s.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status == constants.OrderStatusVoided {
		return nil, ErrOrderVoided
	}
	if order.CodesRevealedAt == nil {
		marked, err := s.orders.MarkRevealed(ctx, order.OrderNo, time.Now())
		if err != nil {
			return nil, newStorageError("mark revealed", err)
		}
		if !marked {
			// 并发作废时以最新状态为准
			latest, err := s.GetOrder(ctx, order.OrderNo)
			if err != nil {
				return nil, err
			}
			if latest.Status == constants.OrderStatusVoided {
				return nil, ErrOrderVoided
			}
		}
	}
	return order.DeliveryCodes.Clone(), nil
}

// VoidOrder 作废未展示卡码的订单并将真实卡码退回库存
func (s *CheckoutService) VoidOrder(ctx context.Context, orderNo string) (*VoidOrderResult, error) {
	order, err := s.GetOrder(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if order.Status == constants.OrderStatusVoided {
		return nil, ErrOrderVoided
	}
	if order.CodesRevealedAt != nil {
		return nil, ErrOrderCodesRevealed
	}

	marked, err := s.orders.MarkVoided(ctx, order.OrderNo, time.Now())
	if err != nil {
		return nil, newStorageError("mark voided", err)
	}
	if !marked {
		latest, err := s.GetOrder(ctx, order.OrderNo)
		if err != nil {
			return nil, err
		}
		if latest.Status == constants.OrderStatusVoided {
			return nil, ErrOrderVoided
		}
		return nil, ErrOrderCodesRevealed
	}

	result := &VoidOrderResult{OrderNo: order.OrderNo}
	for _, item := range order.Items {
		codes := order.DeliveryCodes[item.ProductID]
		if len(codes) == 0 {
			continue
		}
		released, err := s.allocator.Release(ctx, item.ProductID, order.OrderNo, codes)
		if err != nil {
			logger.Ctx(ctx).Errorw("order_void_release_failed",
				"order_no", order.OrderNo,
				"product_id", item.ProductID,
				"error", err,
			)
			_ = s.allocator.ScheduleReleaseRetry(ctx, item.ProductID, order.OrderNo, codes)
			continue
		}
		result.Released += released
	}
	logger.Ctx(ctx).Infow("order_voided", "order_no", order.OrderNo, "released", result.Released)
	return result, nil
}

// mergeCheckoutItems 合并同一商品的下单行，保持首次出现的顺序。
// 合并后的件数同样受单次分配上限约束。
func mergeCheckoutItems(items []CheckoutItem, maxQuantity int) ([]CheckoutItem, error) {
	if len(items) == 0 {
		return nil, invalidRequest("order has no items")
	}
	index := make(map[string]int, len(items))
	merged := make([]CheckoutItem, 0, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return nil, invalidRequest("product id is required")
		}
		if item.Quantity < 1 {
			return nil, invalidRequest("quantity must be positive, got %d", item.Quantity)
		}
		if item.Quantity > maxQuantity {
			return nil, invalidRequest("quantity %d for product %s exceeds limit %d", item.Quantity, productID, maxQuantity)
		}
		if pos, ok := index[productID]; ok {
			merged[pos].Quantity += item.Quantity
			if merged[pos].Quantity > maxQuantity {
				return nil, invalidRequest("quantity %d for product %s exceeds limit %d", merged[pos].Quantity, productID, maxQuantity)
			}
			continue
		}
		index[productID] = len(merged)
		merged = append(merged, CheckoutItem{ProductID: productID, Quantity: item.Quantity})
	}
	return merged, nil
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("MJ%s%s", now, strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]))
}
