package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/models"
)

// MemoryOrderRepository 进程内订单存储
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
	nextID uint
}

// NewMemoryOrderRepository 创建内存订单存储
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*models.Order)}
}

// Create 保存订单副本
func (r *MemoryOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.OrderNo]; ok {
		return ErrOrderDuplicated
	}
	r.nextID++
	now := time.Now()
	order.ID = r.nextID
	order.CreatedAt = now
	order.UpdatedAt = now
	for i := range order.Items {
		order.Items[i].ID = uint(i + 1)
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = now
	}
	r.orders[order.OrderNo] = cloneOrder(order)
	return nil
}

// GetByOrderNo 根据订单号获取订单副本
func (r *MemoryOrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[strings.TrimSpace(orderNo)]
	if !ok {
		return nil, nil
	}
	return cloneOrder(order), nil
}

// List 分页查询订单，最新在前
func (r *MemoryOrderRepository) List(ctx context.Context, filter OrderListFilter) ([]models.Order, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	matched := make([]models.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		if filter.UserRef != "" && order.UserRef != filter.UserRef {
			continue
		}
		if filter.ProductID != "" {
			if _, ok := order.DeliveryCodes[filter.ProductID]; !ok {
				continue
			}
		}
		matched = append(matched, *cloneOrder(order))
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	start, end := pageWindow(len(matched), filter.Page, filter.PageSize)
	return matched[start:end], int64(len(matched)), nil
}

// MarkRevealed 标记卡码已展示
func (r *MemoryOrderRepository) MarkRevealed(ctx context.Context, orderNo string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderNo]
	if !ok || order.Status != constants.OrderStatusCompleted || order.CodesRevealedAt != nil {
		return false, nil
	}
	revealedAt := at
	order.CodesRevealedAt = &revealedAt
	order.UpdatedAt = at
	return true, nil
}

// MarkVoided 作废未展示卡码的订单
func (r *MemoryOrderRepository) MarkVoided(ctx context.Context, orderNo string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[orderNo]
	if !ok || order.Status != constants.OrderStatusCompleted || order.CodesRevealedAt != nil {
		return false, nil
	}
	voidedAt := at
	order.Status = constants.OrderStatusVoided
	order.VoidedAt = &voidedAt
	order.UpdatedAt = at
	return true, nil
}

func cloneOrder(order *models.Order) *models.Order {
	out := *order
	out.DeliveryCodes = order.DeliveryCodes.Clone()
	out.Items = append([]models.OrderItem(nil), order.Items...)
	return &out
}
