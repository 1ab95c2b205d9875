package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]models.Order, int64, error)
	MarkRevealed(ctx context.Context, orderNo string, at time.Time) (bool, error)
	MarkVoided(ctx context.Context, orderNo string, at time.Time) (bool, error)
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单与订单项，订单号重复返回 ErrOrderDuplicated
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Order{}).Where("order_no = ?", order.OrderNo).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrOrderDuplicated
		}
		items := order.Items
		order.Items = nil
		if err := tx.Create(order).Error; err != nil {
			order.Items = items
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				order.Items = items
				return err
			}
		}
		order.Items = items
		return nil
	})
}

// GetByOrderNo 根据订单号获取订单
func (r *GormOrderRepository) GetByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// List 分页查询订单
func (r *GormOrderRepository) List(ctx context.Context, filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if userRef := strings.TrimSpace(filter.UserRef); userRef != "" {
		query = query.Where("user_ref = ?", userRef)
	}
	if productID := strings.TrimSpace(filter.ProductID); productID != "" {
		query = query.Where("id IN (?)", r.db.Model(&models.OrderItem{}).Select("order_id").Where("product_id = ?", productID))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var orders []models.Order
	if err := query.Preload("Items").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// MarkRevealed 条件更新：仅未展示且未作废的订单可标记展示
func (r *GormOrderRepository) MarkRevealed(ctx context.Context, orderNo string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_no = ? AND status = ? AND codes_revealed_at IS NULL", orderNo, constants.OrderStatusCompleted).
		Updates(map[string]interface{}{
			"codes_revealed_at": at,
			"updated_at":        at,
		})
	return result.RowsAffected == 1, result.Error
}

// MarkVoided 条件更新：仅未展示卡码的已完成订单可作废
func (r *GormOrderRepository) MarkVoided(ctx context.Context, orderNo string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_no = ? AND status = ? AND codes_revealed_at IS NULL", orderNo, constants.OrderStatusCompleted).
		Updates(map[string]interface{}{
			"status":     constants.OrderStatusVoided,
			"voided_at":  at,
			"updated_at": at,
		})
	return result.RowsAffected == 1, result.Error
}
