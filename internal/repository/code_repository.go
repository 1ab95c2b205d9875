package repository

import (
	"time"

	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/models"

	"gorm.io/gorm"
)

// CodeRepository 卡码数据访问接口
type CodeRepository interface {
	CreateBatch(items []models.Code) error
	ExistingCodes(productID string, codes []string) (map[string]struct{}, error)
	ListByProduct(productID string) ([]models.Code, error)
	ListAvailable(productID string, limit int) ([]models.Code, error)
	CountByStatus(productID, status string) (int64, error)
	CountGrouped() ([]CodeStatusCount, error)
	MarkSold(ids []uint, orderID string, soldAt time.Time) (int64, error)
	ReleaseSold(productID, orderID string, codes []string) (int64, error)
	WithTx(tx *gorm.DB) CodeRepository
}

// CodeStatusCount 按商品与状态分组的卡码数量
type CodeStatusCount struct {
	ProductID string
	Status    string
	Total     int64
}

// GormCodeRepository GORM 实现
type GormCodeRepository struct {
	db *gorm.DB
}

// NewCodeRepository 创建卡码仓库
func NewCodeRepository(db *gorm.DB) *GormCodeRepository {
	return &GormCodeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCodeRepository) WithTx(tx *gorm.DB) CodeRepository {
	if tx == nil {
		return r
	}
	return &GormCodeRepository{db: tx}
}

// CreateBatch 批量写入卡码
func (r *GormCodeRepository) CreateBatch(items []models.Code) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.CreateInBatches(&items, 200).Error
}

// ExistingCodes 返回商品卡码池中已存在的卡码集合
func (r *GormCodeRepository) ExistingCodes(productID string, codes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for _, chunk := range chunkValues(codes, inClauseChunkSize(r.db)) {
		var rows []string
		if err := r.db.Model(&models.Code{}).
			Where("product_id = ? AND code IN ?", productID, chunk).
			Pluck("code", &rows).Error; err != nil {
			return nil, err
		}
		for _, code := range rows {
			existing[code] = struct{}{}
		}
	}
	return existing, nil
}

// ListByProduct 按入库顺序列出商品全部卡码
func (r *GormCodeRepository) ListByProduct(productID string) ([]models.Code, error) {
	var codes []models.Code
	if err := r.db.Where("product_id = ?", productID).Order("id asc").Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// ListAvailable 按入库顺序取前 limit 条可用卡码
func (r *GormCodeRepository) ListAvailable(productID string, limit int) ([]models.Code, error) {
	if limit <= 0 {
		return []models.Code{}, nil
	}
	var codes []models.Code
	if err := r.db.Where("product_id = ? AND status = ?", productID, constants.CodeStatusAvailable).
		Order("id asc").
		Limit(limit).
		Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// CountByStatus 统计商品指定状态的卡码数量
func (r *GormCodeRepository) CountByStatus(productID, status string) (int64, error) {
	var total int64
	if err := r.db.Model(&models.Code{}).
		Where("product_id = ? AND status = ?", productID, status).
		Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// CountGrouped 按商品与状态分组统计
func (r *GormCodeRepository) CountGrouped() ([]CodeStatusCount, error) {
	var rows []CodeStatusCount
	if err := r.db.Model(&models.Code{}).
		Select("product_id, status, COUNT(*) AS total").
		Group("product_id, status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkSold 条件更新：仅在仍为 available 时标记售出，返回实际命中行数。
// 按方言分批绑定 id，调用方需在同一事务内比对总命中数。
func (r *GormCodeRepository) MarkSold(ids []uint, orderID string, soldAt time.Time) (int64, error) {
	var affected int64
	for _, chunk := range chunkValues(ids, inClauseChunkSize(r.db)) {
		result := r.db.Model(&models.Code{}).
			Where("id IN ? AND status = ?", chunk, constants.CodeStatusAvailable).
			Updates(map[string]interface{}{
				"status":        constants.CodeStatusSold,
				"sold_order_id": orderID,
				"sold_at":       soldAt,
				"updated_at":    soldAt,
			})
		if result.Error != nil {
			return affected, result.Error
		}
		affected += result.RowsAffected
	}
	return affected, nil
}

// ReleaseSold 将订单占用的非兜底卡码退回可用状态
func (r *GormCodeRepository) ReleaseSold(productID, orderID string, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	var released int64
	for _, chunk := range chunkValues(codes, inClauseChunkSize(r.db)) {
		result := r.db.Model(&models.Code{}).
			Where("product_id = ? AND sold_order_id = ? AND status = ? AND synthetic = ? AND code IN ?",
				productID, orderID, constants.CodeStatusSold, false, chunk).
			Updates(map[string]interface{}{
				"status":        constants.CodeStatusAvailable,
				"sold_order_id": nil,
				"sold_at":       nil,
				"updated_at":    time.Now(),
			})
		if result.Error != nil {
			return released, result.Error
		}
		released += result.RowsAffected
	}
	return released, nil
}
