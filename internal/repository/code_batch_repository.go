package repository

import (
	"github.com/matajir-next/internal/models"

	"gorm.io/gorm"
)

// CodeBatchRepository 卡码批次数据访问接口
type CodeBatchRepository interface {
	Create(batch *models.CodeBatch) error
	UpdateCounts(id uint, inserted, duplicates int) error
	ListByProduct(productID string, page, pageSize int) ([]models.CodeBatch, int64, error)
	WithTx(tx *gorm.DB) CodeBatchRepository
}

// GormCodeBatchRepository GORM 实现
type GormCodeBatchRepository struct {
	db *gorm.DB
}

// NewCodeBatchRepository 创建卡码批次仓库
func NewCodeBatchRepository(db *gorm.DB) *GormCodeBatchRepository {
	return &GormCodeBatchRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCodeBatchRepository) WithTx(tx *gorm.DB) CodeBatchRepository {
	if tx == nil {
		return r
	}
	return &GormCodeBatchRepository{db: tx}
}

// Create 创建批次
func (r *GormCodeBatchRepository) Create(batch *models.CodeBatch) error {
	return r.db.Create(batch).Error
}

// UpdateCounts 回写批次入库结果
func (r *GormCodeBatchRepository) UpdateCounts(id uint, inserted, duplicates int) error {
	return r.db.Model(&models.CodeBatch{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"inserted_count":  inserted,
			"duplicate_count": duplicates,
		}).Error
}

// ListByProduct 分页查询商品批次，最新在前
func (r *GormCodeBatchRepository) ListByProduct(productID string, page, pageSize int) ([]models.CodeBatch, int64, error) {
	query := r.db.Model(&models.CodeBatch{}).Where("product_id = ?", productID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, page, pageSize)

	var batches []models.CodeBatch
	if err := query.Order("id desc").Find(&batches).Error; err != nil {
		return nil, 0, err
	}
	return batches, total, nil
}
