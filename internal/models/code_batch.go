package models

import (
	"time"
)

// CodeBatch 卡码导入批次表
type CodeBatch struct {
	ID             uint      `gorm:"primarykey" json:"id"`                              // 主键
	ProductID      string    `gorm:"type:varchar(64);index;not null" json:"product_id"` // 商品ID
	BatchNo        string    `gorm:"uniqueIndex;not null" json:"batch_no"`              // 批次号
	Source         string    `gorm:"not null" json:"source"`                            // 来源（manual/csv）
	TotalCount     int       `gorm:"not null" json:"total_count"`                       // 提交数量
	InsertedCount  int       `gorm:"not null;default:0" json:"inserted_count"`          // 实际入库数量
	DuplicateCount int       `gorm:"not null;default:0" json:"duplicate_count"`         // 重复跳过数量
	Note           string    `gorm:"type:text" json:"note"`                             // 备注
	CreatedBy      string    `gorm:"type:varchar(100)" json:"created_by,omitempty"`     // 操作人
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                           // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                        // 更新时间
}

// TableName 指定表名
func (CodeBatch) TableName() string {
	return "code_batches"
}
