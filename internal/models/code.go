package models

import (
	"time"
)

// Code 卡码库存表，记录永不物理删除
type Code struct {
	ID          uint       `gorm:"primarykey" json:"id"`                                                                            // 主键，决定入库顺序
	ProductID   string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_codes_product_code,priority:1;index" json:"product_id"` // 商品ID
	Code        string     `gorm:"type:varchar(512);not null;uniqueIndex:idx_codes_product_code,priority:2" json:"code"`            // 卡码内容
	Status      string     `gorm:"type:varchar(20);index;not null" json:"status"`                                                   // 状态（available/sold）
	SoldOrderID *string    `gorm:"type:varchar(64);index" json:"sold_order_id,omitempty"`                                           // 售出订单号
	SoldAt      *time.Time `gorm:"index" json:"sold_at,omitempty"`                                                                  // 售出时间
	BatchID     *uint      `gorm:"index" json:"batch_id,omitempty"`                                                                 // 导入批次ID
	Synthetic   bool       `gorm:"not null;default:false" json:"synthetic"`                                                         // 是否为兜底生成
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                                                                         // 创建时间
	UpdatedAt   time.Time  `json:"updated_at"`                                                                                      // 更新时间
}

// TableName 指定表名
func (Code) TableName() string {
	return "codes"
}
