package models

import (
	"time"
)

// Product 商品表（仅保留库存相关字段）
type Product struct {
	ID                string    `gorm:"primarykey;type:varchar(64)" json:"id"`              // 商品ID（外部传入）
	Name              string    `gorm:"type:varchar(255);not null" json:"name"`             // 商品名称
	Category          string    `gorm:"type:varchar(100);index" json:"category"`            // 分类
	PriceAmount       Money     `gorm:"type:decimal(20,2);not null;default:0" json:"price"` // 单价
	Stock             int       `gorm:"not null;default:0" json:"stock"`                    // 可用库存计数（由卡码池推导）
	LowStockThreshold int       `gorm:"not null;default:0" json:"low_stock_threshold"`      // 低库存告警阈值（0 使用全局配置）
	CreatedAt         time.Time `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt         time.Time `json:"updated_at"`                                         // 更新时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
