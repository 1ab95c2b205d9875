package models

import (
	"time"
)

// Order 订单表
type Order struct {
	ID              uint          `gorm:"primarykey" json:"id"`                                      // 主键
	OrderNo         string        `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_no"`     // 订单编号
	UserRef         string        `gorm:"type:varchar(100);index" json:"user_ref,omitempty"`         // 外部用户标识
	PaymentRef      string        `gorm:"type:varchar(128);index" json:"payment_ref,omitempty"`      // 外部支付流水号
	Status          string        `gorm:"type:varchar(20);index;not null" json:"status"`             // 订单状态
	TotalAmount     Money         `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 订单金额
	DeliveryCodes   DeliveryCodes `gorm:"type:json" json:"-"`                                        // 交付卡码（创建后不可变）
	CodesRevealedAt *time.Time    `gorm:"index" json:"codes_revealed_at"`                            // 卡码展示时间
	VoidedAt        *time.Time    `gorm:"index" json:"voided_at"`                                    // 作废时间
	CreatedAt       time.Time     `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt       time.Time     `json:"updated_at"`                                                // 更新时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
