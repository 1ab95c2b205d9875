package repository

import "errors"

var (
	// ErrProductMissing 商品不存在
	ErrProductMissing = errors.New("product not found")
	// ErrCodesShort 可用卡码不足
	ErrCodesShort = errors.New("available codes short")
	// ErrAllocationConflict 条件更新命中行数不符，说明并发请求已抢占部分卡码
	ErrAllocationConflict = errors.New("allocation conflict")
	// ErrOrderMissing 订单不存在
	ErrOrderMissing = errors.New("order not found")
	// ErrOrderDuplicated 订单号已存在
	ErrOrderDuplicated = errors.New("order already exists")
)
