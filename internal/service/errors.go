package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest 请求参数非法（数量非正、卡码为空、商品未知等），在访问存储前拒绝
	ErrInvalidRequest = errors.New("invalid request")
	// ErrProductNotFound 商品不存在
	ErrProductNotFound = fmt.Errorf("%w: product not found", ErrInvalidRequest)
	// ErrProductExists 商品已存在
	ErrProductExists = errors.New("product already exists")
	// ErrInsufficientStock 可用卡码不足，整单未做任何修改
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStorage 存储层故障
	ErrStorage = errors.New("storage error")
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists 订单号已被使用
	ErrOrderExists = errors.New("order already exists")
	// ErrOrderCodesRevealed 卡码已展示，禁止作废释放
	ErrOrderCodesRevealed = errors.New("order codes already revealed")
	// ErrOrderVoided 订单已作废
	ErrOrderVoided = errors.New("order voided")
)

// StorageError 存储层错误，保留原始错误并可通过 errors.Is(err, ErrStorage) 判断
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

// Unwrap 同时暴露 ErrStorage 与原始错误
func (e *StorageError) Unwrap() []error {
	return []error{ErrStorage, e.Err}
}

func newStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ItemUnavailableError 下单时某一行库存不足
type ItemUnavailableError struct {
	ProductID string
	Requested int
}

func (e *ItemUnavailableError) Error() string {
	return fmt.Sprintf("item unavailable in requested quantity: product %s, quantity %d", e.ProductID, e.Requested)
}

// Unwrap 匹配 ErrInsufficientStock
func (e *ItemUnavailableError) Unwrap() error {
	return ErrInsufficientStock
}

func invalidRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
