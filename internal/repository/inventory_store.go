package repository

import (
	"context"
	"sync"

	"github.com/matajir-next/internal/models"
)

// InventoryStore 卡码库存存储，启动时按配置选择数据库或内存实现。
// 所有改变卡码状态的操作都在同一原子单元内重算并写回商品库存计数。
type InventoryStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)

	Insert(ctx context.Context, req InsertRequest) (*InsertResult, error)
	ListByProduct(ctx context.Context, productID string) ([]models.Code, error)
	CountAvailable(ctx context.Context, productID string) (int64, error)
	CountSold(ctx context.Context, productID string) (int64, error)
	CountAll(ctx context.Context) (map[string]CodeCounts, error)
	ListBatches(ctx context.Context, productID string, page, pageSize int) ([]models.CodeBatch, int64, error)

	Allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error)
	Release(ctx context.Context, productID, orderID string, codes []string) (*ReleaseResult, error)
	RecomputeStock(ctx context.Context, productID string) (*StockRecount, error)
}

// InsertRequest 卡码入库请求，Codes 需已规整（去空白、非空）
type InsertRequest struct {
	ProductID string
	Codes     []string
	Batch     *models.CodeBatch
}

// InsertResult 入库结果
type InsertResult struct {
	Inserted   int
	Duplicates int
	Stock      int64
}

// CodeGenerator 兜底卡码生成函数
type CodeGenerator func() string

// AllocateRequest 分配请求，Generate 为空表示禁止兜底生成
type AllocateRequest struct {
	ProductID string
	Quantity  int
	OrderID   string
	Generate  CodeGenerator
}

// AllocateResult 分配结果，Codes 先列出真实卡码（入库顺序），再列出兜底卡码
type AllocateResult struct {
	Codes     []string
	Synthetic int
	Stock     int64
}

// ReleaseResult 补偿释放结果
type ReleaseResult struct {
	Released int
	Stock    int64
}

// StockRecount 库存计数重算结果
type StockRecount struct {
	ProductID string
	Before    int64
	After     int64
}

// CodeCounts 单个商品的卡码数量
type CodeCounts struct {
	Available int64
	Sold      int64
}

// maxSyntheticAttempts 兜底卡码与池内已有卡码冲突时的重试上限
const maxSyntheticAttempts = 8

// keyedMutex 按商品维度的进程内互斥锁
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock 获取指定 key 的锁，返回解锁函数
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	k.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}
