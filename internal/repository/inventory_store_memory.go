package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/models"
)

// MemoryInventoryStore 进程内库存存储，用于离线部署与测试
type MemoryInventoryStore struct {
	mu      sync.RWMutex
	pools   map[string]*memoryPool
	batches []models.CodeBatch
	nextID  uint
}

type memoryPool struct {
	mu      sync.Mutex
	product models.Product
	codes   []*models.Code
	index   map[string]*models.Code
}

// NewMemoryInventoryStore 创建内存库存存储
func NewMemoryInventoryStore() *MemoryInventoryStore {
	return &MemoryInventoryStore{pools: make(map[string]*memoryPool)}
}

func (s *MemoryInventoryStore) pool(productID string) *memoryPool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pools[productID]
}

func (s *MemoryInventoryStore) allocateID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return s.nextID
}

// CreateProduct 创建商品
func (s *MemoryInventoryStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if product == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pools[product.ID]; ok {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	now := time.Now()
	product.Stock = 0
	product.CreatedAt = now
	product.UpdatedAt = now
	s.pools[product.ID] = &memoryPool{
		product: *product,
		index:   make(map[string]*models.Code),
	}
	return nil
}

// GetProduct 获取商品，不存在时返回 nil
func (s *MemoryInventoryStore) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := s.pool(productID)
	if pool == nil {
		return nil, nil
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	product := pool.product
	return &product, nil
}

// ListProducts 按 ID 排序列出全部商品
func (s *MemoryInventoryStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	pools := make([]*memoryPool, 0, len(s.pools))
	for _, pool := range s.pools {
		pools = append(pools, pool)
	}
	s.mu.RUnlock()

	products := make([]models.Product, 0, len(pools))
	for _, pool := range pools {
		pool.mu.Lock()
		products = append(products, pool.product)
		pool.mu.Unlock()
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

// Insert 追加卡码
func (s *MemoryInventoryStore) Insert(ctx context.Context, req InsertRequest) (*InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := s.pool(req.ProductID)
	if pool == nil {
		return nil, ErrProductMissing
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()

	var batchID *uint
	if req.Batch != nil {
		id := s.allocateID()
		req.Batch.ID = id
		req.Batch.ProductID = req.ProductID
		req.Batch.CreatedAt = time.Now()
		batchID = &id
	}

	result := &InsertResult{}
	now := time.Now()
	for _, code := range req.Codes {
		if _, ok := pool.index[code]; ok {
			result.Duplicates++
			continue
		}
		item := &models.Code{
			ID:        s.allocateID(),
			ProductID: req.ProductID,
			Code:      code,
			Status:    constants.CodeStatusAvailable,
			BatchID:   batchID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		pool.codes = append(pool.codes, item)
		pool.index[code] = item
		result.Inserted++
	}

	if req.Batch != nil {
		req.Batch.InsertedCount = result.Inserted
		req.Batch.DuplicateCount = result.Duplicates
		s.mu.Lock()
		s.batches = append(s.batches, *req.Batch)
		s.mu.Unlock()
	}
	result.Stock = pool.syncStock()
	return result, nil
}

// ListByProduct 按入库顺序列出卡码副本
func (s *MemoryInventoryStore) ListByProduct(ctx context.Context, productID string) ([]models.Code, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := s.pool(productID)
	if pool == nil {
		return []models.Code{}, nil
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	codes := make([]models.Code, 0, len(pool.codes))
	for _, item := range pool.codes {
		codes = append(codes, *item)
	}
	return codes, nil
}

// CountAvailable 统计可用卡码
func (s *MemoryInventoryStore) CountAvailable(ctx context.Context, productID string) (int64, error) {
	counts, err := s.countPool(ctx, productID)
	return counts.Available, err
}

// CountSold 统计已售卡码
func (s *MemoryInventoryStore) CountSold(ctx context.Context, productID string) (int64, error) {
	counts, err := s.countPool(ctx, productID)
	return counts.Sold, err
}

func (s *MemoryInventoryStore) countPool(ctx context.Context, productID string) (CodeCounts, error) {
	if err := ctx.Err(); err != nil {
		return CodeCounts{}, err
	}
	pool := s.pool(productID)
	if pool == nil {
		return CodeCounts{}, nil
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	return pool.counts(), nil
}

// CountAll 按商品汇总卡码数量，仅包含有卡码的商品
func (s *MemoryInventoryStore) CountAll(ctx context.Context) (map[string]CodeCounts, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	pools := make(map[string]*memoryPool, len(s.pools))
	for id, pool := range s.pools {
		pools[id] = pool
	}
	s.mu.RUnlock()

	result := make(map[string]CodeCounts)
	for id, pool := range pools {
		pool.mu.Lock()
		if len(pool.codes) > 0 {
			result[id] = pool.counts()
		}
		pool.mu.Unlock()
	}
	return result, nil
}

// ListBatches 分页查询导入批次，最新在前
func (s *MemoryInventoryStore) ListBatches(ctx context.Context, productID string, page, pageSize int) ([]models.CodeBatch, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	matched := make([]models.CodeBatch, 0)
	for i := len(s.batches) - 1; i >= 0; i-- {
		if s.batches[i].ProductID == productID {
			matched = append(matched, s.batches[i])
		}
	}
	s.mu.RUnlock()

	start, end := pageWindow(len(matched), page, pageSize)
	return matched[start:end], int64(len(matched)), nil
}

// Allocate 在商品锁内完成选取与售出，失败时不修改任何卡码
func (s *MemoryInventoryStore) Allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := s.pool(req.ProductID)
	if pool == nil {
		return nil, ErrProductMissing
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()

	candidates := make([]*models.Code, 0, min(req.Quantity, len(pool.codes)))
	for _, item := range pool.codes {
		if len(candidates) == req.Quantity {
			break
		}
		if item.Status == constants.CodeStatusAvailable {
			candidates = append(candidates, item)
		}
	}
	shortfall := req.Quantity - len(candidates)
	if shortfall > 0 && req.Generate == nil {
		return nil, ErrCodesShort
	}

	var synthetic []string
	taken := make(map[string]struct{})
	for len(synthetic) < shortfall {
		code, err := nextSyntheticCode(req.Generate, taken, func(candidate string) (bool, error) {
			_, ok := pool.index[candidate]
			return ok, nil
		})
		if err != nil {
			return nil, err
		}
		taken[code] = struct{}{}
		synthetic = append(synthetic, code)
	}

	now := time.Now()
	codes := make([]string, 0, len(candidates)+len(synthetic))
	for _, item := range candidates {
		orderID := req.OrderID
		soldAt := now
		item.Status = constants.CodeStatusSold
		item.SoldOrderID = &orderID
		item.SoldAt = &soldAt
		item.UpdatedAt = now
		codes = append(codes, item.Code)
	}
	for _, code := range synthetic {
		orderID := req.OrderID
		soldAt := now
		item := &models.Code{
			ID:          s.allocateID(),
			ProductID:   req.ProductID,
			Code:        code,
			Status:      constants.CodeStatusSold,
			SoldOrderID: &orderID,
			SoldAt:      &soldAt,
			Synthetic:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		pool.codes = append(pool.codes, item)
		pool.index[code] = item
		codes = append(codes, code)
	}

	return &AllocateResult{
		Codes:     codes,
		Synthetic: len(synthetic),
		Stock:     pool.syncStock(),
	}, nil
}

// Release 补偿释放订单占用的真实卡码
func (s *MemoryInventoryStore) Release(ctx context.Context, productID, orderID string, codes []string) (*ReleaseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := s.pool(productID)
	if pool == nil {
		return nil, ErrProductMissing
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()

	released := 0
	now := time.Now()
	for _, code := range codes {
		item, ok := pool.index[code]
		if !ok || item.Status != constants.CodeStatusSold || item.Synthetic {
			continue
		}
		if item.SoldOrderID == nil || *item.SoldOrderID != orderID {
			continue
		}
		item.Status = constants.CodeStatusAvailable
		item.SoldOrderID = nil
		item.SoldAt = nil
		item.UpdatedAt = now
		released++
	}
	return &ReleaseResult{Released: released, Stock: pool.syncStock()}, nil
}

// RecomputeStock 根据卡码池重算库存计数
func (s *MemoryInventoryStore) RecomputeStock(ctx context.Context, productID string) (*StockRecount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pool := s.pool(productID)
	if pool == nil {
		return nil, ErrProductMissing
	}
	pool.mu.Lock()
	defer pool.mu.Unlock()
	before := int64(pool.product.Stock)
	return &StockRecount{ProductID: productID, Before: before, After: pool.syncStock()}, nil
}

func (p *memoryPool) counts() CodeCounts {
	var counts CodeCounts
	for _, item := range p.codes {
		switch item.Status {
		case constants.CodeStatusAvailable:
			counts.Available++
		case constants.CodeStatusSold:
			counts.Sold++
		}
	}
	return counts
}

// syncStock 调用方需持有 p.mu
func (p *memoryPool) syncStock() int64 {
	available := p.counts().Available
	p.product.Stock = int(available)
	p.product.UpdatedAt = time.Now()
	return available
}
