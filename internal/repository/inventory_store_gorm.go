package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/models"

	"gorm.io/gorm"
)

// GormInventoryStore 基于数据库的库存存储
type GormInventoryStore struct {
	db       *gorm.DB
	codes    *GormCodeRepository
	products *GormProductRepository
	batches  *GormCodeBatchRepository
	locks    *keyedMutex
}

// NewGormInventoryStore 创建数据库库存存储
func NewGormInventoryStore(db *gorm.DB) *GormInventoryStore {
	return &GormInventoryStore{
		db:       db,
		codes:    NewCodeRepository(db),
		products: NewProductRepository(db),
		batches:  NewCodeBatchRepository(db),
		locks:    newKeyedMutex(),
	}
}

// CreateProduct 创建商品，库存计数从 0 开始
func (s *GormInventoryStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if product == nil {
		return nil
	}
	product.Stock = 0
	return s.products.WithTx(s.db.WithContext(ctx)).Create(product)
}

// GetProduct 获取商品，不存在时返回 nil
func (s *GormInventoryStore) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	return s.products.WithTx(s.db.WithContext(ctx)).GetByID(productID)
}

// ListProducts 列出全部商品
func (s *GormInventoryStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.products.WithTx(s.db.WithContext(ctx)).List()
}

// Insert 追加卡码，已存在或批内重复的卡码计为重复
func (s *GormInventoryStore) Insert(ctx context.Context, req InsertRequest) (*InsertResult, error) {
	unlock := s.locks.Lock(req.ProductID)
	defer unlock()

	result := &InsertResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)
		codeRepo := s.codes.WithTx(tx)

		product, err := productRepo.GetByIDForUpdate(req.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return ErrProductMissing
		}

		existing, err := codeRepo.ExistingCodes(req.ProductID, req.Codes)
		if err != nil {
			return err
		}

		var batchID *uint
		if req.Batch != nil {
			req.Batch.ProductID = req.ProductID
			if err := s.batches.WithTx(tx).Create(req.Batch); err != nil {
				return err
			}
			id := req.Batch.ID
			batchID = &id
		}

		items := make([]models.Code, 0, len(req.Codes))
		for _, code := range req.Codes {
			if _, ok := existing[code]; ok {
				result.Duplicates++
				continue
			}
			existing[code] = struct{}{}
			items = append(items, models.Code{
				ProductID: req.ProductID,
				Code:      code,
				Status:    constants.CodeStatusAvailable,
				BatchID:   batchID,
			})
		}
		if err := codeRepo.CreateBatch(items); err != nil {
			return err
		}
		result.Inserted = len(items)

		if req.Batch != nil {
			if err := s.batches.WithTx(tx).UpdateCounts(req.Batch.ID, result.Inserted, result.Duplicates); err != nil {
				return err
			}
			req.Batch.InsertedCount = result.Inserted
			req.Batch.DuplicateCount = result.Duplicates
		}

		stock, err := syncStock(productRepo, codeRepo, req.ProductID)
		if err != nil {
			return err
		}
		result.Stock = stock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListByProduct 按入库顺序列出卡码
func (s *GormInventoryStore) ListByProduct(ctx context.Context, productID string) ([]models.Code, error) {
	return s.codes.WithTx(s.db.WithContext(ctx)).ListByProduct(productID)
}

// CountAvailable 统计可用卡码
func (s *GormInventoryStore) CountAvailable(ctx context.Context, productID string) (int64, error) {
	return s.codes.WithTx(s.db.WithContext(ctx)).CountByStatus(productID, constants.CodeStatusAvailable)
}

// CountSold 统计已售卡码
func (s *GormInventoryStore) CountSold(ctx context.Context, productID string) (int64, error) {
	return s.codes.WithTx(s.db.WithContext(ctx)).CountByStatus(productID, constants.CodeStatusSold)
}

// CountAll 按商品汇总卡码数量，仅包含有卡码的商品
func (s *GormInventoryStore) CountAll(ctx context.Context) (map[string]CodeCounts, error) {
	rows, err := s.codes.WithTx(s.db.WithContext(ctx)).CountGrouped()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]CodeCounts)
	for _, row := range rows {
		item := counts[row.ProductID]
		switch row.Status {
		case constants.CodeStatusAvailable:
			item.Available += row.Total
		case constants.CodeStatusSold:
			item.Sold += row.Total
		}
		counts[row.ProductID] = item
	}
	return counts, nil
}

// ListBatches 分页查询导入批次
func (s *GormInventoryStore) ListBatches(ctx context.Context, productID string, page, pageSize int) ([]models.CodeBatch, int64, error) {
	return s.batches.WithTx(s.db.WithContext(ctx)).ListByProduct(productID, page, pageSize)
}

// Allocate 在单个事务内选取并售出卡码。
// 条件更新命中行数与候选数不一致时整体回滚并返回 ErrAllocationConflict。
func (s *GormInventoryStore) Allocate(ctx context.Context, req AllocateRequest) (*AllocateResult, error) {
	unlock := s.locks.Lock(req.ProductID)
	defer unlock()

	result := &AllocateResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)
		codeRepo := s.codes.WithTx(tx)

		product, err := productRepo.GetByIDForUpdate(req.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return ErrProductMissing
		}

		candidates, err := codeRepo.ListAvailable(req.ProductID, req.Quantity)
		if err != nil {
			return err
		}
		shortfall := req.Quantity - len(candidates)
		if shortfall > 0 && req.Generate == nil {
			return ErrCodesShort
		}

		now := time.Now()
		codes := make([]string, 0, len(candidates))
		if len(candidates) > 0 {
			ids := make([]uint, 0, len(candidates))
			for _, item := range candidates {
				ids = append(ids, item.ID)
				codes = append(codes, item.Code)
			}
			affected, err := codeRepo.MarkSold(ids, req.OrderID, now)
			if err != nil {
				return err
			}
			if affected != int64(len(ids)) {
				return ErrAllocationConflict
			}
		}

		if shortfall > 0 {
			synthetic, err := s.createSynthetic(codeRepo, req, shortfall, now)
			if err != nil {
				return err
			}
			codes = append(codes, synthetic...)
			result.Synthetic = len(synthetic)
		}

		stock, err := syncStock(productRepo, codeRepo, req.ProductID)
		if err != nil {
			return err
		}
		result.Codes = codes
		result.Stock = stock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// createSynthetic 生成兜底卡码并直接写入为已售
func (s *GormInventoryStore) createSynthetic(codeRepo CodeRepository, req AllocateRequest, count int, soldAt time.Time) ([]string, error) {
	orderID := req.OrderID
	var items []models.Code
	taken := make(map[string]struct{})
	for len(items) < count {
		code, err := nextSyntheticCode(req.Generate, taken, func(candidate string) (bool, error) {
			existing, err := codeRepo.ExistingCodes(req.ProductID, []string{candidate})
			if err != nil {
				return false, err
			}
			_, ok := existing[candidate]
			return ok, nil
		})
		if err != nil {
			return nil, err
		}
		taken[code] = struct{}{}
		soldAtCopy := soldAt
		items = append(items, models.Code{
			ProductID:   req.ProductID,
			Code:        code,
			Status:      constants.CodeStatusSold,
			SoldOrderID: &orderID,
			SoldAt:      &soldAtCopy,
			Synthetic:   true,
		})
	}
	if err := codeRepo.CreateBatch(items); err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.Code)
	}
	return codes, nil
}

// Release 补偿释放：仅退回由该订单占用的真实卡码，重复调用无副作用
func (s *GormInventoryStore) Release(ctx context.Context, productID, orderID string, codes []string) (*ReleaseResult, error) {
	unlock := s.locks.Lock(productID)
	defer unlock()

	result := &ReleaseResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)
		codeRepo := s.codes.WithTx(tx)

		product, err := productRepo.GetByIDForUpdate(productID)
		if err != nil {
			return err
		}
		if product == nil {
			return ErrProductMissing
		}
		released, err := codeRepo.ReleaseSold(productID, orderID, codes)
		if err != nil {
			return err
		}
		stock, err := syncStock(productRepo, codeRepo, productID)
		if err != nil {
			return err
		}
		result.Released = int(released)
		result.Stock = stock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RecomputeStock 根据卡码池重算库存计数
func (s *GormInventoryStore) RecomputeStock(ctx context.Context, productID string) (*StockRecount, error) {
	unlock := s.locks.Lock(productID)
	defer unlock()

	recount := &StockRecount{ProductID: productID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		productRepo := s.products.WithTx(tx)
		product, err := productRepo.GetByIDForUpdate(productID)
		if err != nil {
			return err
		}
		if product == nil {
			return ErrProductMissing
		}
		recount.Before = int64(product.Stock)
		stock, err := syncStock(productRepo, s.codes.WithTx(tx), productID)
		if err != nil {
			return err
		}
		recount.After = stock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recount, nil
}

// syncStock 统计可用卡码并写回商品库存计数
func syncStock(productRepo ProductRepository, codeRepo CodeRepository, productID string) (int64, error) {
	available, err := codeRepo.CountByStatus(productID, constants.CodeStatusAvailable)
	if err != nil {
		return 0, err
	}
	if err := productRepo.UpdateStock(productID, available); err != nil {
		return 0, err
	}
	return available, nil
}

// nextSyntheticCode 生成与池内及本批均不冲突的兜底卡码
func nextSyntheticCode(generate CodeGenerator, taken map[string]struct{}, exists func(string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxSyntheticAttempts; attempt++ {
		candidate := generate()
		if candidate == "" {
			continue
		}
		if _, ok := taken[candidate]; ok {
			continue
		}
		found, err := exists(candidate)
		if err != nil {
			return "", err
		}
		if !found {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("synthetic code generation exhausted after %d attempts", maxSyntheticAttempts)
}
