package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/matajir-next/internal/cache"
	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/logger"
	"github.com/matajir-next/internal/models"
	"github.com/matajir-next/internal/repository"
)

// InventoryService 库存统计与对账服务，只读查询不阻塞分配
type InventoryService struct {
	store      repository.InventoryStore
	statsCache cache.Store
	statsTTL   time.Duration
}

// NewInventoryService 创建库存服务
func NewInventoryService(store repository.InventoryStore, statsCache cache.Store, statsTTL time.Duration) *InventoryService {
	if statsCache == nil {
		statsCache = cache.NoopStore{}
	}
	return &InventoryService{
		store:      store,
		statsCache: statsCache,
		statsTTL:   statsTTL,
	}
}

// CodeStats 单个商品卡码统计
type CodeStats struct {
	ProductID string `json:"product_id"`
	Available int64  `json:"available"`
	Sold      int64  `json:"sold"`
	Total     int64  `json:"total"`
}

// InventoryCodes 商品卡码清单
type InventoryCodes struct {
	Available []string `json:"available"`
	Sold      []string `json:"sold"`
}

// GetStats 获取单个商品卡码统计，available + sold == total
func (s *InventoryService) GetStats(ctx context.Context, productID string) (*CodeStats, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, invalidRequest("product id is required")
	}

	var cached CodeStats
	if hit, err := s.statsCache.GetJSON(ctx, cache.InventoryStatsKey(productID), &cached); err != nil {
		logger.Ctx(ctx).Warnw("inventory_stats_cache_get_failed", "product_id", productID, "error", err)
	} else if hit {
		return &cached, nil
	}

	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	available, err := s.store.CountAvailable(ctx, productID)
	if err != nil {
		return nil, newStorageError("count available", err)
	}
	sold, err := s.store.CountSold(ctx, productID)
	if err != nil {
		return nil, newStorageError("count sold", err)
	}
	stats := &CodeStats{
		ProductID: productID,
		Available: available,
		Sold:      sold,
		Total:     available + sold,
	}
	s.storeCache(ctx, cache.InventoryStatsKey(productID), stats)
	return stats, nil
}

// GetAllStats 获取全部商品的卡码统计，无卡码的商品统计为 0
func (s *InventoryService) GetAllStats(ctx context.Context) ([]CodeStats, error) {
	var cached []CodeStats
	if hit, err := s.statsCache.GetJSON(ctx, cache.InventoryStatsAllKey(), &cached); err != nil {
		logger.Ctx(ctx).Warnw("inventory_stats_cache_get_failed", "product_id", "*", "error", err)
	} else if hit {
		return cached, nil
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, newStorageError("list products", err)
	}
	counts, err := s.store.CountAll(ctx)
	if err != nil {
		return nil, newStorageError("count codes", err)
	}
	result := make([]CodeStats, 0, len(products))
	for _, product := range products {
		item := counts[product.ID]
		result = append(result, CodeStats{
			ProductID: product.ID,
			Available: item.Available,
			Sold:      item.Sold,
			Total:     item.Available + item.Sold,
		})
	}
	s.storeCache(ctx, cache.InventoryStatsAllKey(), result)
	return result, nil
}

// ListCodes 按入库顺序列出可用与已售卡码
func (s *InventoryService) ListCodes(ctx context.Context, productID string) (*InventoryCodes, error) {
	items, err := s.listProductCodes(ctx, productID)
	if err != nil {
		return nil, err
	}
	result := &InventoryCodes{
		Available: make([]string, 0),
		Sold:      make([]string, 0),
	}
	for _, item := range items {
		switch item.Status {
		case constants.CodeStatusAvailable:
			result.Available = append(result.Available, item.Code)
		case constants.CodeStatusSold:
			result.Sold = append(result.Sold, item.Code)
		}
	}
	return result, nil
}

// ListCodeDetails 列出卡码明细（含售出订单与批次）
func (s *InventoryService) ListCodeDetails(ctx context.Context, productID, status string) ([]models.Code, error) {
	items, err := s.listProductCodes(ctx, productID)
	if err != nil {
		return nil, err
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return items, nil
	}
	if status != constants.CodeStatusAvailable && status != constants.CodeStatusSold {
		return nil, invalidRequest("unknown code status %q", status)
	}
	filtered := make([]models.Code, 0, len(items))
	for _, item := range items {
		if item.Status == status {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// ExportCodes 导出纯文本卡码清单，先列出未售卡码再列出已售卡码
func (s *InventoryService) ExportCodes(ctx context.Context, productID string) ([]byte, error) {
	codes, err := s.ListCodes(ctx, productID)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	writeSection := func(title string, values []string) {
		buf.WriteString(title)
		buf.WriteString("\n")
		for _, value := range values {
			buf.WriteString(value)
			buf.WriteString("\n")
		}
	}
	writeSection(constants.ExportSectionAvailable, codes.Available)
	buf.WriteString("\n")
	writeSection(constants.ExportSectionSold, codes.Sold)
	return buf.Bytes(), nil
}

// ListBatches 分页查询导入批次
func (s *InventoryService) ListBatches(ctx context.Context, productID string, page, pageSize int) ([]models.CodeBatch, int64, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, 0, invalidRequest("product id is required")
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, 0, err
	}
	items, total, err := s.store.ListBatches(ctx, productID, page, pageSize)
	if err != nil {
		return nil, 0, newStorageError("list batches", err)
	}
	return items, total, nil
}

// Reconcile 根据卡码池重算库存计数，productID 为空时处理全部商品
func (s *InventoryService) Reconcile(ctx context.Context, productID string) ([]repository.StockRecount, error) {
	productID = strings.TrimSpace(productID)
	var productIDs []string
	if productID != "" {
		productIDs = []string{productID}
	} else {
		products, err := s.store.ListProducts(ctx)
		if err != nil {
			return nil, newStorageError("list products", err)
		}
		for _, product := range products {
			productIDs = append(productIDs, product.ID)
		}
	}

	results := make([]repository.StockRecount, 0, len(productIDs))
	for _, id := range productIDs {
		recount, err := s.store.RecomputeStock(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrProductMissing) {
				return nil, ErrProductNotFound
			}
			return nil, newStorageError("recompute stock", err)
		}
		if recount.Before != recount.After {
			logger.Ctx(ctx).Warnw("inventory_stock_drift_repaired",
				"product_id", id,
				"before", recount.Before,
				"after", recount.After,
			)
			if err := s.statsCache.Del(ctx, cache.InventoryStatsKeys(id)...); err != nil {
				logger.Ctx(ctx).Warnw("inventory_stats_cache_invalidate_failed", "product_id", id, "error", err)
			}
		}
		results = append(results, *recount)
	}
	return results, nil
}

func (s *InventoryService) listProductCodes(ctx context.Context, productID string) ([]models.Code, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, invalidRequest("product id is required")
	}
	if err := s.ensureProduct(ctx, productID); err != nil {
		return nil, err
	}
	items, err := s.store.ListByProduct(ctx, productID)
	if err != nil {
		return nil, newStorageError("list codes", err)
	}
	return items, nil
}

func (s *InventoryService) ensureProduct(ctx context.Context, productID string) error {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return newStorageError("get product", err)
	}
	if product == nil {
		return ErrProductNotFound
	}
	return nil
}

func (s *InventoryService) storeCache(ctx context.Context, key string, value interface{}) {
	if s.statsTTL <= 0 || !s.statsCache.Enabled() {
		return
	}
	if err := s.statsCache.SetJSON(ctx, key, value, s.statsTTL); err != nil {
		logger.Ctx(ctx).Warnw("inventory_stats_cache_set_failed", "key", key, "error", err)
	}
}
