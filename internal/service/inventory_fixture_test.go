package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matajir-next/internal/models"
	"github.com/matajir-next/internal/queue"
	"github.com/matajir-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu        sync.Mutex
	lowStock  []queue.InventoryLowStockAlertPayload
	retries   []queue.InventoryReleaseRetryPayload
	failRetry bool
}

func (p *recordingPublisher) EnqueueLowStockAlert(payload queue.InventoryLowStockAlertPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lowStock = append(p.lowStock, payload)
	return nil
}

func (p *recordingPublisher) EnqueueReleaseRetry(payload queue.InventoryReleaseRetryPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failRetry {
		return fmt.Errorf("queue unavailable")
	}
	p.retries = append(p.retries, payload)
	return nil
}

func (p *recordingPublisher) lowStockAlerts() []queue.InventoryLowStockAlertPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.InventoryLowStockAlertPayload(nil), p.lowStock...)
}

func (p *recordingPublisher) releaseRetries() []queue.InventoryReleaseRetryPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.InventoryReleaseRetryPayload(nil), p.retries...)
}

type inventoryFixture struct {
	store     repository.InventoryStore
	orders    repository.OrderRepository
	publisher *recordingPublisher
	products  *ProductService
	importer  *CodeImportService
	allocator *AllocatorService
	inventory *InventoryService
	checkout  *CheckoutService
}

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:inventory_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Product{}, &models.Code{}, &models.CodeBatch{}, &models.Order{}, &models.OrderItem{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func newInventoryFixture(store repository.InventoryStore, orders repository.OrderRepository, options AllocatorOptions) *inventoryFixture {
	publisher := &recordingPublisher{}
	allocator := NewAllocatorService(store, options, publisher, nil, nil)
	return &inventoryFixture{
		store:     store,
		orders:    orders,
		publisher: publisher,
		products:  NewProductService(store),
		importer:  NewCodeImportService(store, nil, nil, 100),
		allocator: allocator,
		inventory: NewInventoryService(store, nil, 0),
		checkout:  NewCheckoutService(allocator, store, orders, nil),
	}
}

// eachBackend 针对数据库与内存两种存储执行同一组用例
func eachBackend(t *testing.T, options AllocatorOptions, fn func(t *testing.T, f *inventoryFixture)) {
	t.Run("gorm", func(t *testing.T) {
		db := openServiceTestDB(t)
		fn(t, newInventoryFixture(repository.NewGormInventoryStore(db), repository.NewOrderRepository(db), options))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, newInventoryFixture(repository.NewMemoryInventoryStore(), repository.NewMemoryOrderRepository(), options))
	})
}

func (f *inventoryFixture) createProduct(t *testing.T, id string, price string) {
	t.Helper()
	_, err := f.products.Create(context.Background(), CreateProductInput{
		ID:          id,
		Name:        "product " + id,
		PriceAmount: decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("create product failed: %v", err)
	}
}

func (f *inventoryFixture) importCodes(t *testing.T, productID string, codes ...string) *ImportResult {
	t.Helper()
	result, err := f.importer.ImportText(context.Background(), ImportInput{ProductID: productID, Codes: codes})
	if err != nil {
		t.Fatalf("import codes failed: %v", err)
	}
	return result
}

func (f *inventoryFixture) stats(t *testing.T, productID string) *CodeStats {
	t.Helper()
	stats, err := f.inventory.GetStats(context.Background(), productID)
	if err != nil {
		t.Fatalf("get stats failed: %v", err)
	}
	if stats.Available+stats.Sold != stats.Total {
		t.Fatalf("stats not consistent: %+v", stats)
	}
	return stats
}

func (f *inventoryFixture) stock(t *testing.T, productID string) int {
	t.Helper()
	product, err := f.store.GetProduct(context.Background(), productID)
	if err != nil || product == nil {
		t.Fatalf("get product failed: %v", err)
	}
	return product.Stock
}

func (f *inventoryFixture) codeByValue(t *testing.T, productID, code string) models.Code {
	t.Helper()
	items, err := f.store.ListByProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("list codes failed: %v", err)
	}
	for _, item := range items {
		if item.Code == code {
			return item
		}
	}
	t.Fatalf("code %s not found in product %s", code, productID)
	return models.Code{}
}

// sequenceGenerator 依次返回预设卡码
func sequenceGenerator(values ...string) repository.CodeGenerator {
	var mu sync.Mutex
	idx := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if idx >= len(values) {
			return ""
		}
		value := values[idx]
		idx++
		return value
	}
}
