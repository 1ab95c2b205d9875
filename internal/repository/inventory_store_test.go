package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:inventory_store_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
		t.Fatalf("migrate inventory models failed: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// eachInventoryStore 针对数据库与内存两种实现执行同一组用例
func eachInventoryStore(t *testing.T, fn func(t *testing.T, store InventoryStore)) {
	t.Run("gorm", func(t *testing.T) {
		fn(t, NewGormInventoryStore(setupInventoryTestDB(t)))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryInventoryStore())
	})
}

func createTestProduct(t *testing.T, store InventoryStore, id string) {
	t.Helper()
	if err := store.CreateProduct(context.Background(), &models.Product{ID: id, Name: "product " + id}); err != nil {
		t.Fatalf("create product failed: %v", err)
	}
}

func mustInsert(t *testing.T, store InventoryStore, productID string, codes ...string) *InsertResult {
	t.Helper()
	result, err := store.Insert(context.Background(), InsertRequest{ProductID: productID, Codes: codes})
	if err != nil {
		t.Fatalf("insert codes failed: %v", err)
	}
	return result
}

func productStock(t *testing.T, store InventoryStore, productID string) int {
	t.Helper()
	product, err := store.GetProduct(context.Background(), productID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if product == nil {
		t.Fatalf("product %s not found", productID)
	}
	return product.Stock
}

func TestInventoryStoreInsertDuplicates(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		ctx := context.Background()
		createTestProduct(t, store, "p1")

		result := mustInsert(t, store, "p1", "A", "B", "A")
		if result.Inserted != 2 || result.Duplicates != 1 {
			t.Fatalf("insert result want 2/1 got %d/%d", result.Inserted, result.Duplicates)
		}
		again := mustInsert(t, store, "p1", "B", "C")
		if again.Inserted != 1 || again.Duplicates != 1 {
			t.Fatalf("second insert want 1/1 got %d/%d", again.Inserted, again.Duplicates)
		}

		codes, err := store.ListByProduct(ctx, "p1")
		if err != nil {
			t.Fatalf("list codes failed: %v", err)
		}
		got := make([]string, 0, len(codes))
		for _, item := range codes {
			got = append(got, item.Code)
			if item.Status != constants.CodeStatusAvailable {
				t.Fatalf("new code should be available, got %s", item.Status)
			}
		}
		if fmt.Sprint(got) != "[A B C]" {
			t.Fatalf("codes want insertion order [A B C] got %v", got)
		}
		if stock := productStock(t, store, "p1"); stock != 3 {
			t.Fatalf("stock want 3 got %d", stock)
		}
	})
}

func TestInventoryStoreInsertUnknownProduct(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		_, err := store.Insert(context.Background(), InsertRequest{ProductID: "missing", Codes: []string{"A"}})
		if !errors.Is(err, ErrProductMissing) {
			t.Fatalf("want ErrProductMissing got %v", err)
		}
	})
}

func TestInventoryStoreInsertWithBatch(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		ctx := context.Background()
		createTestProduct(t, store, "p1")

		batch := &models.CodeBatch{BatchNo: "BATCH-1", Source: constants.CodeBatchSourceManual, TotalCount: 3}
		if _, err := store.Insert(ctx, InsertRequest{ProductID: "p1", Codes: []string{"A", "B", "A"}, Batch: batch}); err != nil {
			t.Fatalf("insert with batch failed: %v", err)
		}
		if batch.ID == 0 {
			t.Fatalf("batch id should be assigned")
		}
		batches, total, err := store.ListBatches(ctx, "p1", 1, 20)
		if err != nil {
			t.Fatalf("list batches failed: %v", err)
		}
		if total != 1 || len(batches) != 1 {
			t.Fatalf("batch total want 1 got %d", total)
		}
		if batches[0].InsertedCount != 2 || batches[0].DuplicateCount != 1 {
			t.Fatalf("batch counts want 2/1 got %d/%d", batches[0].InsertedCount, batches[0].DuplicateCount)
		}
		codes, err := store.ListByProduct(ctx, "p1")
		if err != nil {
			t.Fatalf("list codes failed: %v", err)
		}
		for _, item := range codes {
			if item.BatchID == nil || *item.BatchID != batch.ID {
				t.Fatalf("code %s should reference batch %d", item.Code, batch.ID)
			}
		}
	})
}

func TestInventoryStoreAllocateInsertionOrder(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		ctx := context.Background()
		createTestProduct(t, store, "p1")
		mustInsert(t, store, "p1", "X1", "X2", "X3")

		result, err := store.Allocate(ctx, AllocateRequest{ProductID: "p1", Quantity: 2, OrderID: "o1"})
		if err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
		if fmt.Sprint(result.Codes) != "[X1 X2]" {
			t.Fatalf("allocated codes want [X1 X2] got %v", result.Codes)
		}
		if result.Stock != 1 || result.Synthetic != 0 {
			t.Fatalf("allocate result stock/synthetic want 1/0 got %d/%d", result.Stock, result.Synthetic)
		}

		codes, err := store.ListByProduct(ctx, "p1")
		if err != nil {
			t.Fatalf("list codes failed: %v", err)
		}
		for _, item := range codes[:2] {
			if item.Status != constants.CodeStatusSold {
				t.Fatalf("code %s should be sold", item.Code)
			}
			if item.SoldOrderID == nil || *item.SoldOrderID != "o1" {
				t.Fatalf("code %s should be stamped with o1", item.Code)
			}
			if item.SoldAt == nil {
				t.Fatalf("code %s should have sold_at", item.Code)
			}
		}

		_, err = store.Allocate(ctx, AllocateRequest{ProductID: "p1", Quantity: 2, OrderID: "o2"})
		if !errors.Is(err, ErrCodesShort) {
			t.Fatalf("want ErrCodesShort got %v", err)
		}
		if stock := productStock(t, store, "p1"); stock != 1 {
			t.Fatalf("stock should remain 1, got %d", stock)
		}
		available, err := store.CountAvailable(ctx, "p1")
		if err != nil {
			t.Fatalf("count available failed: %v", err)
		}
		if available != 1 {
			t.Fatalf("available want 1 got %d", available)
		}
	})
}

func TestInventoryStoreAllocateSynthetic(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		ctx := context.Background()
		createTestProduct(t, store, "p1")
		mustInsert(t, store, "p1", "REAL-1")

		seq := 0
		generate := func() string {
			seq++
			if seq == 1 {
				return "REAL-1"
			}
			return fmt.Sprintf("SYN-%d", seq)
		}
		result, err := store.Allocate(ctx, AllocateRequest{ProductID: "p1", Quantity: 3, OrderID: "o1", Generate: generate})
		if err != nil {
			t.Fatalf("allocate with fallback failed: %v", err)
		}
		if fmt.Sprint(result.Codes) != "[REAL-1 SYN-2 SYN-3]" {
			t.Fatalf("codes want [REAL-1 SYN-2 SYN-3] got %v", result.Codes)
		}
		if result.Synthetic != 2 {
			t.Fatalf("synthetic want 2 got %d", result.Synthetic)
		}
		sold, err := store.CountSold(ctx, "p1")
		if err != nil {
			t.Fatalf("count sold failed: %v", err)
		}
		if sold != 3 {
			t.Fatalf("sold want 3 got %d", sold)
		}
		codes, err := store.ListByProduct(ctx, "p1")
		if err != nil {
			t.Fatalf("list codes failed: %v", err)
		}
		syntheticCount := 0
		for _, item := range codes {
			if item.Synthetic {
				syntheticCount++
				if item.Status != constants.CodeStatusSold {
					t.Fatalf("synthetic code should be recorded as sold")
				}
			}
		}
		if syntheticCount != 2 {
			t.Fatalf("synthetic records want 2 got %d", syntheticCount)
		}
	})
}

func TestInventoryStoreReleaseIsIdempotent(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		ctx := context.Background()
		createTestProduct(t, store, "p1")
		mustInsert(t, store, "p1", "A", "B", "C")

		result, err := store.Allocate(ctx, AllocateRequest{ProductID: "p1", Quantity: 2, OrderID: "o1"})
		if err != nil {
			t.Fatalf("allocate failed: %v", err)
		}

		wrongOrder, err := store.Release(ctx, "p1", "o2", result.Codes)
		if err != nil {
			t.Fatalf("release with other order failed: %v", err)
		}
		if wrongOrder.Released != 0 {
			t.Fatalf("release should ignore codes of other orders, released %d", wrongOrder.Released)
		}

		released, err := store.Release(ctx, "p1", "o1", result.Codes)
		if err != nil {
			t.Fatalf("release failed: %v", err)
		}
		if released.Released != 2 || released.Stock != 3 {
			t.Fatalf("release want 2 codes and stock 3, got %d/%d", released.Released, released.Stock)
		}

		again, err := store.Release(ctx, "p1", "o1", result.Codes)
		if err != nil {
			t.Fatalf("repeat release failed: %v", err)
		}
		if again.Released != 0 || again.Stock != 3 {
			t.Fatalf("repeat release should be a no-op, got %d/%d", again.Released, again.Stock)
		}

		codes, err := store.ListByProduct(ctx, "p1")
		if err != nil {
			t.Fatalf("list codes failed: %v", err)
		}
		for _, item := range codes {
			if item.Status != constants.CodeStatusAvailable || item.SoldOrderID != nil {
				t.Fatalf("code %s should be available without order, got %s", item.Code, item.Status)
			}
		}
	})
}

func TestInventoryStoreConcurrentAllocate(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		ctx := context.Background()
		createTestProduct(t, store, "p1")
		const n = 20
		codes := make([]string, 0, n)
		for i := 0; i < n; i++ {
			codes = append(codes, fmt.Sprintf("C%02d", i))
		}
		mustInsert(t, store, "p1", codes...)

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			claimed = make(map[string]string)
			errs    []error
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				orderID := fmt.Sprintf("o%d", i)
				result, err := store.Allocate(ctx, AllocateRequest{ProductID: "p1", Quantity: 1, OrderID: orderID})
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				for _, code := range result.Codes {
					if owner, ok := claimed[code]; ok {
						t.Errorf("code %s claimed by %s and %s", code, owner, orderID)
					}
					claimed[code] = orderID
				}
			}(i)
		}
		wg.Wait()

		if len(errs) != 0 {
			t.Fatalf("concurrent allocate should all succeed, errors: %v", errs)
		}
		if len(claimed) != n {
			t.Fatalf("claimed codes want %d got %d", n, len(claimed))
		}
		if stock := productStock(t, store, "p1"); stock != 0 {
			t.Fatalf("stock want 0 got %d", stock)
		}
	})
}

func TestInventoryStoreCountAllAndRecompute(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		ctx := context.Background()
		createTestProduct(t, store, "p1")
		createTestProduct(t, store, "p2")
		mustInsert(t, store, "p1", "A", "B")
		if _, err := store.Allocate(ctx, AllocateRequest{ProductID: "p1", Quantity: 1, OrderID: "o1"}); err != nil {
			t.Fatalf("allocate failed: %v", err)
		}

		counts, err := store.CountAll(ctx)
		if err != nil {
			t.Fatalf("count all failed: %v", err)
		}
		if counts["p1"].Available != 1 || counts["p1"].Sold != 1 {
			t.Fatalf("p1 counts want 1/1 got %+v", counts["p1"])
		}
		if _, ok := counts["p2"]; ok {
			t.Fatalf("p2 has no codes and should be absent from raw counts")
		}

		recount, err := store.RecomputeStock(ctx, "p1")
		if err != nil {
			t.Fatalf("recompute stock failed: %v", err)
		}
		if recount.Before != 1 || recount.After != 1 {
			t.Fatalf("recount want 1->1 got %d->%d", recount.Before, recount.After)
		}
		if _, err := store.RecomputeStock(ctx, "missing"); !errors.Is(err, ErrProductMissing) {
			t.Fatalf("recompute missing product want ErrProductMissing got %v", err)
		}
	})
}

func TestGormInventoryStoreRecomputeRepairsDrift(t *testing.T) {
	db := setupInventoryTestDB(t)
	store := NewGormInventoryStore(db)
	ctx := context.Background()
	createTestProduct(t, store, "p1")
	mustInsert(t, store, "p1", "A", "B")

	if err := db.Model(&models.Product{}).Where("id = ?", "p1").Update("stock", 9).Error; err != nil {
		t.Fatalf("corrupt stock failed: %v", err)
	}
	recount, err := store.RecomputeStock(ctx, "p1")
	if err != nil {
		t.Fatalf("recompute stock failed: %v", err)
	}
	if recount.Before != 9 || recount.After != 2 {
		t.Fatalf("recount want 9->2 got %d->%d", recount.Before, recount.After)
	}
	if stock := productStock(t, store, "p1"); stock != 2 {
		t.Fatalf("stock should be repaired to 2, got %d", stock)
	}
}

func TestInventoryStoreAllocateHugeQuantityReportsShort(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		ctx := context.Background()
		createTestProduct(t, store, "p1")
		mustInsert(t, store, "p1", "ONLY-1")

		_, err := store.Allocate(ctx, AllocateRequest{ProductID: "p1", Quantity: 1 << 50, OrderID: "o1"})
		if !errors.Is(err, ErrCodesShort) {
			t.Fatalf("want ErrCodesShort got %v", err)
		}
		available, err := store.CountAvailable(ctx, "p1")
		if err != nil {
			t.Fatalf("count available failed: %v", err)
		}
		if available != 1 {
			t.Fatalf("available want 1 got %d", available)
		}
	})
}

func TestInventoryStoreAllocateAcrossChunks(t *testing.T) {
	eachInventoryStore(t, func(t *testing.T, store InventoryStore) {
		ctx := context.Background()
		createTestProduct(t, store, "p1")
		total := inClauseChunkSizeByDialect("sqlite")*2 + 7
		codes := make([]string, 0, total)
		for i := 0; i < total; i++ {
			codes = append(codes, fmt.Sprintf("BULK-%05d", i))
		}
		mustInsert(t, store, "p1", codes...)

		result, err := store.Allocate(ctx, AllocateRequest{ProductID: "p1", Quantity: total, OrderID: "o1"})
		if err != nil {
			t.Fatalf("allocate across chunks failed: %v", err)
		}
		if len(result.Codes) != total || result.Stock != 0 {
			t.Fatalf("allocate want %d codes and stock 0 got %d/%d", total, len(result.Codes), result.Stock)
		}
		if result.Codes[0] != "BULK-00000" || result.Codes[total-1] != codes[total-1] {
			t.Fatalf("allocation should follow insertion order, got first %s last %s", result.Codes[0], result.Codes[total-1])
		}
		sold, err := store.CountSold(ctx, "p1")
		if err != nil {
			t.Fatalf("count sold failed: %v", err)
		}
		if sold != int64(total) {
			t.Fatalf("sold want %d got %d", total, sold)
		}

		released, err := store.Release(ctx, "p1", "o1", result.Codes)
		if err != nil {
			t.Fatalf("release across chunks failed: %v", err)
		}
		if released.Released != total {
			t.Fatalf("released want %d got %d", total, released.Released)
		}
	})
}

// sqlite 单条语句的绑定变量上限为 32766
func TestGormInventoryStoreAllocateBeyondSQLiteVariableLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skip large allocation in short mode")
	}
	store := NewGormInventoryStore(setupInventoryTestDB(t))
	ctx := context.Background()
	createTestProduct(t, store, "p1")
	const total = 40000
	codes := make([]string, 0, total)
	for i := 0; i < total; i++ {
		codes = append(codes, fmt.Sprintf("LARGE-%06d", i))
	}
	mustInsert(t, store, "p1", codes...)

	result, err := store.Allocate(ctx, AllocateRequest{ProductID: "p1", Quantity: total, OrderID: "o1"})
	if err != nil {
		t.Fatalf("allocate %d codes failed: %v", total, err)
	}
	if len(result.Codes) != total || result.Stock != 0 {
		t.Fatalf("allocate want %d codes and stock 0 got %d/%d", total, len(result.Codes), result.Stock)
	}
}
