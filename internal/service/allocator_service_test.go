package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/repository"
)

func TestAllocatorAllocateMarksCodesSold(t *testing.T) {
	eachBackend(t, AllocatorOptions{MaxRetries: 3}, func(t *testing.T, f *inventoryFixture) {
		ctx := context.Background()
		f.createProduct(t, "p1", "9.90")
		f.importCodes(t, "p1", "A", "B", "C", "D")

		allocation, err := f.allocator.Allocate(ctx, "p1", 3, "order-1")
		if err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
		if allocation.Kind != AllocationAllocated || allocation.SyntheticCount != 0 {
			t.Fatalf("unexpected allocation kind: %+v", allocation)
		}
		if len(allocation.Codes) != 3 {
			t.Fatalf("expected 3 codes, got %v", allocation.Codes)
		}
		seen := make(map[string]struct{})
		for _, code := range allocation.Codes {
			if _, ok := seen[code]; ok {
				t.Fatalf("duplicate code returned: %v", allocation.Codes)
			}
			seen[code] = struct{}{}
			item := f.codeByValue(t, "p1", code)
			if item.Status != constants.CodeStatusSold {
				t.Fatalf("code %s expected sold, got %s", code, item.Status)
			}
			if item.SoldOrderID == nil || *item.SoldOrderID != "order-1" {
				t.Fatalf("code %s sold order mismatch: %v", code, item.SoldOrderID)
			}
		}
		if allocation.StockAfter != 1 {
			t.Fatalf("expected stock after 1, got %d", allocation.StockAfter)
		}
		if got := f.stock(t, "p1"); got != 1 {
			t.Fatalf("expected product stock 1, got %d", got)
		}
		stats := f.stats(t, "p1")
		if stats.Available != 1 || stats.Sold != 3 || stats.Total != 4 {
			t.Fatalf("unexpected stats: %+v", stats)
		}
	})
}

func TestAllocatorInsufficientStockLeavesPoolUnchanged(t *testing.T) {
	eachBackend(t, AllocatorOptions{MaxRetries: 3}, func(t *testing.T, f *inventoryFixture) {
		ctx := context.Background()
		f.createProduct(t, "p1", "1.00")
		f.importCodes(t, "p1", "A", "B")

		_, err := f.allocator.Allocate(ctx, "p1", 3, "order-1")
		if !errors.Is(err, ErrInsufficientStock) {
			t.Fatalf("expected insufficient stock, got %v", err)
		}
		var unavailable *ItemUnavailableError
		if !errors.As(err, &unavailable) || unavailable.ProductID != "p1" || unavailable.Requested != 3 {
			t.Fatalf("expected item unavailable error, got %#v", err)
		}
		stats := f.stats(t, "p1")
		if stats.Available != 2 || stats.Sold != 0 {
			t.Fatalf("pool changed after failed allocation: %+v", stats)
		}
		if got := f.stock(t, "p1"); got != 2 {
			t.Fatalf("expected stock 2, got %d", got)
		}
	})
}

func TestAllocatorRejectsInvalidRequest(t *testing.T) {
	eachBackend(t, AllocatorOptions{}, func(t *testing.T, f *inventoryFixture) {
		ctx := context.Background()
		f.createProduct(t, "p1", "1.00")
		f.importCodes(t, "p1", "A")

		cases := []struct {
			name      string
			productID string
			quantity  int
			orderID   string
		}{
			{name: "zero quantity", productID: "p1", quantity: 0, orderID: "o1"},
			{name: "negative quantity", productID: "p1", quantity: -2, orderID: "o1"},
			{name: "empty order", productID: "p1", quantity: 1, orderID: " "},
			{name: "empty product", productID: "", quantity: 1, orderID: "o1"},
			{name: "unknown product", productID: "missing", quantity: 1, orderID: "o1"},
		}
		for _, tc := range cases {
			if _, err := f.allocator.Allocate(ctx, tc.productID, tc.quantity, tc.orderID); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("%s: expected invalid request, got %v", tc.name, err)
			}
		}
		if _, err := f.allocator.Allocate(ctx, "missing", 1, "o1"); !errors.Is(err, ErrProductNotFound) {
			t.Fatalf("expected product not found, got %v", err)
		}
		if stats := f.stats(t, "p1"); stats.Available != 1 {
			t.Fatalf("invalid requests must not touch the pool: %+v", stats)
		}
	})
}

func TestAllocatorConcurrentAllocations(t *testing.T) {
	const workers = 20
	run := func(t *testing.T, f *inventoryFixture, poolSize int) (int, int, map[string]struct{}) {
		t.Helper()
		codes := make([]string, 0, poolSize)
		for i := 0; i < poolSize; i++ {
			codes = append(codes, fmt.Sprintf("CODE-%03d", i))
		}
		f.importCodes(t, "p1", codes...)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			failures  int
			returned  = make(map[string]struct{})
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				allocation, err := f.allocator.Allocate(context.Background(), "p1", 1, fmt.Sprintf("order-%d", idx))
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if !errors.Is(err, ErrInsufficientStock) {
						t.Errorf("unexpected allocate error: %v", err)
					}
					failures++
					return
				}
				successes++
				for _, code := range allocation.Codes {
					if _, ok := returned[code]; ok {
						t.Errorf("code %s allocated twice", code)
					}
					returned[code] = struct{}{}
				}
			}(i)
		}
		wg.Wait()
		return successes, failures, returned
	}

	t.Run("exact pool", func(t *testing.T) {
		eachBackend(t, AllocatorOptions{MaxRetries: 3}, func(t *testing.T, f *inventoryFixture) {
			f.createProduct(t, "p1", "1.00")
			successes, failures, returned := run(t, f, workers)
			if successes != workers || failures != 0 || len(returned) != workers {
				t.Fatalf("expected %d successes, got successes=%d failures=%d distinct=%d", workers, successes, failures, len(returned))
			}
			if stats := f.stats(t, "p1"); stats.Available != 0 || stats.Sold != workers {
				t.Fatalf("unexpected stats: %+v", stats)
			}
		})
	})

	t.Run("short pool", func(t *testing.T) {
		eachBackend(t, AllocatorOptions{MaxRetries: 3}, func(t *testing.T, f *inventoryFixture) {
			f.createProduct(t, "p1", "1.00")
			successes, failures, returned := run(t, f, workers-1)
			if successes != workers-1 || failures != 1 || len(returned) != workers-1 {
				t.Fatalf("expected exactly one failure, got successes=%d failures=%d distinct=%d", successes, failures, len(returned))
			}
			if got := f.stock(t, "p1"); got != 0 {
				t.Fatalf("expected stock 0, got %d", got)
			}
		})
	})
}

func TestAllocatorSyntheticFallback(t *testing.T) {
	options := AllocatorOptions{
		SyntheticFallback: true,
		MaxRetries:        3,
		Generate:          sequenceGenerator("A", "SYN-0001", "SYN-0002"),
	}
	eachBackend(t, options, func(t *testing.T, f *inventoryFixture) {
		ctx := context.Background()
		f.createProduct(t, "p1", "1.00")
		f.importCodes(t, "p1", "A")

		allocation, err := f.allocator.Allocate(ctx, "p1", 2, "order-1")
		if err != nil {
			t.Fatalf("allocate with fallback failed: %v", err)
		}
		if allocation.Kind != AllocationSyntheticFallback || allocation.SyntheticCount != 1 {
			t.Fatalf("expected synthetic fallback with one generated code, got %+v", allocation)
		}
		if len(allocation.Codes) != 2 || allocation.Codes[0] != "A" || allocation.Codes[1] == "A" {
			t.Fatalf("unexpected codes: %v", allocation.Codes)
		}
		synthetic := f.codeByValue(t, "p1", allocation.Codes[1])
		if !synthetic.Synthetic || synthetic.Status != constants.CodeStatusSold {
			t.Fatalf("generated code should be recorded as sold synthetic: %+v", synthetic)
		}
		stats := f.stats(t, "p1")
		if stats.Available != 0 || stats.Sold != 2 {
			t.Fatalf("unexpected stats: %+v", stats)
		}

		released, err := f.allocator.Release(ctx, "p1", "order-1", allocation.Codes)
		if err != nil {
			t.Fatalf("release failed: %v", err)
		}
		if released != 1 {
			t.Fatalf("only the pooled code should be released, got %d", released)
		}
	})
}

func TestAllocatorFallbackDisabledByDefault(t *testing.T) {
	eachBackend(t, AllocatorOptions{Generate: sequenceGenerator("SYN-0001")}, func(t *testing.T, f *inventoryFixture) {
		f.createProduct(t, "p1", "1.00")
		if _, err := f.allocator.Allocate(context.Background(), "p1", 1, "order-1"); !errors.Is(err, ErrInsufficientStock) {
			t.Fatalf("expected insufficient stock without fallback, got %v", err)
		}
	})
}

func TestAllocatorLowStockAlert(t *testing.T) {
	eachBackend(t, AllocatorOptions{MaxRetries: 1, LowStockThreshold: 2}, func(t *testing.T, f *inventoryFixture) {
		ctx := context.Background()
		f.createProduct(t, "p1", "1.00")
		f.importCodes(t, "p1", "A", "B", "C", "D")

		if _, err := f.allocator.Allocate(ctx, "p1", 1, "order-1"); err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
		if alerts := f.publisher.lowStockAlerts(); len(alerts) != 0 {
			t.Fatalf("no alert expected above threshold, got %+v", alerts)
		}
		if _, err := f.allocator.Allocate(ctx, "p1", 1, "order-2"); err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
		alerts := f.publisher.lowStockAlerts()
		if len(alerts) != 1 || alerts[0].ProductID != "p1" || alerts[0].Stock != 2 || alerts[0].Threshold != 2 {
			t.Fatalf("unexpected low stock alerts: %+v", alerts)
		}
	})
}

func TestAllocatorReleaseIsIdempotent(t *testing.T) {
	eachBackend(t, AllocatorOptions{MaxRetries: 1}, func(t *testing.T, f *inventoryFixture) {
		ctx := context.Background()
		f.createProduct(t, "p1", "1.00")
		f.importCodes(t, "p1", "A", "B", "C")

		allocation, err := f.allocator.Allocate(ctx, "p1", 2, "order-1")
		if err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
		released, err := f.allocator.Release(ctx, "p1", "order-1", allocation.Codes)
		if err != nil || released != 2 {
			t.Fatalf("first release failed: released=%d err=%v", released, err)
		}
		released, err = f.allocator.Release(ctx, "p1", "order-1", allocation.Codes)
		if err != nil || released != 0 {
			t.Fatalf("second release should be a no-op: released=%d err=%v", released, err)
		}
		if got := f.stock(t, "p1"); got != 3 {
			t.Fatalf("expected stock restored to 3, got %d", got)
		}

		other, err := f.allocator.Allocate(ctx, "p1", 1, "order-2")
		if err != nil {
			t.Fatalf("allocate failed: %v", err)
		}
		released, err = f.allocator.Release(ctx, "p1", "order-1", other.Codes)
		if err != nil || released != 0 {
			t.Fatalf("release must ignore codes of another order: released=%d err=%v", released, err)
		}
	})
}

// conflictStore 前 conflicts 次分配返回并发冲突
type conflictStore struct {
	repository.InventoryStore
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (s *conflictStore) Allocate(ctx context.Context, req repository.AllocateRequest) (*repository.AllocateResult, error) {
	s.mu.Lock()
	s.calls++
	conflict := s.calls <= s.conflicts
	s.mu.Unlock()
	if conflict {
		return nil, repository.ErrAllocationConflict
	}
	return s.InventoryStore.Allocate(ctx, req)
}

func TestAllocatorRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	memory := repository.NewMemoryInventoryStore()
	seed := newInventoryFixture(memory, repository.NewMemoryOrderRepository(), AllocatorOptions{})
	seed.createProduct(t, "p1", "1.00")
	seed.importCodes(t, "p1", "A", "B")

	store := &conflictStore{InventoryStore: memory, conflicts: 2}
	allocator := NewAllocatorService(store, AllocatorOptions{MaxRetries: 3}, nil, nil, nil)
	allocation, err := allocator.Allocate(ctx, "p1", 1, "order-1")
	if err != nil {
		t.Fatalf("allocate after retries failed: %v", err)
	}
	if store.calls != 3 || len(allocation.Codes) != 1 || allocation.Codes[0] != "A" {
		t.Fatalf("unexpected retry result: calls=%d codes=%v", store.calls, allocation.Codes)
	}

	exhausted := &conflictStore{InventoryStore: memory, conflicts: 10}
	allocator = NewAllocatorService(exhausted, AllocatorOptions{MaxRetries: 2}, nil, nil, nil)
	_, err = allocator.Allocate(ctx, "p1", 1, "order-2")
	if !errors.Is(err, ErrStorage) || !errors.Is(err, repository.ErrAllocationConflict) {
		t.Fatalf("expected storage error wrapping conflict, got %v", err)
	}
	if exhausted.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", exhausted.calls)
	}
	if stats := seed.stats(t, "p1"); stats.Available != 1 || stats.Sold != 1 {
		t.Fatalf("unexpected stats after exhausted retries: %+v", stats)
	}
}

func TestAllocatorRejectsQuantityOverLimit(t *testing.T) {
	options := AllocatorOptions{
		SyntheticFallback: true,
		MaxQuantity:       5,
		Generate:          sequenceGenerator("SYN-0001"),
	}
	eachBackend(t, options, func(t *testing.T, f *inventoryFixture) {
		ctx := context.Background()
		f.createProduct(t, "p1", "1.00")
		f.importCodes(t, "p1", "A")

		for _, quantity := range []int{6, 1 << 50} {
			if _, err := f.allocator.Allocate(ctx, "p1", quantity, "o1"); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("quantity %d: expected invalid request, got %v", quantity, err)
			}
		}
		if stats := f.stats(t, "p1"); stats.Available != 1 || stats.Sold != 0 {
			t.Fatalf("over-limit requests must not touch the pool: %+v", stats)
		}
	})
}

func TestAllocatorDefaultMaxQuantity(t *testing.T) {
	allocator := NewAllocatorService(repository.NewMemoryInventoryStore(), AllocatorOptions{}, nil, nil, nil)
	if allocator.MaxQuantity() != defaultMaxAllocateQuantity {
		t.Fatalf("default max quantity want %d got %d", defaultMaxAllocateQuantity, allocator.MaxQuantity())
	}
	if _, err := allocator.Allocate(context.Background(), "p1", defaultMaxAllocateQuantity+1, "o1"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request above default limit, got %v", err)
	}
}
