package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matajir-next/internal/constants"
	"github.com/matajir-next/internal/models"
)

func eachOrderRepository(t *testing.T, fn func(t *testing.T, repo OrderRepository)) {
	t.Run("gorm", func(t *testing.T) {
		fn(t, NewOrderRepository(setupInventoryTestDB(t)))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryOrderRepository())
	})
}

func newTestOrder(orderNo string) *models.Order {
	return &models.Order{
		OrderNo:       orderNo,
		UserRef:       "u1",
		Status:        constants.OrderStatusCompleted,
		DeliveryCodes: models.DeliveryCodes{"p1": {"X1", "X2"}},
		Items: []models.OrderItem{
			{ProductID: "p1", Quantity: 2, Allocation: constants.AllocationKindAllocated},
		},
	}
}

func TestOrderRepositoryCreateAndGet(t *testing.T) {
	eachOrderRepository(t, func(t *testing.T, repo OrderRepository) {
		ctx := context.Background()
		if err := repo.Create(ctx, newTestOrder("o1")); err != nil {
			t.Fatalf("create order failed: %v", err)
		}
		if err := repo.Create(ctx, newTestOrder("o1")); !errors.Is(err, ErrOrderDuplicated) {
			t.Fatalf("duplicate order want ErrOrderDuplicated got %v", err)
		}

		order, err := repo.GetByOrderNo(ctx, "o1")
		if err != nil {
			t.Fatalf("get order failed: %v", err)
		}
		if order == nil {
			t.Fatalf("order o1 should exist")
		}
		if got := order.DeliveryCodes["p1"]; len(got) != 2 || got[0] != "X1" || got[1] != "X2" {
			t.Fatalf("delivery codes mismatch: %v", got)
		}
		if len(order.Items) != 1 || order.Items[0].Quantity != 2 {
			t.Fatalf("order items mismatch: %+v", order.Items)
		}

		missing, err := repo.GetByOrderNo(ctx, "nope")
		if err != nil {
			t.Fatalf("get missing order failed: %v", err)
		}
		if missing != nil {
			t.Fatalf("missing order should be nil")
		}
	})
}

func TestOrderRepositoryRevealBlocksVoid(t *testing.T) {
	eachOrderRepository(t, func(t *testing.T, repo OrderRepository) {
		ctx := context.Background()
		if err := repo.Create(ctx, newTestOrder("o1")); err != nil {
			t.Fatalf("create order failed: %v", err)
		}
		ok, err := repo.MarkRevealed(ctx, "o1", time.Now())
		if err != nil || !ok {
			t.Fatalf("first reveal should succeed, ok=%v err=%v", ok, err)
		}
		ok, err = repo.MarkRevealed(ctx, "o1", time.Now())
		if err != nil || ok {
			t.Fatalf("second reveal should not update, ok=%v err=%v", ok, err)
		}
		ok, err = repo.MarkVoided(ctx, "o1", time.Now())
		if err != nil || ok {
			t.Fatalf("void after reveal should not update, ok=%v err=%v", ok, err)
		}
	})
}

func TestOrderRepositoryVoidAndList(t *testing.T) {
	eachOrderRepository(t, func(t *testing.T, repo OrderRepository) {
		ctx := context.Background()
		for _, no := range []string{"o1", "o2", "o3"} {
			if err := repo.Create(ctx, newTestOrder(no)); err != nil {
				t.Fatalf("create order %s failed: %v", no, err)
			}
		}
		ok, err := repo.MarkVoided(ctx, "o2", time.Now())
		if err != nil || !ok {
			t.Fatalf("void should succeed, ok=%v err=%v", ok, err)
		}

		voided, total, err := repo.List(ctx, OrderListFilter{Status: constants.OrderStatusVoided, Page: 1, PageSize: 10})
		if err != nil {
			t.Fatalf("list voided failed: %v", err)
		}
		if total != 1 || len(voided) != 1 || voided[0].OrderNo != "o2" {
			t.Fatalf("voided list want [o2] got total=%d %+v", total, voided)
		}

		page, total, err := repo.List(ctx, OrderListFilter{ProductID: "p1", Page: 1, PageSize: 2})
		if err != nil {
			t.Fatalf("list by product failed: %v", err)
		}
		if total != 3 || len(page) != 2 {
			t.Fatalf("product list want total 3 page 2 got %d/%d", total, len(page))
		}
		if page[0].OrderNo != "o3" {
			t.Fatalf("list should be newest first, got %s", page[0].OrderNo)
		}
	})
}
