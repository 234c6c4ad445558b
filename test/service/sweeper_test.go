package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/service"
	"fulfillment-service/internal/sweeper"

	"go.uber.org/zap"
)

// flakyStockService ломает Release для одной резервации.
type flakyStockService struct {
	service.StockService
	failID string
}

func (f *flakyStockService) Release(ctx context.Context, reservationID string) (bool, error) {
	if reservationID == f.failID {
		return false, fmt.Errorf("connection reset by peer")
	}
	return f.StockService.Release(ctx, reservationID)
}

func TestSweeper_CleanupExpired(t *testing.T) {
	repos := setupRepos(t)
	bus := &MockEventBus{}
	svc := service.NewStockService(repos, bus, 0, zap.NewNop())
	sw := sweeper.NewSweeper(repos, svc, zap.NewNop())
	ctx := context.Background()

	p := seedProduct(t, repos, 20)

	// три просроченные и одна живая
	for i := 0; i < 3; i++ {
		if _, err := svc.Reserve(ctx, service.ReserveInput{
			ProductID: p.ID,
			Quantity:  2,
			SessionID: "sess-sweep",
			TTL:       time.Nanosecond,
		}); err != nil {
			t.Fatalf("Reserve expired #%d: %v", i, err)
		}
	}
	liveID, err := svc.Reserve(ctx, service.ReserveInput{
		ProductID: p.ID,
		Quantity:  5,
		SessionID: "sess-sweep",
		TTL:       time.Hour,
	})
	if err != nil {
		t.Fatalf("Reserve live: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	released, err := sw.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if released != 3 {
		t.Fatalf("released = %d, want 3", released)
	}

	// вернулись только просроченные единицы, живой hold остался
	got, _ := repos.Products.GetByID(ctx, p.ID)
	if got.Stock != 15 {
		t.Fatalf("stock = %d, want 15", got.Stock)
	}
	live, err := svc.GetReservation(ctx, liveID)
	if err != nil {
		t.Fatalf("GetReservation live: %v", err)
	}
	if live.Status != "RESERVED" {
		t.Fatalf("live status = %s, want RESERVED", live.Status)
	}

	// повторный обход ничего не находит
	released, err = sw.CleanupExpired(ctx)
	if err != nil || released != 0 {
		t.Fatalf("second pass: released=%d err=%v", released, err)
	}

	for _, e := range bus.Released {
		if e.Reason != "cancelled" {
			t.Fatalf("release reason = %q, want cancelled", e.Reason)
		}
	}
	if len(bus.Released) != 3 {
		t.Fatalf("released events = %d, want 3", len(bus.Released))
	}
}

func TestSweeper_CleanupExpiredPartialFailure(t *testing.T) {
	repos := setupRepos(t)
	svc := service.NewStockService(repos, nil, 0, zap.NewNop())
	ctx := context.Background()

	p := seedProduct(t, repos, 20)

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := svc.Reserve(ctx, service.ReserveInput{
			ProductID: p.ID,
			Quantity:  2,
			SessionID: "sess-flaky",
			TTL:       time.Nanosecond,
		})
		if err != nil {
			t.Fatalf("Reserve #%d: %v", i, err)
		}
		ids = append(ids, id)
	}

	time.Sleep(10 * time.Millisecond)

	sw := sweeper.NewSweeper(repos, &flakyStockService{StockService: svc, failID: ids[1]}, zap.NewNop())

	// ошибка по одной резервации не прерывает обход остальных
	released, err := sw.CleanupExpired(ctx)
	if err == nil {
		t.Fatal("CleanupExpired returned nil error with a failing release")
	}
	if released != 2 {
		t.Fatalf("released = %d, want 2", released)
	}

	got, _ := repos.Products.GetByID(ctx, p.ID)
	if got.Stock != 18 {
		t.Fatalf("stock = %d, want 18", got.Stock)
	}

	stuck, err := svc.GetReservation(ctx, ids[1])
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if stuck.Status != models.ReservationReserved {
		t.Fatalf("failed reservation status = %s, want RESERVED", stuck.Status)
	}

	for _, id := range []string{ids[0], ids[2]} {
		r, err := svc.GetReservation(ctx, id)
		if err != nil {
			t.Fatalf("GetReservation: %v", err)
		}
		if r.Status != models.ReservationCancelled {
			t.Fatalf("reservation %s status = %s, want CANCELLED", id, r.Status)
		}
	}
}
