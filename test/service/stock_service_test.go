package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fulfillment-service/internal/migrate"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"
	"fulfillment-service/internal/service"
	"fulfillment-service/pkg/testutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockEventBus считает публикации; сервисы не должны падать из-за шины.
type MockEventBus struct {
	mu sync.Mutex

	Reserved      []service.StockReservedEvent
	Confirmed     []service.ReservationConfirmedEvent
	Released      []service.ReservationReleasedEvent
	RefundCreated []service.RefundRequestedEvent
	RefundChanged []service.RefundStatusChangedEvent
}

func (m *MockEventBus) PublishStockReserved(ctx context.Context, e service.StockReservedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reserved = append(m.Reserved, e)
	return nil
}

func (m *MockEventBus) PublishReservationConfirmed(ctx context.Context, e service.ReservationConfirmedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Confirmed = append(m.Confirmed, e)
	return nil
}

func (m *MockEventBus) PublishReservationReleased(ctx context.Context, e service.ReservationReleasedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Released = append(m.Released, e)
	return nil
}

func (m *MockEventBus) PublishRefundRequested(ctx context.Context, e service.RefundRequestedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefundCreated = append(m.RefundCreated, e)
	return nil
}

func (m *MockEventBus) PublishRefundStatusChanged(ctx context.Context, e service.RefundStatusChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RefundChanged = append(m.RefundChanged, e)
	return nil
}

func setupRepos(t *testing.T) *repository.Repository {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	if err := migrate.MigrateFulfillmentDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repository.New(db)
}

func seedProduct(t *testing.T, repos *repository.Repository, stock int32) *models.Product {
	t.Helper()
	p := &models.Product{
		StoreID:    uuid.New(),
		SKU:        "SKU-STOCK",
		Name:       "Stock Product",
		PriceCents: 250000,
		Stock:      stock,
		IsActive:   true,
	}
	if err := repos.Products.Create(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func seedVariant(t *testing.T, repos *repository.Repository, stock int32) (*models.Product, *models.ProductVariant) {
	t.Helper()
	p := &models.Product{
		StoreID:     uuid.New(),
		SKU:         "SKU-VAR",
		Name:        "Variant Product",
		PriceCents:  100000,
		HasVariants: true,
		IsActive:    true,
	}
	if err := repos.Products.Create(context.Background(), p); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	v := &models.ProductVariant{
		ProductID:  p.ID,
		SKU:        "SKU-VAR-M",
		PriceCents: 120000,
		Stock:      stock,
		IsActive:   true,
	}
	if err := repos.Variants.Create(context.Background(), v); err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return p, v
}

func TestStockService_ValidateProduct(t *testing.T) {
	repos := setupRepos(t)
	bus := &MockEventBus{}
	svc := service.NewStockService(repos, bus, 0, zap.NewNop())
	ctx := context.Background()

	p := seedProduct(t, repos, 10)

	res, err := svc.ValidateProduct(ctx, p.ID, nil, 3)
	if err != nil {
		t.Fatalf("ValidateProduct: %v", err)
	}
	if res.PriceCents != 250000 || res.Available != 10 {
		t.Fatalf("ValidateProduct = %+v", res)
	}

	if _, err := svc.ValidateProduct(ctx, p.ID, nil, 11); !errors.Is(err, service.ErrOutOfStock) {
		t.Fatalf("quantity over stock: err = %v, want ErrOutOfStock", err)
	}
	if _, err := svc.ValidateProduct(ctx, p.ID, nil, 0); !errors.Is(err, service.ErrInvalidQuantity) {
		t.Fatalf("zero quantity: err = %v, want ErrInvalidQuantity", err)
	}
	if _, err := svc.ValidateProduct(ctx, uuid.New(), nil, 1); !errors.Is(err, service.ErrProductNotFound) {
		t.Fatalf("unknown product: err = %v, want ErrProductNotFound", err)
	}

	// товар с вариантами без указания варианта
	vp, v := seedVariant(t, repos, 5)
	if _, err := svc.ValidateProduct(ctx, vp.ID, nil, 1); !errors.Is(err, service.ErrVariantRequired) {
		t.Fatalf("variant product without variant: err = %v, want ErrVariantRequired", err)
	}
	res, err = svc.ValidateProduct(ctx, vp.ID, &v.ID, 2)
	if err != nil {
		t.Fatalf("ValidateProduct variant: %v", err)
	}
	if res.PriceCents != 120000 || res.Available != 5 {
		t.Fatalf("ValidateProduct variant = %+v", res)
	}
}

func TestStockService_ReserveAndConfirm(t *testing.T) {
	repos := setupRepos(t)
	bus := &MockEventBus{}
	svc := service.NewStockService(repos, bus, 15*time.Minute, zap.NewNop())
	ctx := context.Background()

	_, v := seedVariant(t, repos, 10)
	p, _ := repos.Products.GetByID(ctx, v.ProductID)

	id, err := svc.Reserve(ctx, service.ReserveInput{
		ProductID: p.ID,
		VariantID: &v.ID,
		Quantity:  3,
		SessionID: "sess-1",
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if id == "" {
		t.Fatal("Reserve returned empty reservation id")
	}

	got, _ := repos.Variants.Get(ctx, v.ID)
	if got.Reserved != 3 || got.Available() != 7 {
		t.Fatalf("after reserve: reserved=%d available=%d", got.Reserved, got.Available())
	}

	rsv, err := svc.GetReservation(ctx, id)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	if rsv.Status != models.ReservationReserved || len(rsv.Metadata) == 0 {
		t.Fatalf("reservation row: %+v", rsv)
	}

	ok, err := svc.Confirm(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Confirm: ok=%v err=%v", ok, err)
	}

	// подтверждение не трогает счётчики — списание произойдёт при отгрузке
	got, _ = repos.Variants.Get(ctx, v.ID)
	if got.Reserved != 3 {
		t.Fatalf("reserved after confirm = %d, want 3", got.Reserved)
	}

	if len(bus.Reserved) != 1 || len(bus.Confirmed) != 1 {
		t.Fatalf("events: reserved=%d confirmed=%d", len(bus.Reserved), len(bus.Confirmed))
	}
}

func TestStockService_ReserveOutOfStock(t *testing.T) {
	repos := setupRepos(t)
	svc := service.NewStockService(repos, nil, 0, zap.NewNop())
	ctx := context.Background()

	p := seedProduct(t, repos, 5)

	if _, err := svc.Reserve(ctx, service.ReserveInput{
		ProductID: p.ID,
		Quantity:  5,
		SessionID: "sess-a",
	}); err != nil {
		t.Fatalf("Reserve(5): %v", err)
	}

	// остаток исчерпан — следующая резервация отклоняется
	_, err := svc.Reserve(ctx, service.ReserveInput{
		ProductID: p.ID,
		Quantity:  1,
		SessionID: "sess-b",
	})
	if !errors.Is(err, service.ErrOutOfStock) {
		t.Fatalf("Reserve over stock: err = %v, want ErrOutOfStock", err)
	}

	got, _ := repos.Products.GetByID(ctx, p.ID)
	if got.Stock != 0 {
		t.Fatalf("stock = %d, want 0", got.Stock)
	}
}

func TestStockService_ConcurrentReserve(t *testing.T) {
	repos := setupRepos(t)
	svc := service.NewStockService(repos, nil, 0, zap.NewNop())
	ctx := context.Background()

	p := seedProduct(t, repos, 10)

	// два конкурентных hold по 6 единиц на остатке 10:
	// guard-апдейт пропускает ровно один
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, service.ReserveInput{
				ProductID: p.ID,
				Quantity:  6,
				SessionID: "sess-race",
			})
		}(i)
	}
	wg.Wait()

	var okCount, conflictCount int
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case errors.Is(err, service.ErrOutOfStock):
			conflictCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if okCount != 1 || conflictCount != 1 {
		t.Fatalf("okCount=%d conflictCount=%d, want 1/1", okCount, conflictCount)
	}

	got, _ := repos.Products.GetByID(ctx, p.ID)
	if got.Stock != 4 {
		t.Fatalf("stock = %d, want 4", got.Stock)
	}
}

func TestStockService_ReleaseIdempotent(t *testing.T) {
	repos := setupRepos(t)
	bus := &MockEventBus{}
	svc := service.NewStockService(repos, bus, 0, zap.NewNop())
	ctx := context.Background()

	p := seedProduct(t, repos, 10)

	id, err := svc.Reserve(ctx, service.ReserveInput{
		ProductID: p.ID,
		Quantity:  4,
		SessionID: "sess-rel",
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	ok, err := svc.Release(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Release: ok=%v err=%v", ok, err)
	}
	got, _ := repos.Products.GetByID(ctx, p.ID)
	if got.Stock != 10 {
		t.Fatalf("stock after release = %d, want 10", got.Stock)
	}

	// повторный release — no-op, остаток не возвращается дважды
	ok, err = svc.Release(ctx, id)
	if err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if ok {
		t.Fatal("second Release reported released=true")
	}
	got, _ = repos.Products.GetByID(ctx, p.ID)
	if got.Stock != 10 {
		t.Fatalf("stock after double release = %d, want 10", got.Stock)
	}

	// подтверждение отменённой — no-op
	ok, err = svc.Confirm(ctx, id)
	if err != nil || ok {
		t.Fatalf("Confirm cancelled: ok=%v err=%v", ok, err)
	}

	if len(bus.Released) != 1 {
		t.Fatalf("released events = %d, want 1", len(bus.Released))
	}
	if bus.Released[0].Reason != "cancelled" {
		t.Fatalf("release reason = %q, want cancelled", bus.Released[0].Reason)
	}
}

func TestStockService_ConfirmExpired(t *testing.T) {
	repos := setupRepos(t)
	bus := &MockEventBus{}
	svc := service.NewStockService(repos, bus, 0, zap.NewNop())
	ctx := context.Background()

	p := seedProduct(t, repos, 10)

	id, err := svc.Reserve(ctx, service.ReserveInput{
		ProductID: p.ID,
		Quantity:  2,
		SessionID: "sess-exp",
		TTL:       time.Nanosecond,
	})
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	ok, err := svc.Confirm(ctx, id)
	if !errors.Is(err, service.ErrReservationExpired) {
		t.Fatalf("Confirm expired: err = %v, want ErrReservationExpired", err)
	}
	if ok {
		t.Fatal("Confirm expired reported confirmed=true")
	}

	// остаток вернулся сразу, не дожидаясь свипера
	got, _ := repos.Products.GetByID(ctx, p.ID)
	if got.Stock != 10 {
		t.Fatalf("stock after expired confirm = %d, want 10", got.Stock)
	}
	rsv, _ := svc.GetReservation(ctx, id)
	if rsv.Status != models.ReservationCancelled {
		t.Fatalf("status = %s, want CANCELLED", rsv.Status)
	}

	if len(bus.Released) != 1 || bus.Released[0].Reason != "expired" {
		t.Fatalf("released events: %+v", bus.Released)
	}
}

func TestStockService_ListSessionReservations(t *testing.T) {
	repos := setupRepos(t)
	svc := service.NewStockService(repos, nil, 0, zap.NewNop())
	ctx := context.Background()

	p := seedProduct(t, repos, 10)

	for i := 0; i < 2; i++ {
		if _, err := svc.Reserve(ctx, service.ReserveInput{
			ProductID: p.ID,
			Quantity:  1,
			SessionID: "sess-list",
		}); err != nil {
			t.Fatalf("Reserve: %v", err)
		}
	}

	list, err := svc.ListSessionReservations(ctx, "sess-list")
	if err != nil {
		t.Fatalf("ListSessionReservations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}

	if _, err := svc.ListSessionReservations(ctx, ""); !errors.Is(err, service.ErrSessionRequired) {
		t.Fatalf("empty session: err = %v, want ErrSessionRequired", err)
	}
}
