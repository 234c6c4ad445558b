package repository_test

import (
	"context"
	"testing"
	"time"

	"fulfillment-service/internal/migrate"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"
	"fulfillment-service/pkg/testutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := testutil.SetupTestPostgres(t)
	if err := migrate.MigrateFulfillmentDB(context.Background(), db, zap.NewNop(), migrate.DefaultMigrateOptions()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createProduct(t *testing.T, repo repository.ProductRepo, stock int32) *models.Product {
	t.Helper()
	p := &models.Product{
		StoreID:    uuid.New(),
		SKU:        "SKU-001",
		Name:       "Test Product",
		PriceCents: 10000,
		Stock:      stock,
		IsActive:   true,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("Create product: %v", err)
	}
	return p
}

func TestProductRepo_TakeRestoreStock(t *testing.T) {
	db := setupDB(t)
	repo := repository.NewProductRepo(db)
	ctx := context.Background()

	p := createProduct(t, repo, 10)

	ok, err := repo.TakeStock(ctx, p.ID, 3)
	if err != nil || !ok {
		t.Fatalf("TakeStock(3): ok=%v err=%v", ok, err)
	}
	got, _ := repo.GetByID(ctx, p.ID)
	if got.Stock != 7 {
		t.Fatalf("stock after TakeStock = %d, want 7", got.Stock)
	}

	// больше остатка — guard в SQL обязан отказать
	ok, err = repo.TakeStock(ctx, p.ID, 8)
	if err != nil {
		t.Fatalf("TakeStock(8): %v", err)
	}
	if ok {
		t.Fatal("TakeStock(8) succeeded with stock=7")
	}

	ok, err = repo.RestoreStock(ctx, p.ID, 3)
	if err != nil || !ok {
		t.Fatalf("RestoreStock(3): ok=%v err=%v", ok, err)
	}
	got, _ = repo.GetByID(ctx, p.ID)
	if got.Stock != 10 {
		t.Fatalf("stock after RestoreStock = %d, want 10", got.Stock)
	}
}

func TestVariantRepo_TryReserveRelease(t *testing.T) {
	db := setupDB(t)
	products := repository.NewProductRepo(db)
	variants := repository.NewVariantRepo(db)
	ctx := context.Background()

	p := createProduct(t, products, 0)
	v := &models.ProductVariant{
		ProductID:  p.ID,
		SKU:        "SKU-001-RED",
		PriceCents: 12000,
		Stock:      5,
		IsActive:   true,
	}
	if err := variants.Create(ctx, v); err != nil {
		t.Fatalf("Create variant: %v", err)
	}

	ok, err := variants.TryReserve(ctx, v.ID, 3)
	if err != nil || !ok {
		t.Fatalf("TryReserve(3): ok=%v err=%v", ok, err)
	}

	got, _ := variants.Get(ctx, v.ID)
	if got.Reserved != 3 || got.Available() != 2 {
		t.Fatalf("after reserve: reserved=%d available=%d", got.Reserved, got.Available())
	}

	// осталось 2 доступных — 3 зарезервировать нельзя
	ok, err = variants.TryReserve(ctx, v.ID, 3)
	if err != nil {
		t.Fatalf("TryReserve over capacity: %v", err)
	}
	if ok {
		t.Fatal("TryReserve(3) succeeded with available=2")
	}

	ok, err = variants.Release(ctx, v.ID, 3)
	if err != nil || !ok {
		t.Fatalf("Release(3): ok=%v err=%v", ok, err)
	}
	got, _ = variants.Get(ctx, v.ID)
	if got.Reserved != 0 {
		t.Fatalf("reserved after release = %d, want 0", got.Reserved)
	}

	// reserved уже 0 — освобождать нечего
	ok, _ = variants.Release(ctx, v.ID, 1)
	if ok {
		t.Fatal("Release(1) succeeded with reserved=0")
	}
}

func TestReservationRepo_Transitions(t *testing.T) {
	db := setupDB(t)
	products := repository.NewProductRepo(db)
	reservations := repository.NewReservationRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	p := createProduct(t, products, 10)

	rsv := &models.StockReservation{
		ReservationID: uuid.NewString(),
		SessionID:     "sess-1",
		ProductID:     p.ID,
		Quantity:      2,
		Status:        models.ReservationReserved,
		ExpiresAt:     now.Add(15 * time.Minute),
		CreatedAt:     now,
	}
	if err := reservations.Create(ctx, rsv); err != nil {
		t.Fatalf("Create reservation: %v", err)
	}

	got, err := reservations.GetByReservationID(ctx, rsv.ReservationID)
	if err != nil {
		t.Fatalf("GetByReservationID: %v", err)
	}
	if got == nil || got.Quantity != 2 || got.Status != models.ReservationReserved {
		t.Fatalf("GetByReservationID mismatch: %+v", got)
	}

	if got, _ := reservations.GetByReservationID(ctx, "no-such-id"); got != nil {
		t.Fatalf("GetByReservationID(unknown) = %+v, want nil", got)
	}

	ok, err := reservations.MarkConfirmed(ctx, rsv.ReservationID, now)
	if err != nil || !ok {
		t.Fatalf("MarkConfirmed: ok=%v err=%v", ok, err)
	}

	// повторное подтверждение и отмена подтверждённой — no-op
	if ok, _ := reservations.MarkConfirmed(ctx, rsv.ReservationID, now); ok {
		t.Fatal("second MarkConfirmed reported affected rows")
	}
	if ok, _ := reservations.MarkCancelled(ctx, rsv.ReservationID, now); ok {
		t.Fatal("MarkCancelled succeeded on CONFIRMED reservation")
	}

	got, _ = reservations.GetByReservationID(ctx, rsv.ReservationID)
	if got.Status != models.ReservationConfirmed || got.ConfirmedAt == nil {
		t.Fatalf("after confirm: %+v", got)
	}
}

func TestReservationRepo_ListExpired(t *testing.T) {
	db := setupDB(t)
	products := repository.NewProductRepo(db)
	reservations := repository.NewReservationRepo(db)
	ctx := context.Background()
	now := time.Now().UTC()

	p := createProduct(t, products, 100)

	mk := func(expiresAt time.Time, status models.ReservationStatus) {
		t.Helper()
		err := reservations.Create(ctx, &models.StockReservation{
			ReservationID: uuid.NewString(),
			SessionID:     "sess-exp",
			ProductID:     p.ID,
			Quantity:      1,
			Status:        status,
			ExpiresAt:     expiresAt,
			CreatedAt:     now,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	mk(now.Add(-10*time.Minute), models.ReservationReserved)
	mk(now.Add(-1*time.Minute), models.ReservationReserved)
	mk(now.Add(-5*time.Minute), models.ReservationCancelled) // уже освобождена
	mk(now.Add(20*time.Minute), models.ReservationReserved)  // ещё живая

	expired, err := reservations.ListExpired(ctx, now, 0)
	if err != nil {
		t.Fatalf("ListExpired: %v", err)
	}
	if len(expired) != 2 {
		t.Fatalf("ListExpired len = %d, want 2", len(expired))
	}
	if !expired[0].ExpiresAt.Before(expired[1].ExpiresAt) {
		t.Fatalf("ListExpired not ordered by expires_at: %v, %v", expired[0].ExpiresAt, expired[1].ExpiresAt)
	}
}

func TestRefundRepo_StatusGuardAndListing(t *testing.T) {
	db := setupDB(t)
	refunds := repository.NewRefundRepo(db)
	orders := repository.NewOrderRepo(db)
	payments := repository.NewPaymentRepo(db)
	ctx := context.Background()

	storeID := uuid.New()
	userID := uuid.New()

	order := &models.Order{
		UserID:          userID,
		StoreID:         storeID,
		Status:          models.OrderStatusDelivered,
		TotalPriceCents: 50000,
		CurrencyCode:    "RUB",
	}
	if err := orders.Create(ctx, order); err != nil {
		t.Fatalf("Create order: %v", err)
	}
	payment := &models.Payment{
		OrderID:          order.ID,
		ProviderChargeID: "pi_test_123",
		AmountCents:      50000,
		Status:           models.PaymentStatusCaptured,
	}
	if err := payments.Create(ctx, payment); err != nil {
		t.Fatalf("Create payment: %v", err)
	}

	rf := &models.Refund{
		OrderID:     order.ID,
		UserID:      userID,
		StoreID:     storeID,
		PaymentID:   payment.ID,
		AmountCents: 2999,
		Reason:      models.RefundReasonDamaged,
		Status:      models.RefundStatusPending,
	}
	if err := refunds.Create(ctx, rf); err != nil {
		t.Fatalf("Create refund: %v", err)
	}

	ok, err := refunds.UpdateStatusFrom(ctx, rf.ID, models.RefundStatusPending, map[string]any{
		"status": models.RefundStatusProcessing,
	})
	if err != nil || !ok {
		t.Fatalf("UpdateStatusFrom pending->processing: ok=%v err=%v", ok, err)
	}

	// guard: возврат уже не в PENDING
	ok, err = refunds.UpdateStatusFrom(ctx, rf.ID, models.RefundStatusPending, map[string]any{
		"status": models.RefundStatusRejected,
	})
	if err != nil {
		t.Fatalf("UpdateStatusFrom guard: %v", err)
	}
	if ok {
		t.Fatal("UpdateStatusFrom succeeded with stale from-status")
	}

	got, _ := refunds.GetByID(ctx, rf.ID)
	if got.Status != models.RefundStatusProcessing {
		t.Fatalf("status = %s, want PROCESSING", got.Status)
	}

	list, total, err := refunds.ListByStore(ctx, storeID, repository.RefundListFilter{})
	if err != nil {
		t.Fatalf("ListByStore: %v", err)
	}
	if total != 1 || len(list) != 1 {
		t.Fatalf("ListByStore: total=%d len=%d", total, len(list))
	}

	st := models.RefundStatusRejected
	list, total, err = refunds.ListByStore(ctx, storeID, repository.RefundListFilter{Status: &st})
	if err != nil {
		t.Fatalf("ListByStore filtered: %v", err)
	}
	if total != 0 || len(list) != 0 {
		t.Fatalf("ListByStore filtered: total=%d len=%d", total, len(list))
	}

	byUser, err := refunds.ListByUser(ctx, userID)
	if err != nil || len(byUser) != 1 {
		t.Fatalf("ListByUser: len=%d err=%v", len(byUser), err)
	}

	now := time.Now().UTC()
	summary, err := refunds.SummarizeByStatus(ctx, now.Add(-time.Hour), now.Add(time.Hour), &storeID)
	if err != nil {
		t.Fatalf("SummarizeByStatus: %v", err)
	}
	if len(summary) != 1 || summary[0].Status != models.RefundStatusProcessing ||
		summary[0].Count != 1 || summary[0].AmountCents != 2999 {
		t.Fatalf("SummarizeByStatus mismatch: %+v", summary)
	}
}

func TestPaymentRepo_GetByOrderID_Latest(t *testing.T) {
	db := setupDB(t)
	orders := repository.NewOrderRepo(db)
	payments := repository.NewPaymentRepo(db)
	ctx := context.Background()

	order := &models.Order{
		UserID:          uuid.New(),
		StoreID:         uuid.New(),
		Status:          models.OrderStatusConfirmed,
		TotalPriceCents: 10000,
		CurrencyCode:    "RUB",
	}
	if err := orders.Create(ctx, order); err != nil {
		t.Fatalf("Create order: %v", err)
	}

	first := &models.Payment{OrderID: order.ID, ProviderChargeID: "ch_old", AmountCents: 10000, CreatedAt: time.Now().Add(-time.Hour)}
	if err := payments.Create(ctx, first); err != nil {
		t.Fatalf("Create payment: %v", err)
	}
	second := &models.Payment{OrderID: order.ID, ProviderChargeID: "pi_new", AmountCents: 10000, Status: models.PaymentStatusCaptured}
	if err := payments.Create(ctx, second); err != nil {
		t.Fatalf("Create payment: %v", err)
	}

	got, err := payments.GetByOrderID(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetByOrderID: %v", err)
	}
	if got == nil || got.ProviderChargeID != "pi_new" {
		t.Fatalf("GetByOrderID returned %+v, want latest pi_new", got)
	}
}
