package repository

import "gorm.io/gorm"

type Repository struct {
	DB           *gorm.DB
	Products     ProductRepo
	Variants     VariantRepo
	Reservations ReservationRepo
	Refunds      RefundRepo
	Orders       OrderRepo
	Payments     PaymentRepo
}

func buildRepository(db *gorm.DB) *Repository {
	return &Repository{
		DB:           db,
		Products:     NewProductRepo(db),
		Variants:     NewVariantRepo(db),
		Reservations: NewReservationRepo(db),
		Refunds:      NewRefundRepo(db),
		Orders:       NewOrderRepo(db),
		Payments:     NewPaymentRepo(db),
	}
}

func New(db *gorm.DB) *Repository { return buildRepository(db) }

// Глобальная транзакция на весь набор репо
func (r *Repository) WithTx(fn func(tx *Repository) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		return fn(buildRepository(tx))
	})
}
