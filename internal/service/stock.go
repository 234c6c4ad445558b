package service

import (
	"context"
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
)

// ValidationResult — авторитетные цена и доступный остаток на момент проверки.
type ValidationResult struct {
	PriceCents int64
	Available  int32
}

type ReserveInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int32
	SessionID string
	UserID    *uuid.UUID
	// TTL резервации; 0 — дефолт сервиса.
	TTL time.Duration
}

type StockService interface {
	// validator
	ValidateProduct(ctx context.Context, productID uuid.UUID, variantID *uuid.UUID, quantity int32) (ValidationResult, error)

	// reservations
	Reserve(ctx context.Context, in ReserveInput) (string, error)
	Confirm(ctx context.Context, reservationID string) (bool, error)
	Release(ctx context.Context, reservationID string) (bool, error)

	GetReservation(ctx context.Context, reservationID string) (*models.StockReservation, error)
	ListSessionReservations(ctx context.Context, sessionID string) ([]models.StockReservation, error)
}
