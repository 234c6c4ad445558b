package service

import (
	"context"
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
)

type StockReservedEvent struct {
	ReservationID string     `json:"reservation_id"`
	ProductID     uuid.UUID  `json:"product_id"`
	VariantID     *uuid.UUID `json:"variant_id,omitempty"`
	Quantity      int32      `json:"quantity"`
	SessionID     string     `json:"session_id"`
	UserID        *uuid.UUID `json:"user_id,omitempty"`
	ExpiresAt     time.Time  `json:"expires_at"`
	ReservedAt    time.Time  `json:"reserved_at"`
}

type ReservationConfirmedEvent struct {
	ReservationID string    `json:"reservation_id"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

type ReservationReleasedEvent struct {
	ReservationID string    `json:"reservation_id"`
	Reason        string    `json:"reason"` // cancelled | expired
	ReleasedAt    time.Time `json:"released_at"`
}

type RefundRequestedEvent struct {
	RefundID    uuid.UUID           `json:"refund_id"`
	OrderID     uuid.UUID           `json:"order_id"`
	UserID      uuid.UUID           `json:"user_id"`
	AmountCents int64               `json:"amount_cents"`
	Reason      models.RefundReason `json:"reason"`
	CreatedAt   time.Time           `json:"created_at"`
}

type RefundStatusChangedEvent struct {
	RefundID  uuid.UUID           `json:"refund_id"`
	OldStatus models.RefundStatus `json:"old_status"`
	NewStatus models.RefundStatus `json:"new_status"`
	UpdatedBy *uuid.UUID          `json:"updated_by,omitempty"`
	ChangedAt time.Time           `json:"changed_at"`
}

type EventBus interface {
	PublishStockReserved(ctx context.Context, e StockReservedEvent) error
	PublishReservationConfirmed(ctx context.Context, e ReservationConfirmedEvent) error
	PublishReservationReleased(ctx context.Context, e ReservationReleasedEvent) error
	PublishRefundRequested(ctx context.Context, e RefundRequestedEvent) error
	PublishRefundStatusChanged(ctx context.Context, e RefundStatusChangedEvent) error
}
