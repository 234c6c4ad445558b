package service

import (
	"context"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/repository"

	"github.com/google/uuid"
)

type CreateRefundInput struct {
	OrderID     uuid.UUID
	AmountCents int64
	Reason      models.RefundReason
	Description string
	ProductID   *uuid.UUID
	Quantity    int32
}

type UpdateRefundStatusInput struct {
	RefundID  uuid.UUID
	NewStatus models.RefundStatus
	UpdatedBy uuid.UUID
	Comment   string
	// Дёргать шлюз при переводе в COMPLETED.
	ProcessAutomatically bool
}

type ProcessRefundInput struct {
	RefundID    uuid.UUID
	ProcessedBy uuid.UUID
	// Force обходит требование статуса PROCESSING (но не повторяет завершённый возврат).
	Force bool
}

type RefundAnalytics struct {
	From             time.Time
	To               time.Time
	TotalCount       int64
	TotalAmountCents int64
	ByStatus         []repository.StatusSummary
}

// GatewayRefund — подтверждение возврата со стороны платёжного шлюза.
type GatewayRefund struct {
	ID     string
	Status string
}

type RefundParams struct {
	// RefundID идёт в ключ идемпотентности: конкурирующие завершения одного
	// возврата шлюз схлопывает в один денежный перевод.
	RefundID    uuid.UUID
	PaymentRef  string // charge/payment intent на стороне шлюза
	AmountCents int64
}

type PaymentGateway interface {
	Refund(ctx context.Context, p RefundParams) (GatewayRefund, error)
}

type RefundService interface {
	CreateRefundRequest(ctx context.Context, in CreateRefundInput) (*models.Refund, error)
	UpdateRefundStatus(ctx context.Context, in UpdateRefundStatusInput) (*models.Refund, error)
	ProcessRefundWithStripe(ctx context.Context, in ProcessRefundInput) (GatewayRefund, error)

	GetStoreRefunds(ctx context.Context, storeID uuid.UUID, f repository.RefundListFilter) ([]models.Refund, int64, error)
	GetUserRefunds(ctx context.Context) ([]models.Refund, error)
	GetRefundAnalytics(ctx context.Context, from, to time.Time, storeID *uuid.UUID) (*RefundAnalytics, error)
}
