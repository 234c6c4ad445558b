package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	StoreID     uuid.UUID `gorm:"type:uuid;not null;index"`
	SKU         string    `gorm:"type:text;not null"`
	Name        string    `gorm:"type:text;not null"`
	Description string    `gorm:"type:text"`
	PriceCents  int64     `gorm:"not null;default:0"`
	// Счётчик остатка для товара без вариантов. При hasVariants остатки живут в variants.
	Stock       int32 `gorm:"not null;default:0"`
	HasVariants bool  `gorm:"not null;default:false"`
	IsActive    bool  `gorm:"not null;default:true"`
	IsVerified  bool  `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Product) TableName() string { return "products" }

type ProductVariant struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_variants_product_sku"`
	SKU        string    `gorm:"type:text;not null;uniqueIndex:ux_variants_product_sku"`
	PriceCents int64     `gorm:"not null;default:0"`
	Stock      int32     `gorm:"not null;default:0"`
	Reserved   int32     `gorm:"not null;default:0"`
	IsActive   bool      `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (ProductVariant) TableName() string { return "product_variants" }

// Available — единственное место, где вычисляется доступный остаток.
// Не дублировать вычитание по месту вызова.
func (v *ProductVariant) Available() int32 { return v.Stock - v.Reserved }

type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "RESERVED"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

type StockReservation struct {
	ID uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	// Клиентский идентификатор резервации (uuid v4, генерируется в сервисе).
	ReservationID string            `gorm:"type:text;not null;uniqueIndex:ux_reservations_reservation_id"`
	SessionID     string            `gorm:"type:text;not null;index"`
	UserID        *uuid.UUID        `gorm:"type:uuid;index"`
	ProductID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	VariantID     *uuid.UUID        `gorm:"type:uuid;index"`
	Quantity      int32             `gorm:"not null"`
	Status        ReservationStatus `gorm:"type:text;not null;default:'RESERVED';index:ix_reservations_status_expires"`
	ExpiresAt     time.Time         `gorm:"not null;index:ix_reservations_status_expires"`
	ConfirmedAt   *time.Time
	CancelledAt   *time.Time
	// Снимок цены/остатков на момент резервации (аудит и разбор споров).
	Metadata datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
}

func (StockReservation) TableName() string { return "stock_reservations" }

type RefundStatus string

const (
	RefundStatusPending    RefundStatus = "REFUND_STATUS_PENDING"
	RefundStatusProcessing RefundStatus = "REFUND_STATUS_PROCESSING"
	RefundStatusCompleted  RefundStatus = "REFUND_STATUS_COMPLETED"
	RefundStatusRejected   RefundStatus = "REFUND_STATUS_REJECTED"
)

type RefundReason string

const (
	RefundReasonDamaged        RefundReason = "DAMAGED"
	RefundReasonWrongItem      RefundReason = "WRONG_ITEM"
	RefundReasonNotAsDescribed RefundReason = "NOT_AS_DESCRIBED"
	RefundReasonLateDelivery   RefundReason = "LATE_DELIVERY"
	RefundReasonChangedMind    RefundReason = "CHANGED_MIND"
	RefundReasonOther          RefundReason = "OTHER"
)

type Refund struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID    `gorm:"type:uuid;not null;index"`
	UserID      uuid.UUID    `gorm:"type:uuid;not null;index"`
	StoreID     uuid.UUID    `gorm:"type:uuid;not null;index"`
	PaymentID   uuid.UUID    `gorm:"type:uuid;not null"`
	AmountCents int64        `gorm:"not null"`
	Reason      RefundReason `gorm:"type:text;not null"`
	Status      RefundStatus `gorm:"type:text;not null;default:'REFUND_STATUS_PENDING';index"`
	Description string       `gorm:"type:text"`
	Comment     string       `gorm:"type:text"`
	ProcessedBy *uuid.UUID   `gorm:"type:uuid"`
	// Идентификатор возврата на стороне платёжного шлюза (re_... у Stripe).
	GatewayRefundID *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

func (Refund) TableName() string { return "refunds" }

// Заказы и платежи принадлежат order/payment сервисам.
// Здесь читаем их только для проверки владения и привязки возврата.

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "ORDER_STATUS_PENDING"
	OrderStatusConfirmed OrderStatus = "ORDER_STATUS_CONFIRMED"
	OrderStatusDelivered OrderStatus = "ORDER_STATUS_DELIVERED"
	OrderStatusCancelled OrderStatus = "ORDER_STATUS_CANCELLED"
)

type Order struct {
	ID              uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID   `gorm:"type:uuid;not null;index"`
	StoreID         uuid.UUID   `gorm:"type:uuid;not null;index"`
	Status          OrderStatus `gorm:"type:text;not null;default:'ORDER_STATUS_PENDING';index"`
	TotalPriceCents int64       `gorm:"not null;default:0"`
	CurrencyCode    string      `gorm:"type:char(3);not null;default:'RUB'"`

	CreatedAt time.Time `gorm:"not null;default:now();index"`
}

func (Order) TableName() string { return "orders" }

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PAYMENT_STATUS_PENDING"
	PaymentStatusCaptured PaymentStatus = "PAYMENT_STATUS_CAPTURED"
	PaymentStatusRefunded PaymentStatus = "PAYMENT_STATUS_REFUNDED"
)

type Payment struct {
	ID      uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID uuid.UUID `gorm:"type:uuid;not null;index"`
	// Идентификатор charge/payment intent на стороне шлюза.
	ProviderChargeID string        `gorm:"type:text;not null"`
	AmountCents      int64         `gorm:"not null"`
	Status           PaymentStatus `gorm:"type:text;not null;default:'PAYMENT_STATUS_PENDING';index"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
}

func (Payment) TableName() string { return "payments" }
