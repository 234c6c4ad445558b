package http

import (
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
)

// BaseError универсальный корневой формат ошибки
// Code — машинно-ориентированный код (snake_case)
// Message — краткое человеко-читаемое описание
type BaseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewValidationError(msg string) BaseError {
	return BaseError{Code: "validation_error", Message: msg}
}

func NewNotFoundError(msg string) BaseError {
	return BaseError{Code: "not_found", Message: msg}
}

func NewUnauthorizedError(msg string) BaseError {
	return BaseError{Code: "unauthorized", Message: msg}
}

func NewForbiddenError(msg string) BaseError {
	return BaseError{Code: "forbidden", Message: msg}
}

func NewConflictError(msg string) BaseError {
	return BaseError{Code: "conflict", Message: msg}
}

func NewGatewayError(msg string) BaseError {
	return BaseError{Code: "gateway_error", Message: msg}
}

func NewInternalError(msg string) BaseError {
	return BaseError{Code: "internal_error", Message: msg}
}

type ValidateStockRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	VariantID string `json:"variant_id" binding:"omitempty,uuid"`
	Quantity  int32  `json:"quantity" binding:"required,gt=0"`
}

type ValidateStockResponse struct {
	Valid      bool  `json:"valid"`
	PriceCents int64 `json:"price_cents"`
	Available  int32 `json:"available"`
}

type ReserveStockRequest struct {
	ProductID      string `json:"product_id" binding:"required,uuid"`
	VariantID      string `json:"variant_id" binding:"omitempty,uuid"`
	Quantity       int32  `json:"quantity" binding:"required,gt=0"`
	TimeoutMinutes int    `json:"timeout_minutes" binding:"omitempty,gt=0"`
}

type ReserveStockResponse struct {
	ReservationID string    `json:"reservation_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type ReservationActionResponse struct {
	Found bool `json:"found"`
}

type CleanupResponse struct {
	Released int `json:"released"`
}

type ReservationResponse struct {
	ReservationID string     `json:"reservation_id"`
	ProductID     uuid.UUID  `json:"product_id"`
	VariantID     *uuid.UUID `json:"variant_id,omitempty"`
	Quantity      int32      `json:"quantity"`
	Status        string     `json:"status"`
	ExpiresAt     time.Time  `json:"expires_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toReservationResponse(r *models.StockReservation) ReservationResponse {
	return ReservationResponse{
		ReservationID: r.ReservationID,
		ProductID:     r.ProductID,
		VariantID:     r.VariantID,
		Quantity:      r.Quantity,
		Status:        string(r.Status),
		ExpiresAt:     r.ExpiresAt,
		CreatedAt:     r.CreatedAt,
	}
}

type CreateRefundRequest struct {
	OrderID     string `json:"order_id" binding:"required,uuid"`
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
	ProductID   string `json:"product_id" binding:"omitempty,uuid"`
	Quantity    int32  `json:"quantity" binding:"omitempty,gt=0"`
}

type UpdateRefundStatusRequest struct {
	NewStatus            string `json:"new_status" binding:"required"`
	Comment              string `json:"comment"`
	ProcessAutomatically bool   `json:"process_automatically"`
}

type ProcessRefundRequest struct {
	Force bool `json:"force"`
}

type ProcessRefundResponse struct {
	GatewayRefundID string `json:"gateway_refund_id"`
	GatewayStatus   string `json:"gateway_status"`
}

type RefundResponse struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	StoreID         uuid.UUID `json:"store_id"`
	AmountCents     int64     `json:"amount_cents"`
	Reason          string    `json:"reason"`
	Status          string    `json:"status"`
	Description     string    `json:"description,omitempty"`
	Comment         string    `json:"comment,omitempty"`
	GatewayRefundID *string   `json:"gateway_refund_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toRefundResponse(rf *models.Refund) RefundResponse {
	return RefundResponse{
		ID:              rf.ID,
		OrderID:         rf.OrderID,
		StoreID:         rf.StoreID,
		AmountCents:     rf.AmountCents,
		Reason:          string(rf.Reason),
		Status:          string(rf.Status),
		Description:     rf.Description,
		Comment:         rf.Comment,
		GatewayRefundID: rf.GatewayRefundID,
		CreatedAt:       rf.CreatedAt,
		UpdatedAt:       rf.UpdatedAt,
	}
}

type RefundListResponse struct {
	Refunds []RefundResponse `json:"refunds"`
	Total   int64            `json:"total"`
}

type RefundAnalyticsResponse struct {
	From             time.Time               `json:"from"`
	To               time.Time               `json:"to"`
	TotalCount       int64                   `json:"total_count"`
	TotalAmountCents int64                   `json:"total_amount_cents"`
	ByStatus         []StatusSummaryResponse `json:"by_status"`
}

type StatusSummaryResponse struct {
	Status      string `json:"status"`
	Count       int64  `json:"count"`
	AmountCents int64  `json:"amount_cents"`
}
