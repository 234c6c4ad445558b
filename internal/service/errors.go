package service

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	ErrProductNotFound     = errors.New("product not found")
	ErrVariantNotFound     = errors.New("variant not found")
	ErrVariantRequired     = errors.New("variant id required for product with variants")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrInactiveProduct     = errors.New("product is inactive")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrSessionRequired     = errors.New("session id required")

	ErrOutOfStock         = errors.New("out of stock")
	ErrReservationExpired = errors.New("reservation expired")

	ErrOrderNotFound      = errors.New("order not found")
	ErrPaymentNotFound    = errors.New("payment not found for order")
	ErrRefundNotFound     = errors.New("refund not found")
	ErrAmountInvalid      = errors.New("refund amount invalid")
	ErrReasonInvalid      = errors.New("refund reason invalid")
	ErrIllegalTransition  = errors.New("illegal refund status transition")
	ErrRefundNotInProcess = errors.New("refund is not in processing status")
	ErrAlreadyRefunded    = errors.New("refund already completed")

	ErrGateway = errors.New("payment gateway refund failed")
)
