package gateway

import (
	"context"
	"strings"

	"fulfillment-service/internal/service"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"
)

// StripeGateway проводит возвраты через Stripe Refunds API.
type StripeGateway struct {
	api *client.API
	log *zap.Logger
}

func NewStripeGateway(secretKey string, log *zap.Logger) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, log: log}
}

func (g *StripeGateway) Refund(ctx context.Context, p service.RefundParams) (service.GatewayRefund, error) {
	params := &stripe.RefundParams{
		Amount: stripe.Int64(p.AmountCents),
	}
	params.Context = ctx
	// Повторный вызов по тому же возврату Stripe дедуплицирует сам —
	// двойного списания при гонке завершений не будет.
	params.SetIdempotencyKey(p.RefundID.String())

	// Платёж может быть привязан и к charge, и к payment intent.
	if strings.HasPrefix(p.PaymentRef, "pi_") {
		params.PaymentIntent = stripe.String(p.PaymentRef)
	} else {
		params.Charge = stripe.String(p.PaymentRef)
	}

	r, err := g.api.Refunds.New(params)
	if err != nil {
		return service.GatewayRefund{}, err
	}

	g.log.Info("возврат проведён через Stripe",
		zap.String("gateway_refund_id", r.ID),
		zap.String("status", string(r.Status)))
	return service.GatewayRefund{ID: r.ID, Status: string(r.Status)}, nil
}
