package producer

import (
	"context"
	"encoding/json"
	"time"

	"fulfillment-service/internal/service"

	"github.com/segmentio/kafka-go"
)

// FulfillmentProducer публикует события резерваций и возвратов в один топик,
// тип события — в заголовке сообщения.
type FulfillmentProducer struct {
	writer *kafka.Writer
}

func NewFulfillmentProducer(brokers []string, topic string) *FulfillmentProducer {
	return &FulfillmentProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		},
	}
}

func (p *FulfillmentProducer) publish(ctx context.Context, eventType, key string, payload any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
}

func (p *FulfillmentProducer) PublishStockReserved(ctx context.Context, e service.StockReservedEvent) error {
	return p.publish(ctx, "stock.reserved", e.ReservationID, e)
}

func (p *FulfillmentProducer) PublishReservationConfirmed(ctx context.Context, e service.ReservationConfirmedEvent) error {
	return p.publish(ctx, "stock.reservation_confirmed", e.ReservationID, e)
}

func (p *FulfillmentProducer) PublishReservationReleased(ctx context.Context, e service.ReservationReleasedEvent) error {
	return p.publish(ctx, "stock.reservation_released", e.ReservationID, e)
}

func (p *FulfillmentProducer) PublishRefundRequested(ctx context.Context, e service.RefundRequestedEvent) error {
	return p.publish(ctx, "refund.requested", e.RefundID.String(), e)
}

func (p *FulfillmentProducer) PublishRefundStatusChanged(ctx context.Context, e service.RefundStatusChangedEvent) error {
	return p.publish(ctx, "refund.status_changed", e.RefundID.String(), e)
}

func (p *FulfillmentProducer) Close() error {
	return p.writer.Close()
}
