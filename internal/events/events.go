// Package events publishes order lifecycle events to Kafka for downstream
// consumers such as notifications and analytics.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// OrderEvent is one change to an order.
type OrderEvent struct {
	Type         string     `json:"type"`
	OrderID      uuid.UUID  `json:"order_id"`
	RestaurantID uuid.UUID  `json:"restaurant_id"`
	Status       string     `json:"status"`
	DriverID     *uuid.UUID `json:"driver_id,omitempty"`
	ActorID      uuid.UUID  `json:"actor_id"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

// Publisher delivers order events.
type Publisher interface {
	PublishOrderEvent(ctx context.Context, e OrderEvent) error
}

type KafkaPublisher struct {
	Writer *kafka.Writer
}

func NewKafkaPublisher(writer *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Writer: writer}
}

// NewWriter builds a writer that keeps all events of an order on one partition.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
}

func (p *KafkaPublisher) PublishOrderEvent(ctx context.Context, e OrderEvent) error {
	msg, err := orderMessage(e)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.Writer.Close()
}

func orderMessage(e OrderEvent) (kafka.Message, error) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.OrderID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}

// NoopPublisher drops events. Used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

// Publish sends e and logs a failure instead of returning it. Order writes
// have already committed by the time events go out.
func Publish(ctx context.Context, p Publisher, e OrderEvent) {
	if p == nil {
		return
	}
	if err := p.PublishOrderEvent(ctx, e); err != nil {
		log.Printf("WARN: publish %s for order %s: %v", e.Type, e.OrderID, err)
	}
}
