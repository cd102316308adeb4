package events

import (
	"context"
	"encoding/json"
	"time"

	"storefront-api/internal/config"
	"storefront-api/internal/models"
	"storefront-api/pkg/logging"

	"github.com/segmentio/kafka-go"
)

// EventType identifies an order event
type EventType string

const (
	EventTypeOrderCreated EventType = "order.created"
	EventTypeOrderPaid    EventType = "order.paid"
)

// OrderEvent is the message published to the orders topic for downstream
// consumers (fulfilment, analytics)
type OrderEvent struct {
	Type       EventType `json:"type"`
	OrderID    uint      `json:"order_id"`
	TxRef      string    `json:"tx_ref"`
	CustomerID uint      `json:"customer_id"`
	Status     string    `json:"status"`
	TotalPrice float64   `json:"total_price"`
	Timestamp  time.Time `json:"timestamp"`
}

var writer *kafka.Writer

// InitPublisher sets up the Kafka writer. Publishing is disabled when no
// brokers are configured.
func InitPublisher() {
	brokers := config.AppConfig.KafkaBrokers
	if len(brokers) == 0 {
		logging.Warnf("KAFKA_BROKERS not set, order events disabled")
		return
	}

	writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        config.AppConfig.KafkaOrdersTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	logging.Infof("Order event publisher connected to %v", brokers)
}

// ClosePublisher closes the Kafka writer
func ClosePublisher() {
	if writer != nil {
		if err := writer.Close(); err != nil {
			logging.Errorf("Failed to close Kafka writer: %v", err)
		}
	}
}

// PublishOrderCreated publishes an order created event, fire-and-forget
func PublishOrderCreated(order *models.Order, customerID uint) {
	publish(EventTypeOrderCreated, order, customerID)
}

// PublishOrderPaid publishes an order paid event, fire-and-forget
func PublishOrderPaid(order *models.Order, customerID uint) {
	publish(EventTypeOrderPaid, order, customerID)
}

func publish(eventType EventType, order *models.Order, customerID uint) {
	if writer == nil {
		return
	}

	event := OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		TxRef:      order.TxRef,
		CustomerID: customerID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
		Timestamp:  time.Now().UTC(),
	}

	// Never block a request on the broker
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		msg, err := json.Marshal(event)
		if err != nil {
			logging.Errorf("Failed to marshal order event: %v", err)
			return
		}

		if err := writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(order.TxRef),
			Value: msg,
		}); err != nil {
			logging.Errorf("Failed to publish %s for order %d: %v", eventType, order.ID, err)
			return
		}
		logging.Infof("Published %s for order %d", eventType, order.ID)
	}()
}
