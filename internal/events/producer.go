package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

const (
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
)

type OrderEvent struct {
	Type         string    `json:"type"`
	OrderID      uint      `json:"order_id"`
	UserID       uint      `json:"user_id"`
	RestaurantID uint      `json:"restaurant_id"`
	CourierID    *uint     `json:"courier_id,omitempty"`
	Status       string    `json:"status"`
	Total        float64   `json:"total,omitempty"`
	EventTime    time.Time `json:"event_time"`
}

// Publisher emits order events. Publishing is best effort for callers.
type Publisher interface {
	PublishOrder(ctx context.Context, event OrderEvent) error
	Close() error
}

type KafkaProducer struct {
	producer sarama.SyncProducer
	topic    string
	logger   logrus.FieldLogger
}

func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0
	return config
}

// NewKafkaProducer connects to a comma separated broker list.
func NewKafkaProducer(brokers, topic string, logger logrus.FieldLogger) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("events: connect kafka: %w", err)
	}
	return NewKafkaProducerWith(producer, topic, logger), nil
}

func NewKafkaProducerWith(producer sarama.SyncProducer, topic string, logger logrus.FieldLogger) *KafkaProducer {
	return &KafkaProducer{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaProducer) PublishOrder(ctx context.Context, event OrderEvent) error {
	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}

	// Keyed by order so all events of an order land on one partition.
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(uint64(event.OrderID), 10)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithField("order_id", event.OrderID).Error("failed to publish order event")
		return fmt.Errorf("events: publish: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     p.topic,
		"partition": partition,
		"offset":    offset,
		"order_id":  event.OrderID,
		"type":      event.Type,
	}).Debug("order event published")

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}

// NoopPublisher is used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrder(ctx context.Context, event OrderEvent) error { return nil }
func (NoopPublisher) Close() error { return nil }
