package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func TestPublishOrder(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	mock := mocks.NewSyncProducer(t, config)

	mock.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "domiflash.order.status" {
			return errors.New("wrong topic " + msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "42" {
			return errors.New("wrong key " + string(key))
		}
		raw, _ := msg.Value.Encode()
		var ev OrderEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		if ev.Status != "aceptado" || ev.Type != OrderStatusChanged || ev.EventTime.IsZero() {
			return errors.New("unexpected event " + string(raw))
		}
		return nil
	})

	p := NewKafkaProducerWith(mock, "domiflash.order.status", testLogger())
	err := p.PublishOrder(context.Background(), OrderEvent{
		Type:    OrderStatusChanged,
		OrderID: 42,
		UserID:  3,
		Status:  "aceptado",
	})
	if err != nil {
		t.Fatalf("PublishOrder: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPublishOrderFailure(t *testing.T) {
	config := mocks.NewTestConfig()
	config.Producer.Return.Successes = true
	mock := mocks.NewSyncProducer(t, config)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewKafkaProducerWith(mock, "domiflash.order.status", testLogger())
	err := p.PublishOrder(context.Background(), OrderEvent{Type: OrderCreated, OrderID: 1})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("err = %v, want ErrOutOfBrokers", err)
	}
	_ = p.Close()
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	if err := p.PublishOrder(context.Background(), OrderEvent{OrderID: 1}); err != nil {
		t.Fatalf("PublishOrder: %v", err)
	}
}
