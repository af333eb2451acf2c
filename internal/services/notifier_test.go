package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"domiflash/internal/events"
	"domiflash/internal/models"
)

type sentStatus struct {
	userID, orderID uint
	status          string
}

type fakeSender struct {
	statuses  []sentStatus
	newOrders []uint
}

func (f *fakeSender) SendOrderStatus(userID, orderID uint, status string) {
	f.statuses = append(f.statuses, sentStatus{userID, orderID, status})
}

func (f *fakeSender) SendNewOrder(userID, orderID uint, total float64) {
	f.newOrders = append(f.newOrders, userID)
}

type fakePublisher struct {
	events []events.OrderEvent
	err    error
}

func (f *fakePublisher) PublishOrder(ctx context.Context, e events.OrderEvent) error {
	f.events = append(f.events, e)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestOrderCreatedNotifiesRestaurant(t *testing.T) {
	ws := &fakeSender{}
	pub := &fakePublisher{}
	n := NewOrderNotifier(ws, pub, quietLogger())

	n.OrderCreated(context.Background(), &models.Order{ID: 4, UserID: 1, RestaurantID: 2, Status: models.OrderStatusPending, Total: 30000}, 9)

	if len(ws.newOrders) != 1 || ws.newOrders[0] != 9 {
		t.Fatalf("new order pushes = %v, want [9]", ws.newOrders)
	}
	if len(pub.events) != 1 || pub.events[0].Type != events.OrderCreated || pub.events[0].OrderID != 4 {
		t.Fatalf("events = %+v", pub.events)
	}
}

func TestOrderStatusChangedNotifiesCustomerAndCourier(t *testing.T) {
	ws := &fakeSender{}
	pub := &fakePublisher{err: errors.New("broker down")}
	n := NewOrderNotifier(ws, pub, quietLogger())
	courier := uint(12)

	n.OrderStatusChanged(context.Background(), &models.Order{ID: 4, UserID: 1, CourierID: &courier, Status: models.OrderStatusOnTheWay})

	if len(ws.statuses) != 2 {
		t.Fatalf("pushes = %+v, want customer and courier", ws.statuses)
	}
	if ws.statuses[0].userID != 1 || ws.statuses[1].userID != 12 {
		t.Fatalf("pushes = %+v", ws.statuses)
	}
	if ws.statuses[0].status != "en_camino" {
		t.Fatalf("status = %q, want en_camino", ws.statuses[0].status)
	}
	if len(pub.events) != 1 {
		t.Fatalf("publish attempts = %d, want 1", len(pub.events))
	}
}
