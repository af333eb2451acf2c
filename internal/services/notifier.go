package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"domiflash/internal/events"
	"domiflash/internal/models"
)

// UserSender pushes realtime messages to a user's open sockets.
type UserSender interface {
	SendOrderStatus(userID, orderID uint, status string)
	SendNewOrder(userID, orderID uint, total float64)
}

// OrderNotifier fans order changes out to websockets and the event stream.
// Failures are logged, never returned: notifications must not undo an order change.
type OrderNotifier struct {
	ws     UserSender
	events events.Publisher
	log    logrus.FieldLogger
}

func NewOrderNotifier(ws UserSender, publisher events.Publisher, log logrus.FieldLogger) *OrderNotifier {
	return &OrderNotifier{ws: ws, events: publisher, log: log}
}

// OrderCreated tells the restaurant owner about a new order.
func (n *OrderNotifier) OrderCreated(ctx context.Context, order *models.Order, restaurantOwnerID uint) {
	if restaurantOwnerID > 0 {
		n.ws.SendNewOrder(restaurantOwnerID, order.ID, order.Total)
	}
	n.publish(ctx, events.OrderCreated, order)
}

// OrderStatusChanged tells the customer and, once assigned, the courier.
func (n *OrderNotifier) OrderStatusChanged(ctx context.Context, order *models.Order) {
	n.ws.SendOrderStatus(order.UserID, order.ID, string(order.Status))
	if order.CourierID != nil {
		n.ws.SendOrderStatus(*order.CourierID, order.ID, string(order.Status))
	}
	n.publish(ctx, events.OrderStatusChanged, order)
}

func (n *OrderNotifier) publish(ctx context.Context, eventType string, order *models.Order) {
	err := n.events.PublishOrder(ctx, events.OrderEvent{
		Type:         eventType,
		OrderID:      order.ID,
		UserID:       order.UserID,
		RestaurantID: order.RestaurantID,
		CourierID:    order.CourierID,
		Status:       string(order.Status),
		Total:        order.Total,
	})
	if err != nil {
		n.log.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
			"type":     eventType,
		}).Warn("order event not published")
	}
}
