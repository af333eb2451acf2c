package models

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pendiente"  // Waiting for the restaurant
	OrderStatusAccepted  OrderStatus = "aceptado"   // Accepted by the restaurant
	OrderStatusPreparing OrderStatus = "preparando" // In the kitchen
	OrderStatusOnTheWay  OrderStatus = "en_camino"  // Picked up by a courier
	OrderStatusDelivered OrderStatus = "entregado"  // Delivered to the customer
	OrderStatusCancelled OrderStatus = "cancelado"  // Cancelled before pickup
)

type PaymentMethod string

const (
	PaymentCash      PaymentMethod = "efectivo"
	PaymentCard      PaymentMethod = "tarjeta"
	PaymentNequi     PaymentMethod = "nequi"
	PaymentDaviplata PaymentMethod = "daviplata"
	PaymentOther     PaymentMethod = "otro"
)

type Order struct {
	ID                   uint          `json:"id" gorm:"primaryKey"`
	UserID               uint          `json:"user_id" gorm:"index;not null"`
	RestaurantID         uint          `json:"restaurant_id" gorm:"index;not null"`
	CourierID            *uint         `json:"courier_id,omitempty" gorm:"index;default:null"`
	Status               OrderStatus   `json:"status" gorm:"type:varchar(20);default:'pendiente'"`
	PaymentMethod        PaymentMethod `json:"payment_method" gorm:"type:varchar(20);default:'efectivo'"`
	DeliveryAddress      string        `json:"delivery_address" gorm:"type:varchar(200)"`
	Total                float64       `json:"total" gorm:"not null"`
	EstimatedMinutes     *int          `json:"estimated_minutes,omitempty" gorm:"default:null"`
	EstimatedArrivalTime *time.Time    `json:"estimated_arrival_time,omitempty" gorm:"type:timestamp with time zone;default:null"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	Items                []OrderItem   `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	User                 User          `json:"-" gorm:"foreignKey:UserID"`
	Restaurant           Restaurant    `json:"-" gorm:"foreignKey:RestaurantID"`
}

// OrderItem is one product line of an order. Name and price are snapshots
// taken at checkout so later menu edits do not rewrite history.
type OrderItem struct {
	ID        uint    `json:"id" gorm:"primaryKey"`
	OrderID   uint    `json:"order_id" gorm:"index;not null"`
	ProductID uint    `json:"product_id" gorm:"not null"`
	Name      string  `json:"name" gorm:"type:varchar(100)"`
	UnitPrice float64 `json:"unit_price" gorm:"not null"`
	Quantity  int     `json:"quantity" gorm:"not null"`
}

// transition describes who may move an order from one status to another.
type transition struct {
	from  OrderStatus
	to    OrderStatus
	roles []Role
}

var transitions = []transition{
	{OrderStatusPending, OrderStatusAccepted, []Role{RoleRestaurant}},
	{OrderStatusPending, OrderStatusCancelled, []Role{RoleRestaurant, RoleCustomer}},
	{OrderStatusAccepted, OrderStatusPreparing, []Role{RoleRestaurant}},
	{OrderStatusAccepted, OrderStatusCancelled, []Role{RoleRestaurant}},
	{OrderStatusPreparing, OrderStatusOnTheWay, []Role{RoleCourier}},
	{OrderStatusOnTheWay, OrderStatusDelivered, []Role{RoleCourier}},
}

// CanTransition reports whether role may move an order from -> to.
func CanTransition(from, to OrderStatus, role Role) bool {
	for _, t := range transitions {
		if t.from != from || t.to != to {
			continue
		}
		for _, r := range t.roles {
			if r == role {
				return true
			}
		}
		return false
	}
	return false
}

func ValidOrderStatus(s string) bool {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusAccepted, OrderStatusPreparing,
		OrderStatusOnTheWay, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

func (o *Order) IsFinal() bool {
	return o.Status == OrderStatusDelivered || o.Status == OrderStatusCancelled
}

// Claimable reports whether a courier may take the order.
func (o *Order) Claimable() bool {
	if o.CourierID != nil {
		return false
	}
	return o.Status == OrderStatusAccepted || o.Status == OrderStatusPreparing
}

// HasEstimate is true once the delivery estimate has been stored.
func (o *Order) HasEstimate() bool {
	return o.EstimatedMinutes != nil && o.EstimatedArrivalTime != nil
}
