package handlers

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"domiflash/internal/models"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrMixedRestaurants  = errors.New("cart holds products from more than one restaurant")
	ErrQuantityLimit     = errors.New("quantity above cart limit")
	ErrOutOfStock        = errors.New("not enough stock")
	ErrNotOrderOwner     = errors.New("order does not belong to caller")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrNotClaimable      = errors.New("order cannot be claimed")
)

// CheckCartAdd validates adding qty units of product to a cart that already
// holds cart. inCart is the quantity of the same product already present.
func CheckCartAdd(cart []models.CartItem, product *models.Product, inCart, qty int) error {
	for i := range cart {
		if cart[i].Product.RestaurantID != 0 && cart[i].Product.RestaurantID != product.RestaurantID {
			return ErrMixedRestaurants
		}
	}
	total := inCart + qty
	if total > models.MaxCartQuantity {
		return ErrQuantityLimit
	}
	if total > product.Stock {
		return ErrOutOfStock
	}
	return nil
}

// BuildOrder turns a cart into an unsaved order with snapshot line items.
// Cart items must have Product loaded.
func BuildOrder(userID uint, cart []models.CartItem, method models.PaymentMethod, address string) (*models.Order, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}
	summary := models.BuildCart(cart)
	if summary.RestaurantID == 0 {
		return nil, ErrMixedRestaurants
	}

	order := &models.Order{
		UserID:          userID,
		RestaurantID:    summary.RestaurantID,
		Status:          models.OrderStatusPending,
		PaymentMethod:   method,
		DeliveryAddress: strings.TrimSpace(address),
		Total:           math.Round(summary.Total*100) / 100,
		Items:           make([]models.OrderItem, 0, len(cart)),
	}
	for i := range cart {
		item := &cart[i]
		if item.Quantity > item.Product.Stock {
			return nil, ErrOutOfStock
		}
		order.Items = append(order.Items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			UnitPrice: item.Product.Price,
			Quantity:  item.Quantity,
		})
	}
	return order, nil
}

// AuthorizeStatusChange checks that userID, acting as role, may move order to
// the target status. Restaurant ownership is resolved by the caller's query;
// couriers must hold the order and customers must own it.
func AuthorizeStatusChange(order *models.Order, to models.OrderStatus, role models.Role, userID uint) error {
	switch role {
	case models.RoleCourier:
		if order.CourierID == nil || *order.CourierID != userID {
			return ErrNotOrderOwner
		}
	case models.RoleCustomer:
		if order.UserID != userID {
			return ErrNotOrderOwner
		}
	}
	if !models.CanTransition(order.Status, to, role) {
		return ErrInvalidTransition
	}
	return nil
}

// respondFlowError maps order flow errors to responses. It reports false for
// errors it does not know.
func respondFlowError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tu carrito está vacío"})
	case errors.Is(err, ErrMixedRestaurants):
		c.JSON(http.StatusConflict, gin.H{"error": "Tu carrito solo puede tener productos de un restaurante"})
	case errors.Is(err, ErrQuantityLimit):
		c.JSON(http.StatusBadRequest, gin.H{"error": "La cantidad máxima por producto es 100"})
	case errors.Is(err, ErrOutOfStock):
		c.JSON(http.StatusConflict, gin.H{"error": "No hay suficiente stock disponible"})
	case errors.Is(err, ErrNotOrderOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "No tienes acceso a este pedido"})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "No se puede cambiar el pedido a ese estado"})
	case errors.Is(err, ErrNotClaimable):
		c.JSON(http.StatusConflict, gin.H{"error": "El pedido ya no está disponible"})
	default:
		return false
	}
	return true
}
