package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"domiflash/internal/middleware"
	"domiflash/internal/models"
	"domiflash/internal/services/delivery"
)

type CheckoutRequest struct {
	PaymentMethod   string `json:"payment_method" binding:"required,payment_method"`
	DeliveryAddress string `json:"delivery_address" binding:"omitempty,address"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,order_status"`
}

// OrderConfirmation is what checkout returns and what the session keeps
// for the confirmation page.
type OrderConfirmation struct {
	Order    models.Order               `json:"order"`
	Estimate *delivery.DeliveryEstimate `json:"delivery_estimate"`
}

// OrderView is an order with its delivery progress projected at read time.
type OrderView struct {
	models.Order
	Progress *delivery.DeliveryProgress `json:"delivery_progress"`
}

func OrderViews(orders []models.Order, now time.Time) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, OrderView{
			Order:    o,
			Progress: delivery.ProjectProgress(string(o.Status), o.CreatedAt, o.EstimatedMinutes, o.EstimatedArrivalTime, now),
		})
	}
	return views
}

// Checkout turns the caller's cart into an order, then estimates its delivery.
// The estimate is best effort: a failed estimate leaves the order without one.
func Checkout(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		userID := middleware.CurrentUserID(c)

		tx := d.DB.WithContext(ctx).Begin()
		if tx.Error != nil {
			internalError(c, d.Log, tx.Error, "begin checkout")
			return
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			tx.Rollback()
			internalError(c, d.Log, err, "load user")
			return
		}

		cart, err := loadCart(tx, userID)
		if err != nil {
			tx.Rollback()
			internalError(c, d.Log, err, "load cart")
			return
		}

		// Re-read the products under lock so stock cannot change until commit.
		ids := make([]uint, 0, len(cart))
		for _, item := range cart {
			ids = append(ids, item.ProductID)
		}
		if len(ids) > 0 {
			var locked []models.Product
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id IN ?", ids).Find(&locked).Error; err != nil {
				tx.Rollback()
				internalError(c, d.Log, err, "lock products")
				return
			}
			byID := make(map[uint]models.Product, len(locked))
			for _, p := range locked {
				byID[p.ID] = p
			}
			for i := range cart {
				cart[i].Product = byID[cart[i].ProductID]
			}
		}

		address := req.DeliveryAddress
		if address == "" {
			address = user.Address
		}
		order, err := BuildOrder(userID, cart, models.PaymentMethod(req.PaymentMethod), address)
		if err != nil {
			tx.Rollback()
			if !respondFlowError(c, err) {
				internalError(c, d.Log, err, "build order")
			}
			return
		}

		if err := tx.Create(order).Error; err != nil {
			tx.Rollback()
			internalError(c, d.Log, err, "create order")
			return
		}
		for _, item := range order.Items {
			if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
				Update("stock", gorm.Expr("stock - ?", item.Quantity)).Error; err != nil {
				tx.Rollback()
				internalError(c, d.Log, err, "update stock")
				return
			}
		}
		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			tx.Rollback()
			internalError(c, d.Log, err, "clear cart")
			return
		}

		var restaurant models.Restaurant
		if err := tx.Select("id", "owner_id").First(&restaurant, order.RestaurantID).Error; err != nil {
			tx.Rollback()
			internalError(c, d.Log, err, "load restaurant")
			return
		}

		if err := tx.Commit().Error; err != nil {
			internalError(c, d.Log, err, "commit checkout")
			return
		}

		estimate := d.Delivery.EstimateOrder(ctx, order.ID)
		if estimate != nil {
			order.EstimatedMinutes = &estimate.EstimatedMinutes
			arrival := estimate.EstimatedArrivalTime
			order.EstimatedArrivalTime = &arrival
		}

		confirmation := OrderConfirmation{Order: *order, Estimate: estimate}
		if sess := middleware.CurrentSession(c); sess != nil {
			if err := d.Sessions.RememberOrder(ctx, sess, confirmation); err != nil {
				d.Log.WithError(err).WithField("order_id", order.ID).Warn("could not keep order in session")
			}
		}
		d.Notifier.OrderCreated(ctx, order, restaurant.OwnerID)

		d.Log.WithFields(logrus.Fields{
			"order_id":      order.ID,
			"user_id":       userID,
			"restaurant_id": order.RestaurantID,
			"total":         order.Total,
			"estimated":     estimate != nil,
		}).Info("order placed")

		c.JSON(http.StatusCreated, gin.H{
			"message":           "¡Pedido realizado con éxito!",
			"order":             order,
			"delivery_estimate": estimate,
		})
	}
}

// OrderConfirmationPage returns the last checkout of the current session.
func OrderConfirmationPage(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var confirmation OrderConfirmation
		found, err := d.Sessions.LastOrder(c.Request.Context(), middleware.CurrentSession(c), &confirmation)
		if err != nil {
			internalError(c, d.Log, err, "load last order")
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "No hay un pedido reciente en esta sesión"})
			return
		}
		c.JSON(http.StatusOK, confirmation)
	}
}

func ListMyOrders(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var orders []models.Order
		if err := d.DB.Preload("Items").Where("user_id = ?", middleware.CurrentUserID(c)).
			Order("created_at DESC").Find(&orders).Error; err != nil {
			internalError(c, d.Log, err, "list orders")
			return
		}
		c.JSON(http.StatusOK, OrderViews(orders, time.Now()))
	}
}

func GetMyOrder(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}

		var order models.Order
		err := d.DB.Preload("Items").Where("id = ? AND user_id = ?", id, middleware.CurrentUserID(c)).First(&order).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Pedido no encontrado"})
				return
			}
			internalError(c, d.Log, err, "load order")
			return
		}

		progress, err := d.Delivery.Progress(c.Request.Context(), order.ID)
		if err != nil {
			d.Log.WithError(err).WithField("order_id", order.ID).Warn("delivery progress unavailable")
		}
		c.JSON(http.StatusOK, OrderView{Order: order, Progress: progress})
	}
}

// transitionOrder moves an order to status `to` inside a locking transaction.
// scope narrows the lookup (e.g. to the caller's restaurant); a miss is
// gorm.ErrRecordNotFound.
func transitionOrder(d *Deps, c *gin.Context, orderID uint, to models.OrderStatus, scope func(*gorm.DB) *gorm.DB) (*models.Order, error) {
	tx := d.DB.WithContext(c.Request.Context()).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	var order models.Order
	if err := scope(tx.Clauses(clause.Locking{Strength: "UPDATE"})).First(&order, orderID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := AuthorizeStatusChange(&order, to, middleware.CurrentRole(c), middleware.CurrentUserID(c)); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Model(&order).Update("status", to).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if to == models.OrderStatusCancelled {
		var items []models.OrderItem
		if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
		for _, item := range items {
			if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
				Update("stock", gorm.Expr("stock + ?", item.Quantity)).Error; err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	d.Log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   to,
		"by":       middleware.CurrentUserID(c),
	}).Info("order status changed")
	d.Notifier.OrderStatusChanged(c.Request.Context(), &order)
	return &order, nil
}

func respondTransition(c *gin.Context, d *Deps, order *models.Order, err error) {
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Estado del pedido actualizado", "order": order})
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Pedido no encontrado"})
		return
	}
	if !respondFlowError(c, err) {
		internalError(c, d.Log, err, "change order status")
	}
}

func CancelMyOrder(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		userID := middleware.CurrentUserID(c)
		order, err := transitionOrder(d, c, id, models.OrderStatusCancelled, func(db *gorm.DB) *gorm.DB {
			return db.Where("user_id = ?", userID)
		})
		respondTransition(c, d, order, err)
	}
}

func RestaurantListOrders(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		restaurant, ok := ownRestaurant(c, d)
		if !ok {
			return
		}

		query := d.DB.Preload("Items").Where("restaurant_id = ?", restaurant.ID)
		if status := c.Query("status"); status != "" {
			if !models.ValidOrderStatus(status) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Estado inválido"})
				return
			}
			query = query.Where("status = ?", status)
		}

		var orders []models.Order
		if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
			internalError(c, d.Log, err, "list restaurant orders")
			return
		}
		c.JSON(http.StatusOK, OrderViews(orders, time.Now()))
	}
}

func RestaurantUpdateOrderStatus(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var req UpdateOrderStatusRequest
		if !bindJSON(c, &req) {
			return
		}
		restaurant, ok := ownRestaurant(c, d)
		if !ok {
			return
		}

		order, err := transitionOrder(d, c, id, models.OrderStatus(req.Status), func(db *gorm.DB) *gorm.DB {
			return db.Where("restaurant_id = ?", restaurant.ID)
		})
		respondTransition(c, d, order, err)
	}
}
