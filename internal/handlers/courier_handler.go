package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"domiflash/internal/middleware"
	"domiflash/internal/models"
)

// CourierAvailableOrders lists orders a courier may still claim.
func CourierAvailableOrders(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var orders []models.Order
		err := d.DB.Preload("Items").
			Where("courier_id IS NULL AND status IN ?", []models.OrderStatus{models.OrderStatusAccepted, models.OrderStatusPreparing}).
			Order("created_at ASC").Find(&orders).Error
		if err != nil {
			internalError(c, d.Log, err, "list available orders")
			return
		}
		c.JSON(http.StatusOK, OrderViews(orders, time.Now()))
	}
}

func CourierMyOrders(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var orders []models.Order
		if err := d.DB.Preload("Items").Where("courier_id = ?", middleware.CurrentUserID(c)).
			Order("created_at DESC").Find(&orders).Error; err != nil {
			internalError(c, d.Log, err, "list courier orders")
			return
		}
		c.JSON(http.StatusOK, OrderViews(orders, time.Now()))
	}
}

// CourierClaimOrder assigns an unclaimed order to the caller. The row lock
// makes concurrent claims resolve to a single courier.
func CourierClaimOrder(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		courierID := middleware.CurrentUserID(c)

		tx := d.DB.WithContext(c.Request.Context()).Begin()
		if tx.Error != nil {
			internalError(c, d.Log, tx.Error, "begin claim")
			return
		}

		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, id).Error; err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Pedido no encontrado"})
				return
			}
			internalError(c, d.Log, err, "load order")
			return
		}
		if !order.Claimable() {
			tx.Rollback()
			respondFlowError(c, ErrNotClaimable)
			return
		}

		if err := tx.Model(&order).Update("courier_id", courierID).Error; err != nil {
			tx.Rollback()
			internalError(c, d.Log, err, "claim order")
			return
		}
		if err := tx.Commit().Error; err != nil {
			internalError(c, d.Log, err, "commit claim")
			return
		}

		order.CourierID = &courierID
		d.Log.WithField("order_id", order.ID).WithField("courier_id", courierID).Info("order claimed")
		d.Notifier.OrderStatusChanged(c.Request.Context(), &order)
		c.JSON(http.StatusOK, gin.H{"message": "Pedido asignado", "order": order})
	}
}

func CourierUpdateOrderStatus(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var req UpdateOrderStatusRequest
		if !bindJSON(c, &req) {
			return
		}
		order, err := transitionOrder(d, c, id, models.OrderStatus(req.Status), func(db *gorm.DB) *gorm.DB {
			return db
		})
		respondTransition(c, d, order, err)
	}
}
