package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"domiflash/internal/middleware"
	"domiflash/internal/models"
)

type AddCartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,quantity"`
}

func loadCart(db *gorm.DB, userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	err := db.Preload("Product").Where("user_id = ?", userID).Order("created_at ASC").Find(&items).Error
	return items, err
}

func GetCart(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := loadCart(d.DB, middleware.CurrentUserID(c))
		if err != nil {
			internalError(c, d.Log, err, "load cart")
			return
		}
		c.JSON(http.StatusOK, models.BuildCart(items))
	}
}

// AddCartItem adds to the quantity when the product is already in the cart.
func AddCartItem(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AddCartItemRequest
		if !bindJSON(c, &req) {
			return
		}
		userID := middleware.CurrentUserID(c)

		var product models.Product
		if err := d.DB.First(&product, req.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Producto no encontrado"})
				return
			}
			internalError(c, d.Log, err, "load product")
			return
		}

		items, err := loadCart(d.DB, userID)
		if err != nil {
			internalError(c, d.Log, err, "load cart")
			return
		}
		var existing *models.CartItem
		for i := range items {
			if items[i].ProductID == product.ID {
				existing = &items[i]
				break
			}
		}
		inCart := 0
		if existing != nil {
			inCart = existing.Quantity
		}
		if err := CheckCartAdd(items, &product, inCart, req.Quantity); err != nil {
			respondFlowError(c, err)
			return
		}

		if existing != nil {
			err = d.DB.Model(existing).Update("quantity", inCart+req.Quantity).Error
		} else {
			err = d.DB.Create(&models.CartItem{UserID: userID, ProductID: product.ID, Quantity: req.Quantity}).Error
		}
		if err != nil {
			internalError(c, d.Log, err, "save cart item")
			return
		}

		items, err = loadCart(d.DB, userID)
		if err != nil {
			internalError(c, d.Log, err, "load cart")
			return
		}
		c.JSON(http.StatusOK, models.BuildCart(items))
	}
}

func UpdateCartItem(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var req UpdateCartItemRequest
		if !bindJSON(c, &req) {
			return
		}
		userID := middleware.CurrentUserID(c)

		var item models.CartItem
		if err := d.DB.Preload("Product").Where("id = ? AND user_id = ?", id, userID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Producto no encontrado en el carrito"})
				return
			}
			internalError(c, d.Log, err, "load cart item")
			return
		}
		if req.Quantity > item.Product.Stock {
			respondFlowError(c, ErrOutOfStock)
			return
		}

		if err := d.DB.Model(&item).Update("quantity", req.Quantity).Error; err != nil {
			internalError(c, d.Log, err, "update cart item")
			return
		}

		items, err := loadCart(d.DB, userID)
		if err != nil {
			internalError(c, d.Log, err, "load cart")
			return
		}
		c.JSON(http.StatusOK, models.BuildCart(items))
	}
}

func RemoveCartItem(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		result := d.DB.Where("id = ? AND user_id = ?", id, middleware.CurrentUserID(c)).Delete(&models.CartItem{})
		if result.Error != nil {
			internalError(c, d.Log, result.Error, "remove cart item")
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Producto no encontrado en el carrito"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Producto eliminado del carrito"})
	}
}

func ClearCart(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.DB.Where("user_id = ?", middleware.CurrentUserID(c)).Delete(&models.CartItem{}).Error; err != nil {
			internalError(c, d.Log, err, "clear cart")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Carrito vaciado"})
	}
}
