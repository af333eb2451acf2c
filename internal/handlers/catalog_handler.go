package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"domiflash/internal/cache"
	"domiflash/internal/middleware"
	"domiflash/internal/models"
)

type ProductRequest struct {
	Name        string  `json:"name" binding:"required,max=100"`
	Description string  `json:"description" binding:"omitempty,safetext"`
	Price       float64 `json:"price" binding:"required,price"`
	CategoryID  *uint   `json:"category_id"`
	ImageURL    string  `json:"image_url" binding:"omitempty,max=500"`
	Stock       int     `json:"stock" binding:"gte=0"`
}

func (r *ProductRequest) apply(p *models.Product) {
	p.Name = strings.TrimSpace(r.Name)
	p.Description = strings.TrimSpace(r.Description)
	p.Price = r.Price
	p.CategoryID = r.CategoryID
	p.ImageURL = r.ImageURL
	p.Stock = r.Stock
}

func ListRestaurants(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var restaurants []models.Restaurant
		if err := d.DB.Order("name ASC").Find(&restaurants).Error; err != nil {
			internalError(c, d.Log, err, "list restaurants")
			return
		}
		c.JSON(http.StatusOK, restaurants)
	}
}

// RestaurantMenu lists a restaurant's products, optionally filtered by ?category_id.
func RestaurantMenu(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}

		var restaurant models.Restaurant
		if err := d.DB.First(&restaurant, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Restaurante no encontrado"})
				return
			}
			internalError(c, d.Log, err, "load restaurant")
			return
		}

		query := d.DB.Preload("Category").Where("restaurant_id = ?", id)
		if categoryID := c.Query("category_id"); categoryID != "" {
			query = query.Where("category_id = ?", categoryID)
		}
		var products []models.Product
		if err := query.Order("name ASC").Find(&products).Error; err != nil {
			internalError(c, d.Log, err, "list menu")
			return
		}

		c.JSON(http.StatusOK, gin.H{"restaurant": restaurant, "products": products})
	}
}

// ListCategories serves from the cache when enabled; any cache failure falls
// back to the database.
func ListCategories(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var categories []models.Category
		found, err := d.Cache.Get(ctx, cache.CategoriesKey, &categories)
		if err != nil {
			d.Log.WithError(err).Warn("categories cache read failed")
		}
		if found {
			c.JSON(http.StatusOK, categories)
			return
		}

		if err := d.DB.Order("name ASC").Find(&categories).Error; err != nil {
			internalError(c, d.Log, err, "list categories")
			return
		}
		if err := d.Cache.Set(ctx, cache.CategoriesKey, categories); err != nil {
			d.Log.WithError(err).Warn("categories cache write failed")
		}
		c.JSON(http.StatusOK, categories)
	}
}

// ownRestaurant loads the restaurant of the calling restaurante user.
func ownRestaurant(c *gin.Context, d *Deps) (*models.Restaurant, bool) {
	var restaurant models.Restaurant
	err := d.DB.Where("owner_id = ?", middleware.CurrentUserID(c)).First(&restaurant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No tienes un restaurante registrado"})
			return nil, false
		}
		internalError(c, d.Log, err, "load own restaurant")
		return nil, false
	}
	return &restaurant, true
}

// ownProduct loads product :id and checks that it belongs to restaurant.
func ownProduct(c *gin.Context, d *Deps, restaurant *models.Restaurant) (*models.Product, bool) {
	id, ok := paramID(c)
	if !ok {
		return nil, false
	}
	var product models.Product
	err := d.DB.Where("id = ? AND restaurant_id = ?", id, restaurant.ID).First(&product).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Producto no encontrado"})
			return nil, false
		}
		internalError(c, d.Log, err, "load product")
		return nil, false
	}
	return &product, true
}

func categoryExists(d *Deps, id *uint) (bool, error) {
	if id == nil {
		return true, nil
	}
	var count int64
	err := d.DB.Model(&models.Category{}).Where("id = ?", *id).Count(&count).Error
	return count > 0, err
}

func RestaurantListProducts(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		restaurant, ok := ownRestaurant(c, d)
		if !ok {
			return
		}
		var products []models.Product
		if err := d.DB.Preload("Category").Where("restaurant_id = ?", restaurant.ID).
			Order("created_at DESC").Find(&products).Error; err != nil {
			internalError(c, d.Log, err, "list products")
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func RestaurantCreateProduct(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductRequest
		if !bindJSON(c, &req) {
			return
		}
		restaurant, ok := ownRestaurant(c, d)
		if !ok {
			return
		}
		if exists, err := categoryExists(d, req.CategoryID); err != nil {
			internalError(c, d.Log, err, "check category")
			return
		} else if !exists {
			c.JSON(http.StatusBadRequest, gin.H{"error": "La categoría no existe"})
			return
		}

		product := models.Product{RestaurantID: restaurant.ID}
		req.apply(&product)
		if err := d.DB.Create(&product).Error; err != nil {
			internalError(c, d.Log, err, "create product")
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

func RestaurantUpdateProduct(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProductRequest
		if !bindJSON(c, &req) {
			return
		}
		restaurant, ok := ownRestaurant(c, d)
		if !ok {
			return
		}
		product, ok := ownProduct(c, d, restaurant)
		if !ok {
			return
		}
		if exists, err := categoryExists(d, req.CategoryID); err != nil {
			internalError(c, d.Log, err, "check category")
			return
		} else if !exists {
			c.JSON(http.StatusBadRequest, gin.H{"error": "La categoría no existe"})
			return
		}

		req.apply(product)
		if err := d.DB.Save(product).Error; err != nil {
			internalError(c, d.Log, err, "update product")
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// RestaurantDeleteProduct also drops the product from every cart. Order
// lines keep their snapshot.
func RestaurantDeleteProduct(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		restaurant, ok := ownRestaurant(c, d)
		if !ok {
			return
		}
		product, ok := ownProduct(c, d, restaurant)
		if !ok {
			return
		}

		err := d.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("product_id = ?", product.ID).Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
			return tx.Delete(product).Error
		})
		if err != nil {
			internalError(c, d.Log, err, "delete product")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Producto eliminado"})
	}
}
