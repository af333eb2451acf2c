package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"domiflash/internal/cache"
	"domiflash/internal/db"
	"domiflash/internal/middleware"
	"domiflash/internal/models"
)

type AdminUpdateUserRequest struct {
	Name    *string `json:"name" binding:"omitempty,personname"`
	Address *string `json:"address" binding:"omitempty,address"`
	Phone   *string `json:"phone" binding:"omitempty,phone"`
	Role    *string `json:"role" binding:"omitempty,role"`
}

type CategoryRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=50"`
	Description string `json:"description" binding:"omitempty,safetext"`
}

// ToggledStatus flips activo and inactivo.
func ToggledStatus(s models.UserStatus) models.UserStatus {
	if s == models.UserStatusActive {
		return models.UserStatusInactive
	}
	return models.UserStatusActive
}

func loadUser(c *gin.Context, d *Deps) (*models.User, bool) {
	id, ok := paramID(c)
	if !ok {
		return nil, false
	}
	var user models.User
	if err := d.DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
			return nil, false
		}
		internalError(c, d.Log, err, "load user")
		return nil, false
	}
	return &user, true
}

// AdminListUsers supports ?role= and ?status= filters.
func AdminListUsers(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := d.DB.Model(&models.User{})
		if role := c.Query("role"); role != "" {
			query = query.Where("role = ?", role)
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status)
		}

		var users []models.User
		if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
			internalError(c, d.Log, err, "list users")
			return
		}
		resp := make([]models.UserResponse, 0, len(users))
		for i := range users {
			resp = append(resp, users[i].ToResponse())
		}
		c.JSON(http.StatusOK, resp)
	}
}

func AdminUpdateUser(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AdminUpdateUserRequest
		if !bindJSON(c, &req) {
			return
		}
		user, ok := loadUser(c, d)
		if !ok {
			return
		}

		profile := UpdateProfileRequest{Name: req.Name, Address: req.Address, Phone: req.Phone}
		updates := profile.Updates()
		if req.Role != nil {
			updates["role"] = *req.Role
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No hay cambios para guardar"})
			return
		}
		if err := applyUserUpdate(c.Request.Context(), d, user, updates); err != nil {
			internalError(c, d.Log, err, "update user")
			return
		}

		if err := d.DB.First(user, user.ID).Error; err != nil {
			internalError(c, d.Log, err, "reload user")
			return
		}
		c.JSON(http.StatusOK, user.ToResponse())
	}
}

// applyUserUpdate saves updates on user. The role travels inside sessions, so
// a role change signs the user out everywhere. gorm writes the new values back
// into user, hence the role is read before the update.
func applyUserUpdate(ctx context.Context, d *Deps, user *models.User, updates map[string]interface{}) error {
	oldRole := user.Role
	if err := d.DB.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return err
	}
	newRole, ok := updates["role"].(string)
	if !ok || models.Role(newRole) == oldRole {
		return nil
	}
	ended, err := d.Sessions.EndAllForUser(ctx, user.ID)
	if err != nil {
		d.Log.WithError(err).WithField("user_id", user.ID).Warn("could not end sessions")
		return nil
	}
	d.Log.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"from":     oldRole,
		"to":       newRole,
		"sessions": ended,
	}).Info("user role changed")
	return nil
}

// AdminToggleUser switches a user between activo and inactivo. Deactivation
// ends every open session of the user.
func AdminToggleUser(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := loadUser(c, d)
		if !ok {
			return
		}
		if user.ID == middleware.CurrentUserID(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No puedes desactivar tu propia cuenta"})
			return
		}

		next := ToggledStatus(user.Status)
		if err := d.DB.Model(user).Update("status", next).Error; err != nil {
			internalError(c, d.Log, err, "toggle user")
			return
		}

		ended := 0
		if next == models.UserStatusInactive {
			n, err := d.Sessions.EndAllForUser(c.Request.Context(), user.ID)
			if err != nil {
				d.Log.WithError(err).WithField("user_id", user.ID).Warn("could not end sessions")
			}
			ended = n
		}

		d.Log.WithFields(logrus.Fields{"user_id": user.ID, "status": next, "sessions_ended": ended}).Info("user status toggled")
		c.JSON(http.StatusOK, gin.H{"message": "Estado actualizado", "status": next})
	}
}

func invalidateCategories(c *gin.Context, d *Deps) {
	if err := d.Cache.Delete(c.Request.Context(), cache.CategoriesKey); err != nil {
		d.Log.WithError(err).Warn("categories cache invalidation failed")
	}
}

func AdminListCategories(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var categories []models.Category
		if err := d.DB.Order("name ASC").Find(&categories).Error; err != nil {
			internalError(c, d.Log, err, "list categories")
			return
		}
		c.JSON(http.StatusOK, categories)
	}
}

func AdminCreateCategory(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CategoryRequest
		if !bindJSON(c, &req) {
			return
		}
		category := models.Category{
			Name:        strings.TrimSpace(req.Name),
			Description: strings.TrimSpace(req.Description),
		}
		if err := d.DB.Create(&category).Error; err != nil {
			if db.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Ya existe una categoría con ese nombre"})
				return
			}
			internalError(c, d.Log, err, "create category")
			return
		}
		invalidateCategories(c, d)
		c.JSON(http.StatusCreated, category)
	}
}

func AdminUpdateCategory(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}
		var req CategoryRequest
		if !bindJSON(c, &req) {
			return
		}

		var category models.Category
		if err := d.DB.First(&category, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Categoría no encontrada"})
				return
			}
			internalError(c, d.Log, err, "load category")
			return
		}
		category.Name = strings.TrimSpace(req.Name)
		category.Description = strings.TrimSpace(req.Description)
		if err := d.DB.Save(&category).Error; err != nil {
			if db.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "Ya existe una categoría con ese nombre"})
				return
			}
			internalError(c, d.Log, err, "update category")
			return
		}
		invalidateCategories(c, d)
		c.JSON(http.StatusOK, category)
	}
}

// AdminDeleteCategory refuses while products still reference the category.
func AdminDeleteCategory(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}

		var inUse int64
		if err := d.DB.Model(&models.Product{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
			internalError(c, d.Log, err, "count category products")
			return
		}
		if inUse > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "La categoría tiene productos asociados"})
			return
		}

		result := d.DB.Delete(&models.Category{}, id)
		if result.Error != nil {
			internalError(c, d.Log, result.Error, "delete category")
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Categoría no encontrada"})
			return
		}
		invalidateCategories(c, d)
		c.JSON(http.StatusOK, gin.H{"message": "Categoría eliminada"})
	}
}
