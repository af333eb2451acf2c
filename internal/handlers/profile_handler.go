package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"domiflash/internal/middleware"
	"domiflash/internal/models"
)

type UpdateProfileRequest struct {
	Name    *string `json:"name" binding:"omitempty,personname"`
	Address *string `json:"address" binding:"omitempty,address"`
	Phone   *string `json:"phone" binding:"omitempty,phone"`
}

// Updates returns only the columns present in the request.
func (r *UpdateProfileRequest) Updates() map[string]interface{} {
	updates := map[string]interface{}{}
	if r.Name != nil {
		updates["name"] = strings.TrimSpace(*r.Name)
	}
	if r.Address != nil {
		updates["address"] = strings.TrimSpace(*r.Address)
	}
	if r.Phone != nil {
		updates["phone"] = strings.TrimSpace(*r.Phone)
	}
	return updates
}

func UserGetProfile(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		if err := d.DB.First(&user, middleware.CurrentUserID(c)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
				return
			}
			internalError(c, d.Log, err, "load profile")
			return
		}

		resp := gin.H{"user": user.ToResponse()}
		if user.Role == models.RoleRestaurant {
			var restaurant models.Restaurant
			if err := d.DB.Where("owner_id = ?", user.ID).First(&restaurant).Error; err == nil {
				resp["restaurant"] = restaurant
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func UserUpdateProfile(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateProfileRequest
		if !bindJSON(c, &req) {
			return
		}

		var user models.User
		if err := d.DB.First(&user, middleware.CurrentUserID(c)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
				return
			}
			internalError(c, d.Log, err, "load profile")
			return
		}

		updates := req.Updates()
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No hay cambios para guardar"})
			return
		}
		if err := d.DB.Model(&user).Updates(updates).Error; err != nil {
			internalError(c, d.Log, err, "update profile")
			return
		}

		if err := d.DB.First(&user, user.ID).Error; err != nil {
			internalError(c, d.Log, err, "reload profile")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Perfil actualizado", "user": user.ToResponse()})
	}
}
