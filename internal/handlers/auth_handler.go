package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"domiflash/internal/db"
	"domiflash/internal/middleware"
	"domiflash/internal/models"
	"domiflash/internal/services/recovery"
	"domiflash/internal/session"
	"domiflash/internal/utils"
	"domiflash/internal/validation"
)

type RegisterRequest struct {
	Name            string `json:"name" binding:"required,personname"`
	Email           string `json:"email" binding:"required,email,max=100"`
	Password        string `json:"password" binding:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" binding:"required,eqfield=Password"`
	Address         string `json:"address" binding:"required,address"`
	Phone           string `json:"phone" binding:"required,phone"`
	Role            string `json:"role" binding:"omitempty,signuprole"`
	RestaurantName  string `json:"restaurant_name" binding:"omitempty,max=100"`
}

type LoginRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	RememberMe bool   `json:"remember_me"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" binding:"required,eqfield=Password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm" binding:"required,eqfield=NewPassword"`
}

type AuthResponse struct {
	Success  bool                `json:"success"`
	Message  string              `json:"message,omitempty"`
	Token    string              `json:"token,omitempty"`
	User     models.UserResponse `json:"user"`
	Session  *session.Info       `json:"session,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
}

// NewUser builds the user row for a registration request. Role defaults to cliente.
func NewUser(req *RegisterRequest, passwordHash string) models.User {
	role := models.RoleCustomer
	if req.Role != "" {
		role = models.Role(req.Role)
	}
	return models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: passwordHash,
		Address:      strings.TrimSpace(req.Address),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         role,
		Status:       models.UserStatusActive,
	}
}

func AuthRegister(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if !bindJSON(c, &req) {
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			internalError(c, d.Log, err, "hash password")
			return
		}
		user := NewUser(&req, string(hash))

		err = d.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			if user.Role != models.RoleRestaurant {
				return nil
			}

			name := strings.TrimSpace(req.RestaurantName)
			if name == "" {
				name = user.Name
			}
			loc := d.Delivery.NewLocation()
			restaurant := models.Restaurant{
				OwnerID:    user.ID,
				Name:       name,
				Address:    user.Address,
				Phone:      user.Phone,
				Lat:        loc.Lat,
				Lng:        loc.Lng,
				SpeedClass: models.SpeedNormal,
			}
			return tx.Create(&restaurant).Error
		})
		if err != nil {
			if db.IsUniqueViolation(err) {
				c.JSON(http.StatusConflict, gin.H{"error": "El email ya está registrado"})
				return
			}
			internalError(c, d.Log, err, "create user")
			return
		}

		d.Log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
		c.JSON(http.StatusCreated, AuthResponse{
			Success:  true,
			Message:  "Registro exitoso. Ahora puedes iniciar sesión.",
			User:     user.ToResponse(),
			Warnings: validation.PasswordWarnings(req.Password),
		})
	}
}

func AuthLogin(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, &req) {
			return
		}

		var user models.User
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if err := d.DB.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Email o contraseña incorrectos"})
				return
			}
			internalError(c, d.Log, err, "load user")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Email o contraseña incorrectos"})
			return
		}
		if !user.IsActive() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Tu cuenta está inactiva. Contacta al administrador."})
			return
		}

		ctx := c.Request.Context()
		sess, err := d.Sessions.Start(ctx, user.ID, user.Role, req.RememberMe)
		if err != nil {
			internalError(c, d.Log, err, "start session")
			return
		}
		token, err := utils.GenerateJWT(d.JWTSecret, user.ID, string(user.Role), sess.ID, d.TokenTTL)
		if err != nil {
			_ = d.Sessions.End(ctx, sess)
			internalError(c, d.Log, err, "sign token")
			return
		}

		info := d.Sessions.Info(sess)
		d.Log.WithFields(logrus.Fields{"user_id": user.ID, "remember_me": req.RememberMe}).Info("user logged in")
		c.JSON(http.StatusOK, AuthResponse{
			Success: true,
			Message: "¡Bienvenido, " + user.Name + "!",
			Token:   token,
			User:    user.ToResponse(),
			Session: &info,
		})
	}
}

// ForgotPassword answers the same way whether or not the email exists.
func ForgotPassword(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ForgotPasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		generic := gin.H{"message": "Si el email está registrado, recibirás un enlace para restablecer tu contraseña."}

		var user models.User
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if err := d.DB.Where("email = ?", email).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusOK, generic)
				return
			}
			internalError(c, d.Log, err, "load user")
			return
		}
		if !user.IsActive() {
			c.JSON(http.StatusOK, generic)
			return
		}

		if _, _, err := d.Recovery.Issue(c.Request.Context(), user.Email, user.Name); err != nil {
			if errors.Is(err, recovery.ErrTooManyTokens) {
				c.JSON(http.StatusTooManyRequests, gin.H{"error": "Demasiadas solicitudes. Intenta de nuevo más tarde."})
				return
			}
			internalError(c, d.Log, err, "issue recovery token")
			return
		}
		c.JSON(http.StatusOK, generic)
	}
}

func ResetPassword(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetPasswordRequest
		if !bindJSON(c, &req) {
			return
		}

		ctx := c.Request.Context()
		email, err := d.Recovery.Consume(ctx, req.Token)
		if err != nil {
			if errors.Is(err, recovery.ErrInvalidToken) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "El enlace es inválido o ha expirado"})
				return
			}
			if email == "" {
				internalError(c, d.Log, err, "consume recovery token")
				return
			}
			d.Log.WithError(err).Warn("recovery token consumed but not released")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			internalError(c, d.Log, err, "hash password")
			return
		}

		result := d.DB.Model(&models.User{}).Where("email = ?", email).Update("password_hash", string(hash))
		if result.Error != nil {
			internalError(c, d.Log, result.Error, "update password")
			return
		}
		if result.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
			return
		}

		var user models.User
		if err := d.DB.Select("id").Where("email = ?", email).First(&user).Error; err == nil {
			if _, err := d.Sessions.EndAllForUser(ctx, user.ID); err != nil {
				d.Log.WithError(err).WithField("user_id", user.ID).Warn("could not end sessions after reset")
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "Contraseña actualizada. Ya puedes iniciar sesión.",
			"warnings": validation.PasswordWarnings(req.Password),
		})
	}
}

func ChangePassword(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePasswordRequest
		if !bindJSON(c, &req) {
			return
		}

		var user models.User
		if err := d.DB.First(&user, middleware.CurrentUserID(c)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Usuario no encontrado"})
				return
			}
			internalError(c, d.Log, err, "load user")
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "La contraseña actual es incorrecta"})
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			internalError(c, d.Log, err, "hash password")
			return
		}
		if err := d.DB.Model(&user).Update("password_hash", string(hash)).Error; err != nil {
			internalError(c, d.Log, err, "update password")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":  "Contraseña actualizada correctamente",
			"warnings": validation.PasswordWarnings(req.NewPassword),
		})
	}
}
