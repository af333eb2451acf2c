package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"domiflash/internal/models"
	"domiflash/internal/session"
	"domiflash/internal/utils"
)

const (
	ctxUserID  = "user_id"
	ctxRole    = "role"
	ctxSession = "session"
)

// JWTAuth resolves the bearer token to a live session and puts user_id, role
// and the session itself on the context. It does not record activity; chain
// KeepAlive for that.
func JWTAuth(secret string, sessions *session.Manager, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		// Browsers cannot set headers on websocket upgrades.
		if authHeader == "" && c.IsWebsocket() && c.Query("token") != "" {
			authHeader = "Bearer " + c.Query("token")
		}
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Falta el token de autorización"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Formato de token inválido"})
			return
		}

		claims, err := utils.ValidateToken(secret, parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token inválido"})
			return
		}

		sess, err := sessions.Get(c.Request.Context(), claims.SessionID)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "Tu sesión ha expirado por inactividad. Por favor, inicia sesión nuevamente.",
					"expired": true,
				})
				return
			}
			log.WithError(err).Error("session lookup failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Error interno del servidor"})
			return
		}
		if sess.UserID != claims.UserID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token inválido"})
			return
		}

		c.Set(ctxUserID, sess.UserID)
		c.Set(ctxRole, string(sess.Role))
		c.Set(ctxSession, sess)
		c.Next()
	}
}

// KeepAlive restarts the session's inactivity window on every request.
func KeepAlive(sessions *session.Manager, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if sess := CurrentSession(c); sess != nil {
			if err := sessions.Touch(c.Request.Context(), sess); err != nil {
				log.WithError(err).WithField("user_id", sess.UserID).Warn("session touch failed")
			}
		}
		c.Next()
	}
}

// RoleRequired lets the request through only for the listed roles.
func RoleRequired(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.Role(c.GetString(ctxRole))
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "No tienes permisos para acceder a esta sección"})
	}
}

func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(ctxSession)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Session)
	return sess
}

func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(ctxUserID)
}

func CurrentRole(c *gin.Context) models.Role {
	return models.Role(c.GetString(ctxRole))
}
