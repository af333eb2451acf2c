package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"domiflash/internal/middleware"
	"domiflash/internal/utils"
)

// Session endpoints run without KeepAlive so that reading the status does
// not itself count as activity.

func SessionStatus(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		c.JSON(http.StatusOK, gin.H{"session": d.Sessions.Info(sess)})
	}
}

func SessionWarning(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := d.Sessions.Info(middleware.CurrentSession(c))
		resp := gin.H{
			"needs_warning":      info.NeedsWarning,
			"time_until_timeout": info.TimeUntilTimeout,
		}
		if info.NeedsWarning {
			resp["message"] = "Tu sesión expirará pronto por inactividad."
		}
		c.JSON(http.StatusOK, resp)
	}
}

// SessionHeartbeat records activity without issuing a new token.
func SessionHeartbeat(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		if err := d.Sessions.Touch(c.Request.Context(), sess); err != nil {
			internalError(c, d.Log, err, "touch session")
			return
		}
		c.JSON(http.StatusOK, gin.H{"session": d.Sessions.Info(sess)})
	}
}

// SessionExtend is the answer to the expiry warning: it restarts the window.
func SessionExtend(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		if err := d.Sessions.Touch(c.Request.Context(), sess); err != nil {
			internalError(c, d.Log, err, "extend session")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Sesión extendida",
			"session": d.Sessions.Info(sess),
		})
	}
}

// SessionRefresh records activity and signs a fresh token for the same session.
func SessionRefresh(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		if err := d.Sessions.Touch(c.Request.Context(), sess); err != nil {
			internalError(c, d.Log, err, "refresh session")
			return
		}
		token, err := utils.GenerateJWT(d.JWTSecret, sess.UserID, string(sess.Role), sess.ID, d.TokenTTL)
		if err != nil {
			internalError(c, d.Log, err, "sign token")
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "session": d.Sessions.Info(sess)})
	}
}

func SessionLogout(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := middleware.CurrentSession(c)
		if err := d.Sessions.End(c.Request.Context(), sess); err != nil {
			internalError(c, d.Log, err, "end session")
			return
		}
		d.Log.WithField("user_id", sess.UserID).Info("user logged out")
		c.JSON(http.StatusOK, gin.H{"message": "Sesión cerrada correctamente"})
	}
}
