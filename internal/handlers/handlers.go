package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"domiflash/internal/cache"
	"domiflash/internal/services"
	"domiflash/internal/services/delivery"
	"domiflash/internal/services/recovery"
	"domiflash/internal/session"
	"domiflash/internal/validation"
)

// Deps carries the shared collaborators handlers close over.
type Deps struct {
	DB        *gorm.DB
	Sessions  *session.Manager
	Delivery  *delivery.Service
	Notifier  *services.OrderNotifier
	Recovery  *recovery.Service
	Cache     *cache.Cache
	Log       logrus.FieldLogger
	JWTSecret string
	TokenTTL  time.Duration
	UploadDir string
}

// bindJSON binds the request body and answers 400 on failure. Validation
// failures carry a per-field map under "errors".
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if fields, ok := validation.FieldErrors(err); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Datos inválidos", "errors": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Formato de datos inválido"})
		return false
	}
	return true
}

// paramID parses the :id path parameter, answering 400 when it is not a positive integer.
func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Identificador inválido"})
		return 0, false
	}
	return uint(id), true
}

func internalError(c *gin.Context, log logrus.FieldLogger, err error, msg string) {
	log.WithError(err).WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"method": c.Request.Method,
	}).Error(msg)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Error interno del servidor"})
}
