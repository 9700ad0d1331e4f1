package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sujalbistaa/privacynet/internal/audit"
	"github.com/sujalbistaa/privacynet/internal/comments"
	"github.com/sujalbistaa/privacynet/internal/common"
	"github.com/sujalbistaa/privacynet/internal/logging"
	"github.com/sujalbistaa/privacynet/internal/vault"
	"github.com/sujalbistaa/privacynet/internal/ws"
)

// --- Handlers ---
type Env struct {
	DB       *gorm.DB
	Hub      *ws.Hub
	Comments *comments.Service
	Vault    *vault.GormStore
	Audit    comments.AuditLogger
	AuditLog *audit.GormSink
	Limiter  *IPRateLimiter
	Log      logging.Logger
}

func (e *Env) Health(c *gin.Context) {
	sqlDB, err := e.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		e.Log.Error(c.Request.Context(), "health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps service errors onto HTTP statuses. Anything unrecognised is
// logged and reported as a 500 with the generic message.
func (e *Env) fail(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, common.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, common.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		e.Log.Error(c.Request.Context(), message, "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": message})
	}
}
