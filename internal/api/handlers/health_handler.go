package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/database"
	"github.com/Wikid82/phishguard/internal/queue"
	"github.com/Wikid82/phishguard/internal/version"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler reports the state of the database and the job queue.
type HealthHandler struct {
	db    *gorm.DB
	queue queue.Queue
	now   func() time.Time
}

func NewHealthHandler(db *gorm.DB, q queue.Queue) *HealthHandler {
	return &HealthHandler{db: db, queue: q, now: time.Now}
}

// Index is the liveness banner served at the root path.
func Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "online",
		"mensagem": "Sistema de proteção educacional ativo.",
	})
}

// Health answers 200 when every dependency is reachable and 503 with a
// "degraded" status otherwise.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := "ok"
	services := gin.H{}

	if err := database.Ping(h.db); err != nil {
		services["database"] = "error: " + err.Error()
		status = "degraded"
	} else {
		services["database"] = "ok"
	}

	if err := h.queue.Ping(ctx); err != nil {
		services["queue"] = "error: " + err.Error()
		status = "degraded"
	} else if n, err := h.queue.Len(ctx); err != nil {
		services["queue"] = "error: " + err.Error()
		status = "degraded"
	} else {
		services["queue"] = gin.H{"status": "ok", "pending_jobs": n}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": h.now().UTC().Format(time.RFC3339),
		"service":   version.Name,
		"version":   version.Version,
		"services":  services,
	})
}
