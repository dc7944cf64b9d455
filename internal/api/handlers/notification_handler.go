package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/phishguard/internal/services"
)

// NotificationHandler exposes the alerts the defense engine raises when it
// blocks an IP, quarantines an item or blacklists a host.
type NotificationHandler struct {
	alerts *services.NotificationService
}

func NewNotificationHandler(alerts *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{alerts: alerts}
}

// List accepts unread=true, event=<auto_block|quarantine|blacklist> and the
// usual limit/offset paging.
func (h *NotificationHandler) List(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event := c.Query("event")
	if event != "" && !services.ValidEvent(event) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event"})
		return
	}

	alerts, err := h.alerts.List(services.NotificationFilter{
		UnreadOnly: c.Query("unread") == "true",
		Event:      event,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
	err := h.alerts.MarkAsRead(c.Param("id"))
	switch {
	case errors.Is(err, services.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
	default:
		c.Status(http.StatusNoContent)
	}
}

func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	if err := h.alerts.MarkAllAsRead(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alerts"})
		return
	}
	c.Status(http.StatusNoContent)
}
