package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/phishguard/internal/api/middleware"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/services"
	"github.com/Wikid82/phishguard/internal/util"
)

type BlacklistHandler struct {
	service  *services.BlacklistService
	security *services.SecurityService
}

func NewBlacklistHandler(service *services.BlacklistService, security *services.SecurityService) *BlacklistHandler {
	return &BlacklistHandler{service: service, security: security}
}

func (h *BlacklistHandler) List(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	itemType := c.Query("type")
	if itemType != "" && !models.ValidItemType(itemType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item type"})
		return
	}
	activeOnly := c.DefaultQuery("active", "true") == "true"

	entries, total, err := h.service.List(itemType, activeOnly, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list blacklist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total": total, "limit": limit, "offset": offset})
}

type BlacklistRequest struct {
	ItemType   string `json:"item_type" binding:"required"`
	ItemValue  string `json:"item_value" binding:"required"`
	ThreatType string `json:"threat_type"`
	Notes      string `json:"notes"`
}

// Add inserts an entry or reactivates an existing one with the same value.
func (h *BlacklistHandler) Add(c *gin.Context) {
	var req BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	who := actor(c)
	threat := req.ThreatType
	if threat == "" {
		threat = "manual"
	}
	entry := &models.BlacklistEntry{
		ItemType:   req.ItemType,
		ItemValue:  req.ItemValue,
		ThreatType: threat,
		AddedBy:    who,
		Notes:      req.Notes,
	}
	if err := h.service.Upsert(entry); err != nil {
		if errors.Is(err, services.ErrInvalidItemType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item type"})
			return
		}
		middleware.GetRequestLogger(c).WithError(err).Error("blacklist upsert failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add blacklist entry"})
		return
	}

	h.audit(c, who, models.AuditBlacklistAdd, util.SanitizeForLog(entry.ItemValue), entry.ItemType)
	c.JSON(http.StatusCreated, entry)
}

// Deactivate clears the active flag. Entries are never deleted.
func (h *BlacklistHandler) Deactivate(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := h.service.Deactivate(id); err != nil {
		if errors.Is(err, services.ErrBlacklistNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Blacklist entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate blacklist entry"})
		return
	}
	h.audit(c, actor(c), models.AuditBlacklistDeactivate, "blacklist:"+c.Param("id"), "")
	c.JSON(http.StatusOK, gin.H{"message": "Blacklist entry deactivated"})
}

// Check reports whether an active entry holds the value.
func (h *BlacklistHandler) Check(c *gin.Context) {
	itemType := c.Query("type")
	value := strings.TrimSpace(c.Query("value"))
	if !models.ValidItemType(itemType) || value == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and value are required"})
		return
	}
	listed, err := h.service.IsBlacklisted(itemType, value)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check blacklist"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item_type": itemType, "item_value": value, "blacklisted": listed})
}

func (h *BlacklistHandler) audit(c *gin.Context, who string, action models.AuditAction, target, details string) {
	if h.security == nil {
		return
	}
	if err := h.security.LogAudit(&models.AdminAudit{Actor: who, Action: action, Target: target, Details: details}); err != nil {
		middleware.GetRequestLogger(c).WithError(err).WithField("action", action).Warn("failed to write audit entry")
	}
}
