package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/phishguard/internal/api/middleware"
	"github.com/Wikid82/phishguard/internal/detector"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/services"
	"github.com/Wikid82/phishguard/internal/util"
)

// MaxUploadSize bounds files accepted by ScanFile.
const MaxUploadSize = 10 << 20

// FileThreatHandler quarantines a file whose analysis warrants it.
type FileThreatHandler interface {
	HandleFileThreat(fa detector.FileAnalysis, actor string) (bool, error)
}

type QuarantineHandler struct {
	service  *services.QuarantineService
	security *services.SecurityService
	detector *detector.Detector
	engine   FileThreatHandler
}

func NewQuarantineHandler(service *services.QuarantineService, security *services.SecurityService, det *detector.Detector, engine FileThreatHandler) *QuarantineHandler {
	return &QuarantineHandler{service: service, security: security, detector: det, engine: engine}
}

func (h *QuarantineHandler) List(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := c.Query("status")
	if status != "" && status != models.QuarantineActive && status != models.QuarantineReleased {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}

	items, total, err := h.service.List(status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list quarantine"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total, "limit": limit, "offset": offset})
}

func (h *QuarantineHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	entry, err := h.service.Get(id)
	if err != nil {
		if errors.Is(err, services.ErrQuarantineNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Quarantine entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get quarantine entry"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

type ReleaseRequest struct {
	Notes string `json:"notes"`
}

// Release moves a quarantined item to released. Releasing an item that is
// not quarantined is a conflict and changes nothing.
func (h *QuarantineHandler) Release(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req ReleaseRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	who := actor(c)
	entry, err := h.service.Release(id, who, req.Notes)
	switch {
	case errors.Is(err, services.ErrQuarantineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Quarantine entry not found"})
		return
	case errors.Is(err, services.ErrPolicyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Item não está em quarentena"})
		return
	case err != nil:
		middleware.GetRequestLogger(c).WithError(err).Error("quarantine release failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to release item"})
		return
	}

	h.audit(c, who, models.AuditQuarantineRelease, util.SanitizeForLog(entry.Identifier), entry.ItemType)
	c.JSON(http.StatusOK, entry)
}

// ScanFile analyzes an uploaded file and quarantines its hash when it is
// malicious or carries a dangerous extension.
func (h *QuarantineHandler) ScanFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if header.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}
	if len(data) > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	fa := h.detector.AnalyzeFile(header.Filename, data)
	quarantined, err := h.engine.HandleFileThreat(fa, actor(c))
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).WithField("file_hash", fa.Hash).Error("file quarantine failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to quarantine file"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis": fa, "quarantined": quarantined})
}

func (h *QuarantineHandler) audit(c *gin.Context, who string, action models.AuditAction, target, details string) {
	if h.security == nil {
		return
	}
	if err := h.security.LogAudit(&models.AdminAudit{Actor: who, Action: action, Target: target, Details: details}); err != nil {
		middleware.GetRequestLogger(c).WithError(err).WithField("action", action).Warn("failed to write audit entry")
	}
}
