package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/phishguard/internal/api/middleware"
	"github.com/Wikid82/phishguard/internal/defense"
	"github.com/Wikid82/phishguard/internal/forensics"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/services"
)

// IPReviewer evaluates the recent attack history of an address.
type IPReviewer interface {
	ReviewIP(ip string) (bool, string, error)
}

// SecurityHandler exposes the attack log, enforcement decisions and audit trail.
type SecurityHandler struct {
	attacks  *services.AttackLogService
	security *services.SecurityService
	reviewer IPReviewer
	now      func() time.Time
}

func NewSecurityHandler(attacks *services.AttackLogService, security *services.SecurityService, reviewer IPReviewer) *SecurityHandler {
	return &SecurityHandler{attacks: attacks, security: security, reviewer: reviewer, now: time.Now}
}

func (h *SecurityHandler) ListAttacks(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	logs, total, err := h.attacks.List(c.Query("ip"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list attacks"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"attacks": logs, "total": total, "limit": limit, "offset": offset})
}

// AttackPattern summarizes the attacks from one address inside the block window.
func (h *SecurityHandler) AttackPattern(c *gin.Context) {
	ip := strings.TrimSpace(c.Query("ip"))
	if ip == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ip is required"})
		return
	}
	logs, err := h.attacks.Since(ip, h.now().Add(-defense.BlockWindow))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load attacks"})
		return
	}
	c.JSON(http.StatusOK, forensics.AnalyzePattern(attackContexts(logs)...))
}

func attackContexts(logs []models.AttackLog) []forensics.AttackContext {
	out := make([]forensics.AttackContext, 0, len(logs))
	for _, l := range logs {
		ac := forensics.AttackContext{
			ThreatType: l.AttackType,
			RiskLevel:  l.RiskLevel,
			Time:       l.CreatedAt,
		}
		if len(l.Metadata) > 0 {
			_ = json.Unmarshal(l.Metadata, &ac.Metadata)
		}
		if ac.Metadata.ClientIP == "" {
			ac.Metadata.ClientIP = l.ClientIP
		}
		if len(l.Report) > 0 {
			var r forensics.Report
			if json.Unmarshal(l.Report, &r) == nil {
				ac.TargetURL = r.AttackDetails.Target
				ac.Payload = r.AttackDetails.Payload
			}
		}
		out = append(out, ac)
	}
	return out
}

// ReviewIP runs the auto-block policy for one address immediately.
func (h *SecurityHandler) ReviewIP(c *gin.Context) {
	ip := c.Param("ip")
	blocked, reason, err := h.reviewer.ReviewIP(ip)
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("ip review failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to review ip"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ip": ip, "blocked": blocked, "reason": reason})
}

func (h *SecurityHandler) ListDecisions(c *gin.Context) {
	limit := 50
	if q := c.Query("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			limit = v
		}
	}
	list, err := h.security.ListDecisions(c.Query("ip"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list decisions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": list})
}

func (h *SecurityHandler) ListAudits(c *gin.Context) {
	limit := 50
	if q := c.Query("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			limit = v
		}
	}
	list, err := h.security.ListAudits(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list audits"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": list})
}
