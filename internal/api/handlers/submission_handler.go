package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/phishguard/internal/api/middleware"
	"github.com/Wikid82/phishguard/internal/jobs"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/services"
	"github.com/Wikid82/phishguard/internal/util"
	"github.com/Wikid82/phishguard/internal/validate"
)

// SubmissionHandler exposes URL intake, job status and the submission history.
type SubmissionHandler struct {
	coordinator *jobs.Coordinator
	submissions *services.SubmissionService
}

func NewSubmissionHandler(coordinator *jobs.Coordinator, submissions *services.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{coordinator: coordinator, submissions: submissions}
}

type SubmitRequest struct {
	URL string `json:"url" binding:"required"`
}

// Submit validates the URL and queues it for analysis.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var userID *uint
	if id, ok := middleware.UserID(c); ok {
		userID = &id
	}

	jobID, err := h.coordinator.Submit(c.Request.Context(), req.URL, userID)
	if err != nil {
		var verr *validate.ValidationError
		if errors.As(err, &verr) {
			middleware.GetRequestLogger(c).WithField("url", util.SanitizeForLog(req.URL)).
				WithField("reason", verr.Reason).Warn("url rejected")
			c.JSON(http.StatusBadRequest, gin.H{"error": "URL inválida ou bloqueada: " + verr.Reason})
			return
		}
		middleware.GetRequestLogger(c).WithError(err).Error("submission failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao enfileirar análise"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": "enfileirado"})
}

// Status returns the submission for a job, with its result once done.
func (h *SubmissionHandler) Status(c *gin.Context) {
	sub, err := h.coordinator.Status(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		if errors.Is(err, services.ErrSubmissionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Submissão não encontrada"})
			return
		}
		middleware.GetRequestLogger(c).WithError(err).Error("status lookup failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao buscar submissão"})
		return
	}
	c.JSON(http.StatusOK, sub)
}

// List pages through submissions, newest first. Non-admin callers only see
// their own submissions.
func (h *SubmissionHandler) List(c *gin.Context) {
	limit, offset, err := pagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := services.SubmissionFilter{Limit: limit, Offset: offset}
	if status := c.Query("status"); status != "" {
		switch s := models.SubmissionStatus(status); s {
		case models.StatusQueued, models.StatusProcessing, models.StatusDone, models.StatusFailed:
			filter.Status = s
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
	}
	if role, _ := c.Get(middleware.ContextRole); role != models.RoleAdmin {
		if id, ok := middleware.UserID(c); ok {
			filter.UserID = &id
		}
	}

	subs, total, err := h.submissions.List(filter)
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("list submissions failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao listar submissões"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submissions": subs,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// Stats returns aggregate counts for the dashboard.
func (h *SubmissionHandler) Stats(c *gin.Context) {
	stats, err := h.submissions.Stats()
	if err != nil {
		middleware.GetRequestLogger(c).WithError(err).Error("stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erro ao buscar estatísticas"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
