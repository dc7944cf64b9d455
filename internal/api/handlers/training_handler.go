package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/phishguard/internal/services"
)

// TrainingHandler serves the seeded phishing awareness cases.
type TrainingHandler struct {
	service *services.TrainingService
}

func NewTrainingHandler(service *services.TrainingService) *TrainingHandler {
	return &TrainingHandler{service: service}
}

func (h *TrainingHandler) List(c *gin.Context) {
	cases, err := h.service.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list training cases"})
		return
	}
	c.JSON(http.StatusOK, cases)
}

func (h *TrainingHandler) Get(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	tc, err := h.service.Get(id)
	if err != nil {
		if errors.Is(err, services.ErrTrainingCaseNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Training case not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get training case"})
		return
	}
	c.JSON(http.StatusOK, tc)
}
