package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Wikid82/phishguard/internal/trust"
)

// TrustHandler answers synchronous link trust checks. Nothing is persisted.
type TrustHandler struct {
	scorer *trust.Scorer
}

func NewTrustHandler(scorer *trust.Scorer) *TrustHandler {
	return &TrustHandler{scorer: scorer}
}

func (h *TrustHandler) Verify(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("url"))
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Parâmetro url é obrigatório"})
		return
	}
	c.JSON(http.StatusOK, h.scorer.Verify(raw))
}
