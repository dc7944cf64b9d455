package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/services"
)

func alertRouter(t *testing.T) (*gin.Engine, *services.NotificationService) {
	gin.SetMode(gin.TestMode)
	svc := services.NewNotificationService(OpenTestDB(t), nil)
	h := NewNotificationHandler(svc)
	r := gin.New()
	r.GET("/notifications", h.List)
	r.POST("/notifications/:id/read", h.MarkAsRead)
	r.POST("/notifications/read-all", h.MarkAllAsRead)
	return r, svc
}

func TestNotificationHandler_ReadFlow(t *testing.T) {
	r, svc := alertRouter(t)

	block, err := svc.Create(models.NotificationTypeWarning, services.EventAutoBlock, "IP bloqueado", "203.0.113.5")
	require.NoError(t, err)
	_, err = svc.Create(models.NotificationTypeWarning, services.EventQuarantine, "URL em quarentena", "https://evil.example.com")
	require.NoError(t, err)

	var list []models.Notification
	w := doRequest(r, http.MethodGet, "/notifications?unread=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Len(t, list, 2)

	w = doRequest(r, http.MethodPost, "/notifications/"+block.ID+"/read", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(r, http.MethodGet, "/notifications?unread=true", nil)
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, services.EventQuarantine, list[0].Event)

	w = doRequest(r, http.MethodPost, "/notifications/read-all", nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = doRequest(r, http.MethodGet, "/notifications?unread=true", nil)
	decode(t, w, &list)
	assert.Empty(t, list)

	w = doRequest(r, http.MethodGet, "/notifications", nil)
	decode(t, w, &list)
	assert.Len(t, list, 2)
}

func TestNotificationHandler_FilterByEvent(t *testing.T) {
	r, svc := alertRouter(t)

	for _, ip := range []string{"203.0.113.5", "203.0.113.6"} {
		_, err := svc.Create(models.NotificationTypeWarning, services.EventAutoBlock, "IP bloqueado", ip)
		require.NoError(t, err)
	}
	_, err := svc.Create(models.NotificationTypeWarning, services.EventBlacklist, "Domínio na lista negra", "evil.tk")
	require.NoError(t, err)

	var list []models.Notification
	w := doRequest(r, http.MethodGet, "/notifications?event=auto_block", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Len(t, list, 2)

	w = doRequest(r, http.MethodGet, "/notifications?event=auto_block&limit=1", nil)
	decode(t, w, &list)
	assert.Len(t, list, 1)

	w = doRequest(r, http.MethodGet, "/notifications?event=login", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationHandler_MarkUnknownAlert(t *testing.T) {
	r, _ := alertRouter(t)

	w := doRequest(r, http.MethodPost, "/notifications/does-not-exist/read", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
