package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/phishguard/internal/queue"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := OpenTestDB(t)
	q := queue.NewMemoryQueue()
	require.NoError(t, q.Enqueue(context.Background(), queue.Job{ID: "a", URL: "https://example.com"}))

	r := gin.New()
	r.GET("/", Index)
	r.GET("/health", NewHealthHandler(db, q).Health)

	w := doRequest(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "online")

	w = doRequest(r, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Status   string `json:"status"`
		Services struct {
			Database string `json:"database"`
			Queue    struct {
				Status      string `json:"status"`
				PendingJobs int64  `json:"pending_jobs"`
			} `json:"queue"`
		} `json:"services"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Services.Database)
	assert.Equal(t, int64(1), resp.Services.Queue.PendingJobs)

	require.NoError(t, q.Close())
	w = doRequest(r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var degraded map[string]interface{}
	decode(t, w, &degraded)
	assert.Equal(t, "degraded", degraded["status"])
}
