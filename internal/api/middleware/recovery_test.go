package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/phishguard/internal/logger"
)

func panicRouter(withStack bool, msg string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.Use(Recovery(withStack))
	r.POST("/api/v1/submit", func(c *gin.Context) { panic(msg) })
	return r
}

func TestRecovery_JSONLineWithoutStack(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(false, &buf)
	defer logger.Init(false, nil)

	w := httptest.NewRecorder()
	panicRouter(false, "nil analyzer").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/submit", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line), buf.String())
	assert.Equal(t, "handler panicked", line["msg"])
	assert.Equal(t, "nil analyzer", line["panic"])
	assert.Equal(t, "/api/v1/submit", line["route"])
	assert.NotEmpty(t, line["request_id"])
	assert.NotContains(t, line, "stack")
}

func TestRecovery_StackAndSanitizedRequest(t *testing.T) {
	var buf bytes.Buffer
	logger.Init(true, &buf)
	defer logger.Init(false, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/submit", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	panicRouter(true, "nil analyzer").ServeHTTP(w, req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	out := buf.String()
	assert.Contains(t, out, "handler panicked")
	assert.Contains(t, out, "stack=")
	assert.Contains(t, out, "<redacted>")
	assert.NotContains(t, out, "secret-token")
}

func TestRecovery_ResponseCarriesRequestID(t *testing.T) {
	logger.Init(false, &bytes.Buffer{})
	defer logger.Init(false, nil)

	w := httptest.NewRecorder()
	panicRouter(false, "boom").ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/submit", nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["error"])
	assert.Equal(t, w.Header().Get(RequestIDHeader), body["request_id"])
	assert.NotEmpty(t, body["request_id"])
}
