package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Wikid82/phishguard/internal/api/middleware"
	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/models"
	"github.com/Wikid82/phishguard/internal/services"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *services.AuthService, *gorm.DB) {
	gin.SetMode(gin.TestMode)
	db := OpenTestDB(t)
	authService := services.NewAuthService(db, config.Config{JWTSecret: "test-secret"})
	return NewAuthHandler(authService, false), authService, db
}

func TestAuthHandler_RegisterAndLogin(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)
	r := gin.New()
	r.POST("/register", handler.Register)
	r.POST("/login", handler.Login)

	w := doRequest(r, http.MethodPost, "/register", map[string]string{
		"email": "admin@example.com", "password": "password123", "name": "Admin",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var user models.User
	decode(t, w, &user)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.NotContains(t, w.Body.String(), "password")

	w = doRequest(r, http.MethodPost, "/register", map[string]string{
		"email": "admin@example.com", "password": "password123", "name": "Again",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(r, http.MethodPost, "/register", map[string]string{
		"email": "short@example.com", "password": "short", "name": "Short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/login", map[string]string{
		"email": "admin@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	decode(t, w, &resp)
	assert.NotEmpty(t, resp["token"])
	cookie := w.Result().Cookies()
	require.NotEmpty(t, cookie)
	assert.Equal(t, middleware.TokenCookie, cookie[0].Name)
	assert.True(t, cookie[0].HttpOnly)
}

func TestAuthHandler_Login_Errors(t *testing.T) {
	handler, authService, _ := setupAuthHandler(t)
	_, err := authService.Register("user@example.com", "password123", "User")
	require.NoError(t, err)

	r := gin.New()
	r.POST("/login", handler.Login)

	w := doRequest(r, http.MethodPost, "/login", "invalid")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodPost, "/login", map[string]string{"email": "nobody@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, http.MethodPost, "/login", map[string]string{"email": "user@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	handler, _, _ := setupAuthHandler(t)
	r := gin.New()
	r.POST("/logout", handler.Logout)

	w := doRequest(r, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Result().Cookies())
	assert.Empty(t, w.Result().Cookies()[0].Value)
}

func TestAuthHandler_Me(t *testing.T) {
	handler, authService, _ := setupAuthHandler(t)
	user, err := authService.Register("me@example.com", "password123", "Me")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", asUser(user.ID, user.Role), handler.Me)
	r.GET("/ghost", asUser(999, models.RoleUser), handler.Me)
	r.GET("/anon", handler.Me)

	w := doRequest(r, http.MethodGet, "/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decode(t, w, &resp)
	assert.Equal(t, "me@example.com", resp["email"])
	assert.Equal(t, models.RoleAdmin, resp["role"])

	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/ghost", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, http.MethodGet, "/anon", nil).Code)
}
