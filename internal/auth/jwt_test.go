package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnlive/backend/internal/middleware"
	"github.com/learnlive/backend/internal/models"
	"github.com/learnlive/backend/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

func protectedRouter() *gin.Engine {
	r := gin.New()
	r.GET("/protected", middleware.JWTAuth(testSecret), func(c *gin.Context) {
		id, _ := middleware.UserIDFromContext(c)
		role, _ := middleware.RoleFromContext(c)
		response.OK(c, gin.H{"user_id": id, "role": role})
	})
	r.GET("/mentor", middleware.JWTAuth(testSecret), middleware.RequireRole("mentor"), func(c *gin.Context) {
		response.OK(c, gin.H{"ok": true})
	})
	return r
}

func issueFor(t *testing.T, role models.Role) (string, uuid.UUID) {
	t.Helper()
	user := &models.User{ID: uuid.New(), Email: "a@b.c", Role: role}
	token, err := NewTokenIssuer(testSecret, 1).Issue(user)
	require.NoError(t, err)
	return token, user.ID
}

func TestIssuedTokenPassesMiddleware(t *testing.T) {
	token, userID := issueFor(t, models.RoleStudent)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
	assert.Contains(t, w.Body.String(), "student")
}

func TestMissingTokenRejected(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	protectedRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTamperedTokenRejected(t *testing.T) {
	token, _ := issueFor(t, models.RoleStudent)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token+"x")
	protectedRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWrongSecretRejected(t *testing.T) {
	user := &models.User{ID: uuid.New(), Email: "a@b.c", Role: models.RoleStudent}
	token, err := NewTokenIssuer("other-secret", 1).Issue(user)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleGate(t *testing.T) {
	studentToken, _ := issueFor(t, models.RoleStudent)
	mentorToken, _ := issueFor(t, models.RoleMentor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/mentor", nil)
	req.Header.Set("Authorization", "Bearer "+studentToken)
	protectedRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/mentor", nil)
	req.Header.Set("Authorization", "Bearer "+mentorToken)
	protectedRouter().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
