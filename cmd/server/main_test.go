package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/learnlive/backend/config"
	"github.com/learnlive/backend/internal/realtime"
	"github.com/learnlive/backend/internal/recommendations"
)

// testRouter wires only the recommendation handler; the other handlers are
// registered but never invoked by these requests.
func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.Server.CORSAllowedOrigins = "*"

	rec := recommendations.NewHandler("http://127.0.0.1:1", time.Second, logger)
	hub := realtime.NewHub(nil, nil, logger)
	return newRouter(cfg, logger,
		nil, nil, nil, nil, nil, nil, nil, nil, rec, nil, hub)
}

func TestRecommendationProxyNeedsNoToken(t *testing.T) {
	router := testRouter(t)

	// No Authorization header: the request must reach the handler's own
	// validation, not die at an auth gate.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recommendations",
		strings.NewReader(`{"user_query":""}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/recommendations/health", nil)
	router.ServeHTTP(w, req)
	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedRoutesStillRequireToken(t *testing.T) {
	router := testRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
