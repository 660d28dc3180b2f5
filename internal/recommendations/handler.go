package recommendations

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/learnlive/backend/pkg/response"
)

// Handler proxies recommendation requests to the external engine. The engine
// owns the model; this side only validates, forwards, and normalizes errors.
type Handler struct {
	engineURL string
	client    *http.Client
	logger    *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(engineURL string, timeout time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		engineURL: strings.TrimRight(engineURL, "/"),
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type recommendRequest struct {
	UserQuery string `json:"user_query"`
	TopN      int    `json:"top_n,omitempty"`
}

// Recommend forwards the query to the engine. Upstream errors come back as
// 502 with the engine's body preserved; transport failures are 500.
func (h *Handler) Recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if strings.TrimSpace(req.UserQuery) == "" {
		response.BadRequest(c, "user_query is required")
		return
	}

	body, err := json.Marshal(req)
	if err != nil {
		response.Internal(c, "failed to encode request")
		return
	}
	upstream, err := http.NewRequestWithContext(c.Request.Context(),
		http.MethodPost, h.engineURL+"/recommend", bytes.NewReader(body))
	if err != nil {
		response.Internal(c, "failed to build upstream request")
		return
	}
	upstream.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(upstream)
	if err != nil {
		h.logger.Error("recommendation engine unreachable", zap.Error(err))
		response.Internal(c, "recommendation engine unreachable")
		return
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		h.logger.Error("read engine response", zap.Error(err))
		response.Internal(c, "failed to read engine response")
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		h.logger.Warn("recommendation engine error",
			zap.Int("upstream_status", resp.StatusCode))
		var detail interface{}
		if err := json.Unmarshal(payload, &detail); err != nil {
			detail = gin.H{"detail": string(payload)}
		}
		response.BadGateway(c, gin.H{
			"success":         false,
			"error":           "recommendation engine error",
			"upstream_status": resp.StatusCode,
			"upstream_body":   detail,
		})
		return
	}

	var data interface{}
	if err := json.Unmarshal(payload, &data); err != nil {
		h.logger.Error("decode engine response", zap.Error(err))
		response.Internal(c, "invalid engine response")
		return
	}
	response.OK(c, data)
}

// Health pings the engine. Returns 503 with the engine URL when it is down
// so operators can see at a glance which dependency failed.
func (h *Handler) Health(c *gin.Context) {
	req, err := http.NewRequestWithContext(c.Request.Context(),
		http.MethodGet, h.engineURL+"/health", nil)
	if err != nil {
		response.Internal(c, "failed to build health request")
		return
	}
	resp, err := h.client.Do(req)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success":     false,
			"error":       "recommendation engine unreachable",
			"service_url": h.engineURL,
		})
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success":     false,
			"error":       "recommendation engine unhealthy",
			"service_url": h.engineURL,
		})
		return
	}
	response.OK(c, gin.H{"engine": "ok"})
}
