package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oms/backend/internal/interfaces/http/dto"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// SystemHandler serves health and readiness probes
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	checkers  []HealthChecker
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(checkers ...HealthChecker) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		checkers:  checkers,
	}
}

// HealthResponse represents the health probe response
type HealthResponse struct {
	Status    string `json:"status"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// Health handles GET /health: liveness only, no dependency checks
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(HealthResponse{
		Status:    "ok",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}))
}

// ReadyResponse represents the readiness probe response
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Ready handles GET /ready: pings every registered dependency and
// answers 503 if any is down
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string, len(h.checkers))
	healthy := true
	for _, checker := range h.checkers {
		if err := checker.Ping(ctx); err != nil {
			checks[checker.Name()] = err.Error()
			healthy = false
		} else {
			checks[checker.Name()] = "ok"
		}
	}

	resp := ReadyResponse{Status: "ready", Checks: checks}
	if !healthy {
		resp.Status = "degraded"
		c.JSON(http.StatusServiceUnavailable, dto.NewSuccessResponse(resp))
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}
