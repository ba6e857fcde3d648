package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 3 * time.Second

// ReadinessCheck is one dependency probed by /health/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves liveness, readiness and runtime info.
type HealthHandler struct {
	*BaseHandler
	checks  []ReadinessCheck
	info    func() any
	started time.Time
}

// NewHealthHandler creates a health handler. info may be nil.
func NewHealthHandler(info func() any, checks ...ReadinessCheck) *HealthHandler {
	return &HealthHandler{
		BaseHandler: NewBaseHandler(),
		checks:      checks,
		info:        info,
		started:     time.Now(),
	}
}

// Live handles GET /health/live.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /health/ready. Any failing check answers 503.
func (h *HealthHandler) Ready(c *gin.Context) {
	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for _, chk := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		err := chk.Check(ctx)
		cancel()
		if err != nil {
			status = http.StatusServiceUnavailable
			results[chk.Name] = err.Error()
			continue
		}
		results[chk.Name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

// Info handles GET /health/info.
func (h *HealthHandler) Info(c *gin.Context) {
	resp := gin.H{"uptime": time.Since(h.started).Round(time.Second).String()}
	if h.info != nil {
		resp["runtime"] = h.info()
	}
	h.OK(c, resp)
}
