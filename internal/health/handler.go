// Package health implements component M: a liveness/readiness endpoint.
// Trimmed from the teacher's dependency-checking handler: once the SFU
// and Redis subsystems are dropped (see DESIGN.md), there is no external
// dependency left for readiness to probe, so Liveness and Readiness both
// report the reactor's own running state.
package health

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler serves the liveness/readiness endpoints.
type Handler struct {
	ready atomic.Bool
}

// NewHandler constructs a Handler; call MarkReady once the reactor has
// started accepting connections.
func NewHandler() *Handler {
	return &Handler{}
}

// MarkReady flips the readiness flag on.
func (h *Handler) MarkReady() { h.ready.Store(true) }

// LivenessResponse is the `GET /healthz` payload.
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Liveness reports the process is alive. Always 200 once the handler is
// reachable.
func (h *Handler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness reports whether the reactor has finished starting up.
func (h *Handler) Readiness(c *gin.Context) {
	if !h.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, LivenessResponse{Status: "starting"})
		return
	}
	c.JSON(http.StatusOK, LivenessResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
