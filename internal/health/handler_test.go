package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestReadinessReportsNotReadyUntilMarked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler()
	r := gin.New()
	r.GET("/readyz", h.Readiness)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	h.MarkReady()

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusOK, w2.Code)
}

func TestLivenessAlwaysOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler()
	r := gin.New()
	r.GET("/healthz", h.Liveness)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
