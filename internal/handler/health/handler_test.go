package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestReadiness(t *testing.T) {
	reg := prometheus.NewRegistry()

	assert.Equal(t, http.StatusOK, serve(NewHandler(pinger{}, reg), "/api/v1/health/ready").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(NewHandler(pinger{err: errors.New("down")}, reg), "/api/v1/health/ready").Code)
	assert.Equal(t, http.StatusOK, serve(NewHandler(pinger{err: errors.New("down")}, reg), "/api/v1/health/live").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "careportal_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	w := serve(NewHandler(pinger{}, reg), "/api/v1/health/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "careportal_test_total 1")
}
