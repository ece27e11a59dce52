package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farewatch/internal/broker"
	"farewatch/internal/logger"
	"farewatch/pkg/health"
)

type stubInspector struct {
	depth uint64
	err   error
	asked string
}

func (s *stubInspector) QueueDepth(_ context.Context, name string) (uint64, error) {
	s.asked = name
	return s.depth, s.err
}

type stubConn struct{ connected bool }

func (s stubConn) Connected() bool { return s.connected }
func (s stubConn) Name() string    { return "FlightPricesQueue" }

func newTestRouter(inspector QueueInspector, connected bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	checks := health.NewCheckerRegistry()
	checks.RegisterOptional(health.NewBrokerChecker(stubConn{connected: connected}))
	return NewRouter("farewatch", checks, logger.NopLogger(),
		NewQueueHandler(inspector, "FlightPricesQueue", logger.NopLogger()),
	)
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestQueueDepth(t *testing.T) {
	inspector := &stubInspector{depth: 42}
	rec := get(t, newTestRouter(inspector, true), "/api/v1/queue/depth")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 42, body["queueDepth"])
	assert.Equal(t, "FlightPricesQueue", inspector.asked)

	get(t, newTestRouter(inspector, true), "/api/v1/queue/depth?name=Other")
	assert.Equal(t, "Other", inspector.asked)
}

func TestQueueDepth_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"degraded", &broker.QueryError{Queue: "q", Err: broker.ErrConnection}, http.StatusServiceUnavailable},
		{"missing queue", &broker.QueryError{Queue: "q", Err: broker.ErrQueueNotFound}, http.StatusNotFound},
		{"other", errors.New("unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestRouter(&stubInspector{err: tt.err}, true), "/api/v1/queue/depth")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHealth_DegradedBrokerStillServes(t *testing.T) {
	rec := get(t, newTestRouter(&stubInspector{}, false), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	var h health.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	assert.Equal(t, health.StatusDegraded, h.Status)
	assert.Equal(t, health.StatusDegraded, h.Checks["broker"].Status)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestRouter(&stubInspector{}, true), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
