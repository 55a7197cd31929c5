package handler

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

var (
	healthy   = checkerFunc(func(context.Context) error { return nil })
	unhealthy = checkerFunc(func(context.Context) error { return stderrors.New("connection refused") })
)

func TestReady(t *testing.T) {
	tests := []struct {
		name     string
		required map[string]HealthChecker
		optional map[string]HealthChecker
		want     int
		redis    string
	}{
		{"all healthy", map[string]HealthChecker{"vector": healthy}, map[string]HealthChecker{"redis": healthy}, http.StatusOK, "ok"},
		{"redis down degrades", map[string]HealthChecker{"vector": healthy}, map[string]HealthChecker{"redis": unhealthy}, http.StatusOK, "degraded"},
		{"vector down", map[string]HealthChecker{"vector": unhealthy}, map[string]HealthChecker{"redis": healthy}, http.StatusServiceUnavailable, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gin.SetMode(gin.TestMode)
			e := gin.New()
			e.GET("/ready", NewHealthHandler("test", tt.required, tt.optional).Ready)

			w := httptest.NewRecorder()
			e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			assert.Equal(t, tt.want, w.Code)

			var resp readinessResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.redis, resp.Checks["redis"].Status)
		})
	}
}
