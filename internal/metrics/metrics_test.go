package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		want string
		code int
	}{
		{"none", 0},
		{"1xx", 100},
		{"2xx", 200},
		{"3xx", 301},
		{"4xx", 401},
		{"5xx", 503},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusBucket(tt.code), "code %d", tt.code)
	}
}

func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/metrics", Handler())

	ActiveStreamClients.Set(0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "fraudwatch_active_stream_clients")
}
