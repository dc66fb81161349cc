package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assist/internal/core/services"
	"assist/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(tokens *services.TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TracerMiddleware("test"), RequestLogger(logging.Nop()))
	r.GET("/me", AuthMiddleware(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, AccountID(c))
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tokens := services.NewTokenService("secret", "assist", time.Hour)
	r := newRouter(tokens)
	tok, err := tokens.GenerateToken("acc-42")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + tok, http.StatusUnauthorized, ""},
		{"garbage", "Bearer nope", http.StatusUnauthorized, ""},
		{"valid", "Bearer " + tok, http.StatusOK, "acc-42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, w.Body.String())
			}
			assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
		})
	}
}

func TestRequestLoggerKeepsIncomingRequestID(t *testing.T) {
	r := newRouter(services.NewTokenService("secret", "assist", time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
}
