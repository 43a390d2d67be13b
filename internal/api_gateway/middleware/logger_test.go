package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(status int) string {
		var logBuffer bytes.Buffer
		testLogger := slog.New(slog.NewJSONHandler(&logBuffer, &slog.HandlerOptions{Level: slog.LevelInfo}))

		router := gin.New()
		router.Use(CorrelationID())
		router.Use(Identity())
		router.Use(Logger(testLogger))
		router.GET("/api/v1/products/:id", func(c *gin.Context) {
			c.Status(status)
		})

		req, _ := http.NewRequest(http.MethodGet, "/api/v1/products/p1?from=x", nil)
		req.Header.Set("User-Agent", "scanner")
		req.Header.Set(CorrelationIDHeader, "corr-1")
		req.Header.Set(ActorIDHeader, "producer-1")
		req.Header.Set(ActorRoleHeader, "producer")
		router.ServeHTTP(httptest.NewRecorder(), req)
		return logBuffer.String()
	}

	t.Run("LogsRequestDetails", func(t *testing.T) {
		logOutput := serve(http.StatusOK)

		assert.Contains(t, logOutput, `"level":"INFO"`)
		assert.Contains(t, logOutput, `"msg":"HTTP request"`)
		assert.Contains(t, logOutput, `"method":"GET"`)
		assert.Contains(t, logOutput, `"path":"/api/v1/products/p1?from=x"`)
		assert.Contains(t, logOutput, `"status":200`)
		assert.Contains(t, logOutput, `"user_agent":"scanner"`)
		assert.Contains(t, logOutput, `"correlation_id":"corr-1"`)
		assert.Contains(t, logOutput, `"actor_id":"producer-1"`)
		assert.Contains(t, logOutput, `"actor_role":"producer"`)
	})

	t.Run("ClientErrorsLogAtWarn", func(t *testing.T) {
		assert.Contains(t, serve(http.StatusConflict), `"level":"WARN"`)
	})

	t.Run("ServerErrorsLogAtError", func(t *testing.T) {
		assert.Contains(t, serve(http.StatusServiceUnavailable), `"level":"ERROR"`)
	})
}
