package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTraceIDContext(t *testing.T) {
	t.Run("adds provided trace ID to context", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "intent-trace-123")
		assert.Equal(t, "intent-trace-123", GetTraceID(ctx))
	})

	t.Run("generates new trace ID when empty string provided", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "")

		traceID := GetTraceID(ctx)
		assert.NotEmpty(t, traceID)
		assert.Len(t, traceID, 36, "generated trace IDs are UUIDs")
	})

	t.Run("preserves other context values", func(t *testing.T) {
		type testKey string
		key := testKey("test-key")

		ctx := context.WithValue(context.Background(), key, "test-value")
		ctx = WithTraceID(ctx, "trace-456")

		assert.Equal(t, "trace-456", GetTraceID(ctx))
		assert.Equal(t, "test-value", ctx.Value(key))
	})

	t.Run("child context can override trace ID", func(t *testing.T) {
		ctx1 := WithTraceID(context.Background(), "trace-1")
		ctx2 := WithTraceID(ctx1, "trace-2")

		assert.Equal(t, "trace-2", GetTraceID(ctx2))
		assert.Equal(t, "trace-1", GetTraceID(ctx1))
	})
}

func TestGetTraceID(t *testing.T) {
	t.Run("returns empty string when no trace ID in context", func(t *testing.T) {
		assert.Empty(t, GetTraceID(context.Background()))
	})

	t.Run("returns empty string when trace ID is wrong type", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), TraceIDKey, 12345)
		assert.Empty(t, GetTraceID(ctx))
	})
}

func TestNewTraceID(t *testing.T) {
	ids := make(map[string]bool)
	for range 100 {
		id := NewTraceID()
		assert.Len(t, id, 36)
		assert.False(t, ids[id], "duplicate ID generated: %s", id)
		ids[id] = true
	}
}

func traceMiddlewareRouter(capture *string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware())
	r.GET("/parties/p1", func(c *gin.Context) {
		*capture = GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})
	return r
}

func TestTraceMiddleware(t *testing.T) {
	t.Run("propagates trace ID from request header", func(t *testing.T) {
		var seen string
		r := traceMiddlewareRouter(&seen)

		req := httptest.NewRequest(http.MethodGet, "/parties/p1", nil)
		req.Header.Set("X-Trace-ID", "gateway-trace-789")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, "gateway-trace-789", seen, "handler must see the gateway's trace ID")
		assert.Equal(t, "gateway-trace-789", w.Header().Get("X-Trace-ID"))
	})

	t.Run("generates trace ID when header absent", func(t *testing.T) {
		var seen string
		r := traceMiddlewareRouter(&seen)

		req := httptest.NewRequest(http.MethodGet, "/parties/p1", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.NotEmpty(t, seen)
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get("X-Trace-ID"), "generated ID is echoed back to the gateway")
	})

	t.Run("each request gets its own trace ID", func(t *testing.T) {
		var seen string
		r := traceMiddlewareRouter(&seen)

		w1 := httptest.NewRecorder()
		r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/parties/p1", nil))
		first := w1.Header().Get("X-Trace-ID")

		w2 := httptest.NewRecorder()
		r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/parties/p1", nil))
		second := w2.Header().Get("X-Trace-ID")

		assert.NotEqual(t, first, second)
	})
}
