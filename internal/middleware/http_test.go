package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ECGOPS/OPSOMS-sub004/internal/service"
)

func TestHttpMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(HttpMiddleware())
	r.GET("/test", func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestTraceMiddleware_PropagatesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var seen string
	r.Use(TraceMiddleware())
	r.GET("/test", func(c *gin.Context) {
		seen = service.GetTraceID(c.Request.Context())
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Trace-ID", "trace-123")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Trace-ID"); got != "trace-123" {
		t.Errorf("expected trace id echoed back, got %q", got)
	}
	if seen != "trace-123" {
		t.Errorf("expected trace id on the request context, got %q", seen)
	}

	// With no inbound header one is generated
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/test", nil)
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Trace-ID") == "" {
		t.Error("expected a generated trace id")
	}
}
