package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newRequestIDRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	router.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRequestIDHonorsInboundHeader(t *testing.T) {
	router := newRequestIDRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "portal-7f3a.42")
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "portal-7f3a.42" {
		t.Fatalf("expected inbound id echoed, got %q", got)
	}
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	router := newRequestIDRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	got := rec.Header().Get("X-Request-ID")
	if _, err := uuid.Parse(got); err != nil {
		t.Fatalf("expected generated UUID, got %q: %v", got, err)
	}
}

func TestRequestIDReplacesUnsafeHeader(t *testing.T) {
	router := newRequestIDRouter()

	cases := map[string]string{
		"control characters": "abc\r\ndef",
		"oversized":          strings.Repeat("a", 200),
		"spaces":             "not a valid id",
	}

	for name, inbound := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("X-Request-ID", inbound)
			router.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-ID")
			if got == inbound {
				t.Fatalf("unsafe id %q passed through", inbound)
			}
			if _, err := uuid.Parse(got); err != nil {
				t.Fatalf("expected replacement UUID, got %q: %v", got, err)
			}
		})
	}
}
