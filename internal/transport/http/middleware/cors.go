package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS applies cross-origin headers from the configured origin allowlist. An
// entry of "*" allows any origin; an empty list disables cross-origin access
// entirely, which is the right posture for deployments fronted by a gateway
// that terminates browser traffic.
func CORS(origins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(origins))
	wildcard := false
	for _, origin := range origins {
		if origin == "*" {
			wildcard = true
			continue
		}
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		switch {
		case wildcard:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Credentials", "true")
			}
		}

		if c.Request.Method == http.MethodOptions {
			// The API surface is GET/POST/PATCH only.
			c.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin,Content-Type,Accept,Authorization,X-Request-ID,X-Trace-ID")
			c.Header("Access-Control-Max-Age", "3600")

			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
