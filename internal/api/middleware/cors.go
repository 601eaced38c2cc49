// Package middleware holds the cross-cutting HTTP concerns of the admin
// surface: cross-origin policy and per-client rate limiting.
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS returns the cross-origin policy for the sandbox daemon. The
// surface is an operator tool driving mounts and script execution, not a
// browser-facing API, so the policy stays permissive: any origin, the
// verbs the routes actually use, and a small header set.
func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Accept",
			"Origin",
			"Authorization",
		},
		MaxAge: 12 * time.Hour,
	})
}
