package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout returns a Gin middleware that puts a deadline on the request
// context. Handlers run synchronously on the request goroutine; every store
// call receives the context, so a pending query or ingestion transaction is
// abandoned (and rolled back) once the deadline passes.
//
// If the deadline fired and the handler returned without writing anything,
// a 503 is sent. A handler blocked on something that ignores its context
// cannot be interrupted.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if ctx.Err() != nil && !c.Writer.Written() {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "request timed out",
			})
		}
	}
}
