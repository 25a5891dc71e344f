package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ynon123/geosamples/internal/logging"
)

// RequestIDHeader is echoed on every response.
const RequestIDHeader = "X-Request-ID"

// RequestID returns a Gin middleware that assigns each request an id: the
// inbound X-Request-ID header when present, a new UUIDv4 otherwise. The id
// is set on the response and stored, together with a logger tagged with it,
// in the request context so that zerolog.Ctx(ctx) lines carry request_id.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func RequestID(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = logging.NewRequestID()
		}

		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), base, id))

		c.Next()
	}
}
