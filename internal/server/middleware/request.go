package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestContext assigns a request id (reusing a well-formed incoming X-Request-ID) and stores it
// with the client IP in the request context for services and the audit logger.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)
		c.Request = c.Request.WithContext(WithRequestInfo(c.Request.Context(), requestID, c.ClientIP()))
		c.Next()
	}
}

// requestID returns the id set by RequestContext.
func requestID(c *gin.Context) string {
	return c.GetString("request_id")
}
