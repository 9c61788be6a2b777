package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/slamint/account-management/internal/core/domain"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// IdentityKey is the context key for the verified token identity
	IdentityKey = "identity"
	// ActorKey is the context key for the provisioned local user row
	ActorKey = "actor"
)

// EnrichContext adds a trace ID to each request and echoes it back in the
// response headers.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context.
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetActor retrieves the provisioned local row of the authenticated caller.
func GetActor(c *gin.Context) (domain.User, bool) {
	value, exists := c.Get(ActorKey)
	if !exists {
		return domain.User{}, false
	}
	actor, ok := value.(domain.User)
	return actor, ok
}
