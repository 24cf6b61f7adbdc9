package logging

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mono-ai/aiproxy/internal/util"
	log "github.com/sirupsen/logrus"
)

// RequestIDHeader carries the gateway request id in both directions.
const RequestIDHeader = "X-Request-Id"

const ginRequestIDKey = "requestID"

// SetGinRequestID stores id on the gin context.
func SetGinRequestID(c *gin.Context, id string) {
	if c != nil {
		c.Set(ginRequestIDKey, id)
	}
}

// GetGinRequestID returns the request id stored on c, or "".
func GetGinRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if v, ok := c.Get(ginRequestIDKey); ok {
		if id, okString := v.(string); okString {
			return id
		}
	}
	return ""
}

// RequestID assigns every request an id, reusing a well-formed inbound header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		SetGinRequestID(c, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// GinLogger logs one line per request through logrus with secrets masked in the query and Authorization header.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		rawQuery := util.MaskSensitiveQuery(c.Request.URL.RawQuery)

		c.Next()

		if rawQuery != "" {
			path = path + "?" + rawQuery
		}
		status := c.Writer.Status()
		entry := log.WithFields(log.Fields{
			"request_id": GetGinRequestID(c),
			"status":     status,
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency":    time.Since(start).String(),
		})
		if auth := c.Request.Header.Get("Authorization"); auth != "" {
			entry = entry.WithField("authorization", util.MaskAuthorization(auth))
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			entry = entry.WithField("error", strings.TrimSpace(errs))
		}
		switch {
		case status >= 500:
			entry.Error("http request")
		case status >= 400:
			entry.Warn("http request")
		default:
			entry.Info("http request")
		}
	}
}
