package http

import (
	"github.com/gin-gonic/gin"
)

// Error types carried in the response envelope.
const (
	errTypeInvalidRequest = "invalid_request_error"
	errTypeAuthentication = "authentication_error"
	errTypePermission     = "permission_error"
	errTypeInsufficient   = "insufficient_quota"
	errTypeNotFound       = "not_found_error"
	errTypeUnavailable    = "service_unavailable_error"
	errTypeUpstream       = "upstream_error"
	errTypeTimeout        = "timeout_error"
	errTypeInternal       = "internal_error"
)

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// abortWithError writes an OpenAI-style error envelope and stops the handler chain.
func abortWithError(c *gin.Context, status int, errType, message string) {
	c.AbortWithStatusJSON(status, errorEnvelope{Error: errorBody{Message: message, Type: errType}})
}
