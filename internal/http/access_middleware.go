package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mono-ai/aiproxy/internal/access"
	"github.com/mono-ai/aiproxy/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	ctxKeyToken = "token"
	ctxKeyGroup = "group"
)

// AccessAuthMiddleware authenticates the token key and injects the token and group.
func AccessAuthMiddleware(auth *access.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, authErr := auth.Authenticate(c.Request.Context(), c.Request)
		if authErr == nil {
			c.Set(ctxKeyToken, result.Token)
			c.Set(ctxKeyGroup, result.Group)
			c.Next()
			return
		}

		switch {
		case errors.Is(authErr, access.ErrNoCredentials):
			abortWithError(c, http.StatusUnauthorized, errTypeAuthentication, "Missing API key")
		case errors.Is(authErr, access.ErrInvalidCredential):
			abortWithError(c, http.StatusUnauthorized, errTypeAuthentication, "Invalid API key")
		case errors.Is(authErr, access.ErrGroupDisabled):
			abortWithError(c, http.StatusForbidden, errTypePermission, "Group is disabled")
		default:
			log.WithError(authErr).Error("access auth middleware error")
			abortWithError(c, http.StatusInternalServerError, errTypeInternal, "Authentication service error")
		}
	}
}

func tokenFromContext(c *gin.Context) *models.Token {
	if v, ok := c.Get(ctxKeyToken); ok {
		if token, okToken := v.(*models.Token); okToken {
			return token
		}
	}
	return nil
}

func groupFromContext(c *gin.Context) *models.Group {
	if v, ok := c.Get(ctxKeyGroup); ok {
		if group, okGroup := v.(*models.Group); okGroup {
			return group
		}
	}
	return nil
}
