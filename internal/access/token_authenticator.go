// Package access authenticates gateway callers by token key.
package access

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/mono-ai/aiproxy/internal/store"
	"github.com/mono-ai/aiproxy/internal/util"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrNoCredentials indicates the request carried no token key.
	ErrNoCredentials = errors.New("access: missing credentials")
	// ErrInvalidCredential indicates the key is unknown, disabled or expired.
	ErrInvalidCredential = errors.New("access: invalid credential")
	// ErrGroupDisabled indicates the token's group is missing or disabled.
	ErrGroupDisabled = errors.New("access: group disabled")
)

// Directory resolves tokens and their groups.
type Directory interface {
	GetTokenByKey(ctx context.Context, key string) (*models.Token, error)
	GetGroup(ctx context.Context, id string) (*models.Group, error)
}

// Result is an authenticated caller.
type Result struct {
	Token *models.Token
	Group *models.Group
}

// Authenticator checks token keys presented in Authorization or x-api-key headers.
type Authenticator struct {
	directory    Directory
	header       string
	scheme       string
	allowXAPIKey bool
	now          func() time.Time
}

// NewAuthenticator creates an authenticator reading "Authorization: Bearer <key>" or "x-api-key".
func NewAuthenticator(directory Directory) *Authenticator {
	return &Authenticator{
		directory:    directory,
		header:       "Authorization",
		scheme:       "Bearer",
		allowXAPIKey: true,
		now:          time.Now,
	}
}

// Authenticate resolves the request's token and group.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Result, error) {
	if a == nil || a.directory == nil || r == nil {
		return nil, errors.New("access: authenticator not configured")
	}

	key := extractToken(r, a.header, a.scheme, a.allowXAPIKey)
	if key == "" {
		return nil, ErrNoCredentials
	}

	token, errToken := a.directory.GetTokenByKey(ctx, key)
	switch {
	case errToken == nil:
	case errors.Is(errToken, store.ErrNotFound):
		log.WithField("key", util.HideAPIKey(key)).Debug("access: unknown token key")
		return nil, ErrInvalidCredential
	default:
		return nil, fmt.Errorf("access: token lookup failed: %w", errToken)
	}
	if !token.Usable(a.now()) {
		return nil, ErrInvalidCredential
	}

	group, errGroup := a.directory.GetGroup(ctx, token.GroupID)
	switch {
	case errGroup == nil:
	case errors.Is(errGroup, store.ErrNotFound):
		return nil, ErrGroupDisabled
	default:
		return nil, fmt.Errorf("access: group lookup failed: %w", errGroup)
	}
	if !group.Enabled() {
		return nil, ErrGroupDisabled
	}

	return &Result{Token: token, Group: group}, nil
}

// extractToken reads the key from the configured header, then x-api-key.
func extractToken(r *http.Request, header string, scheme string, allowXAPIKey bool) string {
	if header == "" {
		header = "Authorization"
	}
	val := strings.TrimSpace(r.Header.Get(header))
	if val != "" && scheme != "" {
		prefix := scheme + " "
		if len(val) > len(prefix) && strings.EqualFold(val[:len(prefix)], prefix) {
			return strings.TrimSpace(val[len(prefix):])
		}
	}
	if val != "" && scheme == "" {
		return val
	}
	if allowXAPIKey {
		if v := strings.TrimSpace(r.Header.Get("X-API-Key")); v != "" {
			return v
		}
	}
	return ""
}
