package security

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccountRequester is the requester claim the account service expects from the gateway.
const AccountRequester = "sealos-admin"

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
	// ErrEmptySecret indicates no signing key was configured.
	ErrEmptySecret = errors.New("empty signing secret")
)

// AccountClaims defines the JWT claims presented to the account service.
type AccountClaims struct {
	Requester string `json:"requester"`
	jwt.RegisteredClaims
}

// signAccountToken signs the bearer token used against the account service.
// A zero expiry produces a token without an expiration claim.
func signAccountToken(secret string, now time.Time, expiry time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", ErrEmptySecret
	}
	now = now.UTC()
	claims := AccountClaims{
		Requester: AccountRequester,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if expiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(expiry))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseAccountToken validates an account-service JWT and returns its claims.
func ParseAccountToken(secret string, tokenString string) (*AccountClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccountClaims)
	if !ok || !token.Valid || claims.Requester != AccountRequester {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AccountTokenSource hands out account-service tokens, re-signing them before they expire.
type AccountTokenSource struct {
	secret string
	expiry time.Duration
	now    func() time.Time

	mu        sync.Mutex
	token     string
	refreshAt time.Time
}

// NewAccountTokenSource signs the first token eagerly so a bad secret fails at startup.
func NewAccountTokenSource(secret string, expiry time.Duration) (*AccountTokenSource, error) {
	src := &AccountTokenSource{secret: secret, expiry: expiry, now: time.Now}
	if _, err := src.Token(); err != nil {
		return nil, err
	}
	return src, nil
}

// Token returns the cached token, signing a new one once a fifth of its lifetime remains.
func (s *AccountTokenSource) Token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.token != "" && (s.expiry <= 0 || now.Before(s.refreshAt)) {
		return s.token, nil
	}
	token, err := signAccountToken(s.secret, now, s.expiry)
	if err != nil {
		return "", err
	}
	s.token = token
	s.refreshAt = now.Add(s.expiry - s.expiry/5)
	return token, nil
}
