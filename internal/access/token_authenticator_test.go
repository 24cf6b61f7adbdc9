package access

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mono-ai/aiproxy/internal/db"
	"github.com/mono-ai/aiproxy/internal/models"
	"github.com/mono-ai/aiproxy/internal/store"
	"gorm.io/gorm"
)

func openAuthenticatorTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open(":memory:")
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() { _ = db.Close(conn) })
	return conn
}

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	conn := openAuthenticatorTestDB(t)
	past := time.Now().Add(-time.Hour)
	rows := []any{
		&models.Group{ID: "ns-ok", Status: models.GroupStatusEnabled},
		&models.Group{ID: "ns-off", Status: models.GroupStatusDisabled},
		&models.Token{GroupID: "ns-ok", Name: "app", Key: "sk-good", Status: models.TokenStatusEnabled},
		&models.Token{GroupID: "ns-ok", Name: "off", Key: "sk-disabled", Status: models.TokenStatusDisabled},
		&models.Token{GroupID: "ns-ok", Name: "old", Key: "sk-expired", Status: models.TokenStatusEnabled, ExpiredAt: &past},
		&models.Token{GroupID: "ns-off", Name: "app", Key: "sk-group-off", Status: models.TokenStatusEnabled},
	}
	for _, row := range rows {
		if err := conn.Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}
	return NewAuthenticator(store.New(conn))
}

func TestAuthenticatorRequiresCredentials(t *testing.T) {
	auth := newTestAuthenticator(t)
	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)

	_, authErr := auth.Authenticate(context.Background(), req)

	if !errors.Is(authErr, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", authErr)
	}
}

func TestAuthenticatorAcceptsBearerAndXAPIKey(t *testing.T) {
	auth := newTestAuthenticator(t)

	req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
	req.Header.Set("Authorization", "Bearer sk-good")
	result, authErr := auth.Authenticate(context.Background(), req)
	if authErr != nil {
		t.Fatalf("bearer: %v", authErr)
	}
	if result.Token.Name != "app" || result.Group.ID != "ns-ok" {
		t.Fatalf("unexpected result %+v", result)
	}

	req = httptest.NewRequest("POST", "/v1/messages", nil)
	req.Header.Set("x-api-key", "sk-good")
	if _, authErr = auth.Authenticate(context.Background(), req); authErr != nil {
		t.Fatalf("x-api-key: %v", authErr)
	}
}

func TestAuthenticatorRejectsUnusableTokens(t *testing.T) {
	auth := newTestAuthenticator(t)
	cases := map[string]error{
		"sk-unknown":   ErrInvalidCredential,
		"sk-disabled":  ErrInvalidCredential,
		"sk-expired":   ErrInvalidCredential,
		"sk-group-off": ErrGroupDisabled,
	}
	for key, want := range cases {
		req := httptest.NewRequest("POST", "/v1/chat/completions", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		if _, authErr := auth.Authenticate(context.Background(), req); !errors.Is(authErr, want) {
			t.Fatalf("key %s: expected %v, got %v", key, want, authErr)
		}
	}
}
