package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgauth "github.com/angelmondragon/certtrack-backend/pkg/auth"
	"github.com/angelmondragon/certtrack-backend/pkg/config"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

var testJWTConfig = config.JWTConfig{
	Secret:            "test-secret",
	Issuer:            "certtrack-test",
	ExpirationMinutes: 15,
}

type fakeSessionChecker struct {
	active map[string]bool
}

func (f *fakeSessionChecker) HasSession(_ context.Context, accessID string) (bool, error) {
	return f.active[accessID], nil
}

type fakeUserLoader struct {
	user *models.User
}

func (f *fakeUserLoader) CurrentUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	return f.user, nil
}

func mintToken(t *testing.T, userID uuid.UUID, jti string) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testJWTConfig, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: userID,
		Roles:  []enums.UserRole{enums.UserRoleAdmin},
		JTI:    jti,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func authedHandler(t *testing.T, sessions *fakeSessionChecker, users *fakeUserLoader) http.Handler {
	t.Helper()
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			t.Fatal("expected user in context")
		}
		if AccessIDFromContext(r.Context()) == "" {
			t.Fatal("expected access id in context")
		}
		w.WriteHeader(http.StatusOK)
	})
	return Auth(testJWTConfig, sessions, users, nil)(inner)
}

func TestAuthAcceptsValidBearerToken(t *testing.T) {
	user := &models.User{ID: uuid.New(), IsActive: true, Roles: pq.StringArray{"admin"}}
	jti := uuid.NewString()
	handler := authedHandler(t,
		&fakeSessionChecker{active: map[string]bool{jti: true}},
		&fakeUserLoader{user: user})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certificates", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, user.ID, jti))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	handler := authedHandler(t, &fakeSessionChecker{}, &fakeUserLoader{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certificates", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	user := &models.User{ID: uuid.New(), IsActive: true}
	jti := uuid.NewString()
	handler := authedHandler(t,
		&fakeSessionChecker{active: map[string]bool{}},
		&fakeUserLoader{user: user})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certificates", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, user.ID, jti))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for revoked session, got %d", rec.Code)
	}
}

func TestAuthRejectsDeactivatedUser(t *testing.T) {
	user := &models.User{ID: uuid.New(), IsActive: false}
	jti := uuid.NewString()
	handler := authedHandler(t,
		&fakeSessionChecker{active: map[string]bool{jti: true}},
		&fakeUserLoader{user: user})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certificates", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, user.ID, jti))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deactivated user, got %d", rec.Code)
	}
}

func TestRequireAdmin(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAdmin(nil)(inner)

	contact := &models.User{ID: uuid.New(), IsActive: true}
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/certificates/register", nil)
	req = req.WithContext(WithUser(req.Context(), contact))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for contact, got %d", rec.Code)
	}

	admin := &models.User{ID: uuid.New(), IsActive: true, Roles: pq.StringArray{"admin"}}
	req = httptest.NewRequest(http.MethodPost, "/api/admin/v1/certificates/register", nil)
	req = req.WithContext(WithUser(req.Context(), admin))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
}

func TestAuthTestHandlerNotCalledOnFailure(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	})
	handler := Auth(testJWTConfig, &fakeSessionChecker{}, &fakeUserLoader{}, nil)(inner)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/certificates", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Fatal("handler must not run for invalid token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
