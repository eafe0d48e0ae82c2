package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/certtrack-backend/api/middleware"
	"github.com/angelmondragon/certtrack-backend/internal/auth"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
)

type stubAuthService struct {
	tokens     *auth.Tokens
	user       *models.User
	loginErr   error
	refreshErr error
	logoutErr  error

	loggedOut string
}

func (s *stubAuthService) Login(_ context.Context, _ auth.LoginInput) (*auth.Tokens, *models.User, error) {
	return s.tokens, s.user, s.loginErr
}

func (s *stubAuthService) Refresh(_ context.Context, _, _ string) (*auth.Tokens, error) {
	return s.tokens, s.refreshErr
}

func (s *stubAuthService) Logout(_ context.Context, accessID string) error {
	s.loggedOut = accessID
	return s.logoutErr
}

func (s *stubAuthService) CurrentUser(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return s.user, nil
}

func TestAuthLoginSuccess(t *testing.T) {
	svc := &stubAuthService{
		tokens: &auth.Tokens{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900},
		user:   &models.User{ID: uuid.New(), Email: "contact@example.com", FirstName: "Pat", LastName: "Doe"},
	}
	handler := AuthLogin(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/auth/login",
		[]byte(`{"email":"contact@example.com","password":"hunter2!"}`), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data struct {
			Tokens tokenResponse `json:"tokens"`
			User   struct {
				Email string `json:"email"`
				Name  string `json:"name"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Tokens.TokenType != "Bearer" {
		t.Fatalf("expected Bearer token type got %q", envelope.Data.Tokens.TokenType)
	}
	if envelope.Data.Tokens.ExpiresIn != 900 {
		t.Fatalf("expected expires_in 900 got %d", envelope.Data.Tokens.ExpiresIn)
	}
	if envelope.Data.User.Name != "Pat Doe" {
		t.Fatalf("unexpected display name %q", envelope.Data.User.Name)
	}
}

func TestAuthLoginRejectsMalformedEmail(t *testing.T) {
	handler := AuthLogin(&stubAuthService{}, nil)

	req := authedRequest(http.MethodPost, "/api/v1/auth/login",
		[]byte(`{"email":"not-an-email","password":"x"}`), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAuthLoginBadCredentials(t *testing.T) {
	handler := AuthLogin(&stubAuthService{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")}, nil)

	req := authedRequest(http.MethodPost, "/api/v1/auth/login",
		[]byte(`{"email":"contact@example.com","password":"wrong"}`), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthRefreshSuccess(t *testing.T) {
	svc := &stubAuthService{tokens: &auth.Tokens{AccessToken: "rotated", RefreshToken: "next", ExpiresIn: 900}}
	handler := AuthRefresh(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/auth/refresh",
		[]byte(`{"access_token":"stale","refresh_token":"current"}`), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var envelope struct {
		Data tokenResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.AccessToken != "rotated" || envelope.Data.RefreshToken != "next" {
		t.Fatalf("unexpected tokens %+v", envelope.Data)
	}
}

func TestAuthRefreshRejected(t *testing.T) {
	handler := AuthRefresh(&stubAuthService{refreshErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")}, nil)

	req := authedRequest(http.MethodPost, "/api/v1/auth/refresh",
		[]byte(`{"access_token":"stale","refresh_token":"forged"}`), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestAuthLogoutRevokesSession(t *testing.T) {
	svc := &stubAuthService{}
	handler := AuthLogout(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req = req.WithContext(middleware.WithAccessID(req.Context(), "session-jti"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.loggedOut != "session-jti" {
		t.Fatalf("expected session-jti revoked, got %q", svc.loggedOut)
	}
}

func TestAuthLogoutWithoutSessionContext(t *testing.T) {
	handler := AuthLogout(&stubAuthService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}
