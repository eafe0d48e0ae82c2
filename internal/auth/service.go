package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/certtrack-backend/pkg/auth"
	"github.com/angelmondragon/certtrack-backend/pkg/auth/session"
	"github.com/angelmondragon/certtrack-backend/pkg/config"
	"github.com/angelmondragon/certtrack-backend/pkg/db/models"
	"github.com/angelmondragon/certtrack-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/certtrack-backend/pkg/errors"
	"github.com/angelmondragon/certtrack-backend/pkg/logger"
	"github.com/angelmondragon/certtrack-backend/pkg/security"
)

type usersRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type sessionManager interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

type loginLimiter interface {
	AllowEmail(ctx context.Context, email string) (bool, error)
	AllowIP(ctx context.Context, ip string) (bool, error)
}

// Tokens is an issued access/refresh pair.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int
}

// LoginInput carries credentials plus the client address for rate limiting.
type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

// Service implements the session lifecycle: credential login, refresh token
// rotation, and logout. Failed logins are indistinguishable by cause.
type Service interface {
	Login(ctx context.Context, input LoginInput) (*Tokens, *models.User, error)
	Refresh(ctx context.Context, accessToken, refreshToken string) (*Tokens, error)
	Logout(ctx context.Context, accessID string) error
	CurrentUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	users    usersRepository
	sessions sessionManager
	limiter  loginLimiter
	jwtCfg   config.JWTConfig
	logg     *logger.Logger
}

// NewService builds the auth service.
func NewService(users usersRepository, sessions sessionManager, limiter loginLimiter, jwtCfg config.JWTConfig, logg *logger.Logger) (Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session manager required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("login rate limiter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{users: users, sessions: sessions, limiter: limiter, jwtCfg: jwtCfg, logg: logg}, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*Tokens, *models.User, error) {
	if err := s.checkRateLimits(ctx, input); err != nil {
		return nil, nil, err
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, invalidCredentials()
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if !user.IsActive {
		return nil, nil, invalidCredentials()
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, nil, invalidCredentials()
	}

	tokens, err := s.issueTokens(ctx, user, session.NewAccessID())
	if err != nil {
		return nil, nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logg.Warn(s.logg.WithUserID(ctx, user.ID.String()), "failed to stamp last login: "+err.Error())
	}
	return tokens, user, nil
}

func (s *service) Refresh(ctx context.Context, accessToken, refreshToken string) (*Tokens, error) {
	// The access token may be expired; only its signature and jti matter here.
	claims, err := auth.ParseAccessTokenAllowExpired(s.jwtCfg, accessToken)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	// Reload the user so refreshed tokens carry current roles and respect
	// deactivation.
	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	if !user.IsActive {
		if err := s.sessions.Revoke(ctx, newAccessID); err != nil {
			s.logg.Warn(ctx, "failed to revoke session of deactivated user: "+err.Error())
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}

	accessToken, err = s.mintAccess(user, newAccessID)
	if err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresIn:    s.jwtCfg.ExpirationMinutes * 60,
	}, nil
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

func (s *service) CurrentUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}
	return user, nil
}

func (s *service) checkRateLimits(ctx context.Context, input LoginInput) error {
	allowed, err := s.limiter.AllowEmail(ctx, input.Email)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check login rate limit")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, try again later")
	}
	allowed, err = s.limiter.AllowIP(ctx, input.ClientIP)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check login rate limit")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many login attempts, try again later")
	}
	return nil
}

func (s *service) issueTokens(ctx context.Context, user *models.User, accessID string) (*Tokens, error) {
	accessToken, err := s.mintAccess(user, accessID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session")
	}
	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.jwtCfg.ExpirationMinutes * 60,
	}, nil
}

func (s *service) mintAccess(user *models.User, accessID string) (string, error) {
	roles := make([]enums.UserRole, 0, len(user.Roles))
	for _, raw := range user.Roles {
		role, err := enums.ParseUserRole(raw)
		if err != nil {
			continue
		}
		roles = append(roles, role)
	}

	token, err := auth.MintAccessToken(s.jwtCfg, time.Now().UTC(), auth.AccessTokenPayload{
		UserID: user.ID,
		Roles:  roles,
		JTI:    accessID,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}
	return token, nil
}

func invalidCredentials() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid email or password")
}
