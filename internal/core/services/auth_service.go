package services

import (
	"context"
	"errors"
	"log"
	"time"

	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/pkg/jwt"
	"coop-ledger/internal/pkg/password"

	"github.com/google/uuid"
)

// Auth errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrUserInactive = errors.New("user account is inactive")
)

// AuthService handles authentication business logic
type AuthService struct {
	userRepo         repositories.UserRepository
	refreshTokenRepo repositories.RefreshTokenRepository
	signer           *jwt.Signer
	now              func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repositories.UserRepository,
	refreshTokenRepo repositories.RefreshTokenRepository,
	signer *jwt.Signer,
) *AuthService {
	return &AuthService{
		userRepo:         userRepo,
		refreshTokenRepo: refreshTokenRepo,
		signer:           signer,
		now:              time.Now,
	}
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User         *UserResponse `json:"user"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
}

// Login authenticates a user
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredential
		}
		return nil, err
	}

	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredential
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ User logged in: %s", user.Username)
	return resp, nil
}

// RefreshToken rotates the refresh token and issues a new access token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.signer.ParseRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	stored, err := s.refreshTokenRepo.GetByTokenHash(ctx, password.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrTokenRevoked
		}
		return nil, err
	}
	if stored.IsRevoked() {
		return nil, ErrTokenRevoked
	}
	if stored.IsExpired(s.now()) {
		return nil, ErrTokenExpired
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	if err := s.refreshTokenRepo.Revoke(ctx, stored.ID); err != nil {
		return nil, err
	}

	resp, err := s.issue(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Token refreshed for user: %s", user.Username)
	return resp, nil
}

// Logout revokes the refresh token
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if err := s.refreshTokenRepo.RevokeByTokenHash(ctx, password.HashToken(refreshToken)); err != nil {
		return err
	}
	log.Printf("✅ User logged out")
	return nil
}

// LogoutAll revokes every refresh token of a user
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.refreshTokenRepo.RevokeAllByUserID(ctx, userID); err != nil {
		return err
	}
	log.Printf("✅ All sessions revoked for user ID: %s", userID)
	return nil
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	return s.signer.ParseAccess(accessToken)
}

// Me returns the caller's own user record
func (s *AuthService) Me(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return NewUserResponse(user), nil
}

// CleanupExpired drops refresh tokens past expiry
func (s *AuthService) CleanupExpired(ctx context.Context) error {
	return s.refreshTokenRepo.DeleteExpired(ctx, s.now())
}

func (s *AuthService) issue(ctx context.Context, user *domain.User) (*AuthResponse, error) {
	access, err := s.signer.AccessToken(user.ID, user.Username, string(user.Role))
	if err != nil {
		return nil, err
	}

	tokenID := uuid.NewString()
	refresh, err := s.signer.RefreshToken(user.ID, tokenID)
	if err != nil {
		return nil, err
	}

	err = s.refreshTokenRepo.Create(ctx, &domain.RefreshToken{
		ID:        tokenID,
		UserID:    user.ID,
		TokenHash: password.HashToken(refresh),
		ExpiresAt: s.signer.RefreshExpiry(),
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         NewUserResponse(user),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}
