package repositories

import (
	"context"
	"time"

	"coop-ledger/internal/adapters/persistence/models"
	"coop-ledger/internal/core/domain"

	"gorm.io/gorm"
)

// refreshTokenRepository implements RefreshTokenRepository interface
type refreshTokenRepository struct {
	db *gorm.DB
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

// Create stores a new refresh token
func (r *refreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	return translate(r.db.WithContext(ctx).Create(models.FromDomainRefreshToken(token)).Error)
}

// GetByTokenHash returns a live (not revoked) token
func (r *refreshTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	var m models.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		Where("revoked_at IS NULL").
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

// Revoke marks a token as revoked
func (r *refreshTokenRepository) Revoke(ctx context.Context, id string) error {
	now := time.Now()
	return translate(r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("id = ?", id).
		Update("revoked_at", &now).Error)
}

// RevokeByTokenHash revokes the token with the given hash
func (r *refreshTokenRepository) RevokeByTokenHash(ctx context.Context, tokenHash string) error {
	now := time.Now()
	return translate(r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked_at", &now).Error)
}

// RevokeAllByUserID revokes every active token of a user
func (r *refreshTokenRepository) RevokeAllByUserID(ctx context.Context, userID string) error {
	now := time.Now()
	return translate(r.db.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("user_id = ?", userID).
		Where("revoked_at IS NULL").
		Update("revoked_at", &now).Error)
}

// DeleteExpired is the cleanup job
func (r *refreshTokenRepository) DeleteExpired(ctx context.Context, now time.Time) error {
	return translate(r.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.RefreshToken{}).Error)
}
