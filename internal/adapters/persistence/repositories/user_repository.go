package repositories

import (
	"context"

	"coop-ledger/internal/adapters/persistence/models"
	"coop-ledger/internal/core/domain"

	"gorm.io/gorm"
)

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	m := models.FromDomainUser(user)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return translate(err)
	}
	user.CreatedAt, user.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// GetByID gets a user by ID
func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var m models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

// GetByUsername gets a user by username
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var m models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

// Update updates a user
func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	m := models.FromDomainUser(user)
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Select("*").Omit("id", "created_at").Updates(m)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a user
func (r *userRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List lists users with pagination
func (r *userRepository) List(ctx context.Context, offset, limit int) ([]*domain.User, int64, error) {
	var rows []models.User
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}
	if err := r.db.WithContext(ctx).Order("username").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, translate(err)
	}

	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].ToDomain())
	}
	return users, total, nil
}

// ExistsByUsername checks if a username is taken
func (r *userRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	return count > 0, translate(err)
}

// CountByRole counts users with role
func (r *userRepository) CountByRole(ctx context.Context, role domain.Role) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", string(role)).Count(&count).Error
	return count, translate(err)
}
