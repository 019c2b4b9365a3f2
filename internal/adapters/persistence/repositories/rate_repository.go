package repositories

import (
	"context"
	"time"

	"coop-ledger/internal/adapters/persistence/models"
	"coop-ledger/internal/core/domain"

	"gorm.io/gorm"
)

type rateRepository struct {
	db *gorm.DB
}

// NewRateRepository creates a new rate repository
func NewRateRepository(db *gorm.DB) RateRepository {
	return &rateRepository{db: db}
}

// Create creates a new rate
func (r *rateRepository) Create(ctx context.Context, rate *domain.Rate) error {
	m := models.FromDomainRate(rate)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return translate(err)
	}
	rate.CreatedAt, rate.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

// GetByID gets a rate by ID
func (r *rateRepository) GetByID(ctx context.Context, id string) (*domain.Rate, error) {
	var m models.Rate
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

// List is ordered by tenor length
func (r *rateRepository) List(ctx context.Context) ([]*domain.Rate, error) {
	var rows []models.Rate
	if err := r.db.WithContext(ctx).Order("months").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*domain.Rate, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Update updates a rate
func (r *rateRepository) Update(ctx context.Context, rate *domain.Rate) error {
	res := r.db.WithContext(ctx).Model(&models.Rate{}).Where("id = ?", rate.ID).
		Updates(map[string]interface{}{
			"months":               rate.Months,
			"monthly_rate_percent": rate.MonthlyRatePercent,
			"updated_at":           time.Now(),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete deletes a rate
func (r *rateRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Rate{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
