package repositories

import (
	"context"
	"errors"
	"time"

	"coop-ledger/internal/adapters/persistence/models"
	"coop-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type savingsRepository struct {
	db *gorm.DB
}

// NewSavingsRepository creates the GORM savings ledger
func NewSavingsRepository(db *gorm.DB) SavingsRepository {
	return &savingsRepository{db: db}
}

// GetByID gets an account with its entries
func (r *savingsRepository) GetByID(ctx context.Context, id string) (*domain.SavingsAccount, error) {
	var m models.SavingsAccount
	if err := r.db.WithContext(ctx).Preload("Entries").Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

// GetByMember gets the account owned by memberID
func (r *savingsRepository) GetByMember(ctx context.Context, memberID string) (*domain.SavingsAccount, error) {
	var m models.SavingsAccount
	if err := r.db.WithContext(ctx).Preload("Entries").Where("user_id = ?", memberID).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

// List returns every account
func (r *savingsRepository) List(ctx context.Context) ([]*domain.SavingsAccount, error) {
	var rows []models.SavingsAccount
	if err := r.db.WithContext(ctx).Preload("Entries").Order("created_at").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*domain.SavingsAccount, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Delete removes the account and its entries
func (r *savingsRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", id).Delete(&models.SavingsEntry{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.SavingsAccount{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	return translate(err)
}

// ApplyToMember locks (or opens) the member's account and saves fn's result atomically
func (r *savingsRepository) ApplyToMember(ctx context.Context, memberID string, fn SavingsMutation) (*domain.SavingsAccount, error) {
	return r.apply(ctx, "user_id = ?", memberID, true, fn)
}

// ApplyToAccount locks an existing account and saves fn's result atomically
func (r *savingsRepository) ApplyToAccount(ctx context.Context, accountID string, fn SavingsMutation) (*domain.SavingsAccount, error) {
	return r.apply(ctx, "id = ?", accountID, false, fn)
}

func (r *savingsRepository) apply(ctx context.Context, query, key string, create bool, fn SavingsMutation) (*domain.SavingsAccount, error) {
	var out *domain.SavingsAccount

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.SavingsAccount
		isNew := false

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where(query, key).First(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound) && create:
			isNew = true
			row = models.SavingsAccount{ID: uuid.NewString(), UserID: key, Total: decimal.Zero}
		case err != nil:
			return err
		default:
			if err := tx.Where("account_id = ?", row.ID).Find(&row.Entries).Error; err != nil {
				return err
			}
		}

		current := row.ToDomain()
		next := current.Clone()
		if err := fn(next); err != nil {
			return mutationError{err}
		}

		if err := writeSavings(tx, current, next, isNew); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// writeSavings persists the entry diff between prev and next plus the new total
func writeSavings(tx *gorm.DB, prev, next *domain.SavingsAccount, isNew bool) error {
	now := time.Now()
	if next.UpdatedAt.IsZero() || next.UpdatedAt.Equal(prev.UpdatedAt) {
		next.UpdatedAt = now
	}

	if isNew {
		if next.CreatedAt.IsZero() {
			next.CreatedAt = now
		}
		if err := tx.Omit(clause.Associations).Create(models.FromDomainSavings(next)).Error; err != nil {
			return err
		}
	} else {
		err := tx.Model(&models.SavingsAccount{}).Where("id = ?", next.ID).
			Updates(map[string]interface{}{"total": next.Total, "updated_at": next.UpdatedAt}).Error
		if err != nil {
			return err
		}
	}

	for id := range prev.Entries {
		if _, ok := next.Entries[id]; !ok {
			if err := tx.Delete(&models.SavingsEntry{}, "id = ?", id).Error; err != nil {
				return err
			}
		}
	}
	for id, e := range next.Entries {
		if _, ok := prev.Entries[id]; ok {
			continue
		}
		row := models.FromDomainSavingsEntry(next.ID, e)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}
