package repositories

import (
	"context"
	"time"

	"coop-ledger/internal/adapters/persistence/models"
	"coop-ledger/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type loanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates the GORM loan store
func NewLoanRepository(db *gorm.DB) LoanRepository {
	return &loanRepository{db: db}
}

// Create inserts the loan and its whole schedule in one transaction
func (r *loanRepository) Create(ctx context.Context, loan *domain.LoanAccount) error {
	now := time.Now()
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = now
	}
	loan.UpdatedAt = loan.CreatedAt

	m := models.FromDomainLoan(loan)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(m).Error; err != nil {
			return err
		}
		if len(m.Installments) == 0 {
			return nil
		}
		return tx.Create(&m.Installments).Error
	})
	return translate(err)
}

// GetByID gets a loan with its installments
func (r *loanRepository) GetByID(ctx context.Context, id string) (*domain.LoanAccount, error) {
	var m models.LoanAccount
	if err := r.db.WithContext(ctx).Preload("Installments").Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err)
	}
	return m.ToDomain(), nil
}

// List returns loans newest application first
func (r *loanRepository) List(ctx context.Context, filter LoanFilter) ([]*domain.LoanAccount, error) {
	q := r.db.WithContext(ctx).Preload("Installments")
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}

	var rows []models.LoanAccount
	if err := q.Order("applied_at DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return toDomainLoans(rows), nil
}

// ListOverdue returns approved loans with an unpaid installment due before asOf
func (r *loanRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.LoanAccount, error) {
	due := r.db.Model(&models.Installment{}).Select("loan_id").
		Where("status = ? AND due_date < ?", string(domain.InstallmentUnpaid), asOf)

	var rows []models.LoanAccount
	err := r.db.WithContext(ctx).Preload("Installments").
		Where("status = ?", string(domain.LoanApproved)).
		Where("id IN (?)", due).
		Order("applied_at").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err)
	}
	return toDomainLoans(rows), nil
}

// Apply runs fn against the locked loan and saves the result in one transaction
func (r *loanRepository) Apply(ctx context.Context, loanID string, fn LoanMutation) (*domain.LoanAccount, error) {
	var out *domain.LoanAccount

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.LoanAccount
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", loanID).First(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("loan_id = ?", row.ID).Find(&row.Installments).Error; err != nil {
			return err
		}

		current := row.ToDomain()
		next := current.Clone()
		if err := fn(next); err != nil {
			return mutationError{err}
		}
		next.UpdatedAt = time.Now()

		err := tx.Model(&models.LoanAccount{}).Where("id = ?", next.ID).Updates(map[string]interface{}{
			"status":     string(next.Status),
			"decided_at": next.DecidedAt,
			"decided_by": next.DecidedBy,
			"updated_at": next.UpdatedAt,
		}).Error
		if err != nil {
			return err
		}

		for id, inst := range next.Installments {
			if !installmentChanged(current.Installments[id], inst) {
				continue
			}
			err := tx.Model(&models.Installment{}).Where("id = ?", id).Updates(map[string]interface{}{
				"status":  string(inst.Status),
				"paid_at": inst.PaidAt,
				"paid_by": inst.PaidBy,
			}).Error
			if err != nil {
				return err
			}
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// Delete removes the loan and its installments
func (r *loanRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("loan_id = ?", id).Delete(&models.Installment{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.LoanAccount{}, "id = ?", id)
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

func toDomainLoans(rows []models.LoanAccount) []*domain.LoanAccount {
	out := make([]*domain.LoanAccount, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

func installmentChanged(a, b domain.Installment) bool {
	return a.Status != b.Status || !sameTime(a.PaidAt, b.PaidAt) || !sameString(a.PaidBy, b.PaidBy)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
