package repositories

import (
	"context"
	"time"

	"coop-ledger/internal/core/domain"

	"gorm.io/gorm"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, offset, limit int) ([]*domain.User, int64, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	CountByRole(ctx context.Context, role domain.Role) (int64, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) error
}

// RateRepository stores the tenor/rate table
type RateRepository interface {
	Create(ctx context.Context, rate *domain.Rate) error
	GetByID(ctx context.Context, id string) (*domain.Rate, error)
	List(ctx context.Context) ([]*domain.Rate, error)
	Update(ctx context.Context, rate *domain.Rate) error
	Delete(ctx context.Context, id string) error
}

// SavingsMutation changes an account in place. Returning an error discards the change.
type SavingsMutation func(acct *domain.SavingsAccount) error

// SavingsRepository stores savings accounts with their entry logs.
// ApplyToMember and ApplyToAccount are atomic read-modify-write operations:
// concurrent calls on the same account are serialized and a failing mutation
// writes nothing.
type SavingsRepository interface {
	GetByID(ctx context.Context, id string) (*domain.SavingsAccount, error)
	GetByMember(ctx context.Context, memberID string) (*domain.SavingsAccount, error)
	List(ctx context.Context) ([]*domain.SavingsAccount, error)
	Delete(ctx context.Context, id string) error

	// ApplyToMember runs fn on the member's account, creating an empty one
	// (persisted only if fn succeeds) when the member has none.
	ApplyToMember(ctx context.Context, memberID string, fn SavingsMutation) (*domain.SavingsAccount, error)
	ApplyToAccount(ctx context.Context, accountID string, fn SavingsMutation) (*domain.SavingsAccount, error)
}

// LoanMutation changes a loan in place. Returning an error discards the change.
type LoanMutation func(loan *domain.LoanAccount) error

// LoanFilter narrows List. Zero values match everything.
type LoanFilter struct {
	Status domain.LoanStatus
	UserID string
}

// LoanRepository stores loans with their installment schedules
type LoanRepository interface {
	Create(ctx context.Context, loan *domain.LoanAccount) error
	GetByID(ctx context.Context, id string) (*domain.LoanAccount, error)
	List(ctx context.Context, filter LoanFilter) ([]*domain.LoanAccount, error)
	Apply(ctx context.Context, loanID string, fn LoanMutation) (*domain.LoanAccount, error)
	Delete(ctx context.Context, id string) error

	// ListOverdue returns approved loans holding at least one unpaid
	// installment due before asOf. Installments are fully loaded.
	ListOverdue(ctx context.Context, asOf time.Time) ([]*domain.LoanAccount, error)
}

// Store bundles every repository over one backend
type Store struct {
	Users         UserRepository
	RefreshTokens RefreshTokenRepository
	Rates         RateRepository
	Savings       SavingsRepository
	Loans         LoanRepository
}

// NewStore wires every GORM repository over db
func NewStore(db *gorm.DB) *Store {
	return &Store{
		Users:         NewUserRepository(db),
		RefreshTokens: NewRefreshTokenRepository(db),
		Rates:         NewRateRepository(db),
		Savings:       NewSavingsRepository(db),
		Loans:         NewLoanRepository(db),
	}
}
