// Package memory is an in-process ledger store for demos and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Memory holds every table behind one lock.
// Records are copied on the way in and out so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	tokens   map[string]domain.RefreshToken
	rates    map[string]domain.Rate
	savings  map[string]*domain.SavingsAccount
	byMember map[string]string // member id -> savings account id
	loans    map[string]*domain.LoanAccount
	now      func() time.Time
}

// New returns an empty in-memory store
func New() *Memory {
	return &Memory{
		users:    make(map[string]domain.User),
		tokens:   make(map[string]domain.RefreshToken),
		rates:    make(map[string]domain.Rate),
		savings:  make(map[string]*domain.SavingsAccount),
		byMember: make(map[string]string),
		loans:    make(map[string]*domain.LoanAccount),
		now:      time.Now,
	}
}

// Store exposes m through the repository interfaces
func (m *Memory) Store() *repositories.Store {
	return &repositories.Store{
		Users:         userRepo{m},
		RefreshTokens: tokenRepo{m},
		Rates:         rateRepo{m},
		Savings:       savingsRepo{m},
		Loans:         loanRepo{m},
	}
}

// =============================================================================
// USERS
// =============================================================================

type userRepo struct{ m *Memory }

func copyUser(u domain.User) *domain.User {
	if u.Profile != nil {
		p := *u.Profile
		u.Profile = &p
	}
	return &u
}

func (r userRepo) Create(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[user.ID]; ok {
		return domain.ErrDuplicate
	}
	for _, u := range r.m.users {
		if u.Username == user.Username {
			return domain.ErrDuplicate
		}
	}
	now := r.m.now()
	user.CreatedAt, user.UpdatedAt = now, now
	r.m.users[user.ID] = *copyUser(*user)
	return nil
}

func (r userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := r.m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyUser(u), nil
}

func (r userRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, u := range r.m.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r userRepo) Update(_ context.Context, user *domain.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	old, ok := r.m.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for id, u := range r.m.users {
		if id != user.ID && u.Username == user.Username {
			return domain.ErrDuplicate
		}
	}
	user.CreatedAt = old.CreatedAt
	user.UpdatedAt = r.m.now()
	r.m.users[user.ID] = *copyUser(*user)
	return nil
}

func (r userRepo) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.m.users, id)
	return nil
}

func (r userRepo) List(_ context.Context, offset, limit int) ([]*domain.User, int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	all := make([]*domain.User, 0, len(r.m.users))
	for _, u := range r.m.users {
		all = append(all, copyUser(u))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })

	total := int64(len(all))
	if offset >= len(all) {
		return []*domain.User{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (r userRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	return err == nil, nil
}

func (r userRepo) CountByRole(_ context.Context, role domain.Role) (int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	var n int64
	for _, u := range r.m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// REFRESH TOKENS
// =============================================================================

type tokenRepo struct{ m *Memory }

func (r tokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.m.now()
	}
	r.m.tokens[token.ID] = *token
	return nil
}

func (r tokenRepo) GetByTokenHash(_ context.Context, tokenHash string) (*domain.RefreshToken, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	for _, t := range r.m.tokens {
		if t.TokenHash == tokenHash && t.RevokedAt == nil {
			tok := t
			return &tok, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r tokenRepo) revokeWhere(match func(domain.RefreshToken) bool) {
	now := r.m.now()
	for id, t := range r.m.tokens {
		if match(t) && t.RevokedAt == nil {
			t.RevokedAt = &now
			r.m.tokens[id] = t
		}
	}
}

func (r tokenRepo) Revoke(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.revokeWhere(func(t domain.RefreshToken) bool { return t.ID == id })
	return nil
}

func (r tokenRepo) RevokeByTokenHash(_ context.Context, tokenHash string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.revokeWhere(func(t domain.RefreshToken) bool { return t.TokenHash == tokenHash })
	return nil
}

func (r tokenRepo) RevokeAllByUserID(_ context.Context, userID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.revokeWhere(func(t domain.RefreshToken) bool { return t.UserID == userID })
	return nil
}

func (r tokenRepo) DeleteExpired(_ context.Context, now time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, t := range r.m.tokens {
		if t.ExpiresAt.Before(now) {
			delete(r.m.tokens, id)
		}
	}
	return nil
}

// =============================================================================
// RATES
// =============================================================================

type rateRepo struct{ m *Memory }

func (r rateRepo) Create(_ context.Context, rate *domain.Rate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, existing := range r.m.rates {
		if existing.Months == rate.Months || existing.ID == rate.ID {
			return domain.ErrDuplicate
		}
	}
	now := r.m.now()
	rate.CreatedAt, rate.UpdatedAt = now, now
	r.m.rates[rate.ID] = *rate
	return nil
}

func (r rateRepo) GetByID(_ context.Context, id string) (*domain.Rate, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	rate, ok := r.m.rates[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rate, nil
}

func (r rateRepo) List(_ context.Context) ([]*domain.Rate, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]*domain.Rate, 0, len(r.m.rates))
	for _, rate := range r.m.rates {
		rate := rate
		out = append(out, &rate)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Months < out[j].Months })
	return out, nil
}

func (r rateRepo) Update(_ context.Context, rate *domain.Rate) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	old, ok := r.m.rates[rate.ID]
	if !ok {
		return domain.ErrNotFound
	}
	for id, existing := range r.m.rates {
		if id != rate.ID && existing.Months == rate.Months {
			return domain.ErrDuplicate
		}
	}
	rate.CreatedAt = old.CreatedAt
	rate.UpdatedAt = r.m.now()
	r.m.rates[rate.ID] = *rate
	return nil
}

func (r rateRepo) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.rates[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.m.rates, id)
	return nil
}

// =============================================================================
// SAVINGS
// =============================================================================

type savingsRepo struct{ m *Memory }

func (r savingsRepo) GetByID(_ context.Context, id string) (*domain.SavingsAccount, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	acct, ok := r.m.savings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return acct.Clone(), nil
}

func (r savingsRepo) GetByMember(ctx context.Context, memberID string) (*domain.SavingsAccount, error) {
	r.m.mu.RLock()
	id, ok := r.m.byMember[memberID]
	r.m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r savingsRepo) List(_ context.Context) ([]*domain.SavingsAccount, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	out := make([]*domain.SavingsAccount, 0, len(r.m.savings))
	for _, acct := range r.m.savings {
		out = append(out, acct.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r savingsRepo) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	acct, ok := r.m.savings[id]
	if !ok {
		return domain.ErrNotFound
	}
	delete(r.m.byMember, acct.UserID)
	delete(r.m.savings, id)
	return nil
}

func (r savingsRepo) ApplyToMember(_ context.Context, memberID string, fn repositories.SavingsMutation) (*domain.SavingsAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	var current *domain.SavingsAccount
	if id, ok := r.m.byMember[memberID]; ok {
		current = r.m.savings[id]
	} else {
		now := r.m.now()
		current = &domain.SavingsAccount{
			ID:        uuid.NewString(),
			UserID:    memberID,
			Total:     decimal.Zero,
			Entries:   map[string]domain.SavingsEntry{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	return r.applyLocked(current, fn)
}

func (r savingsRepo) ApplyToAccount(_ context.Context, accountID string, fn repositories.SavingsMutation) (*domain.SavingsAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	current, ok := r.m.savings[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r.applyLocked(current, fn)
}

func (r savingsRepo) applyLocked(current *domain.SavingsAccount, fn repositories.SavingsMutation) (*domain.SavingsAccount, error) {
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.UpdatedAt.Equal(current.UpdatedAt) {
		next.UpdatedAt = r.m.now()
	}
	r.m.savings[next.ID] = next
	r.m.byMember[next.UserID] = next.ID
	return next.Clone(), nil
}

// =============================================================================
// LOANS
// =============================================================================

type loanRepo struct{ m *Memory }

func (r loanRepo) Create(_ context.Context, loan *domain.LoanAccount) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.loans[loan.ID]; ok {
		return domain.ErrDuplicate
	}
	if loan.CreatedAt.IsZero() {
		loan.CreatedAt = r.m.now()
	}
	loan.UpdatedAt = loan.CreatedAt
	r.m.loans[loan.ID] = loan.Clone()
	return nil
}

func (r loanRepo) GetByID(_ context.Context, id string) (*domain.LoanAccount, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	loan, ok := r.m.loans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return loan.Clone(), nil
}

func (r loanRepo) sorted(match func(*domain.LoanAccount) bool) []*domain.LoanAccount {
	out := make([]*domain.LoanAccount, 0)
	for _, loan := range r.m.loans {
		if match(loan) {
			out = append(out, loan.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].AppliedAt.After(out[j].AppliedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r loanRepo) List(_ context.Context, filter repositories.LoanFilter) ([]*domain.LoanAccount, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return r.sorted(func(l *domain.LoanAccount) bool {
		return (filter.Status == "" || l.Status == filter.Status) &&
			(filter.UserID == "" || l.UserID == filter.UserID)
	}), nil
}

func (r loanRepo) ListOverdue(_ context.Context, asOf time.Time) ([]*domain.LoanAccount, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return r.sorted(func(l *domain.LoanAccount) bool {
		if l.Status != domain.LoanApproved {
			return false
		}
		for _, inst := range l.Installments {
			if inst.Status == domain.InstallmentUnpaid && inst.DueDate.Before(asOf) {
				return true
			}
		}
		return false
	}), nil
}

func (r loanRepo) Apply(_ context.Context, loanID string, fn repositories.LoanMutation) (*domain.LoanAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	current, ok := r.m.loans[loanID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = r.m.now()
	r.m.loans[loanID] = next
	return next.Clone(), nil
}

func (r loanRepo) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.loans[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.m.loans, id)
	return nil
}
