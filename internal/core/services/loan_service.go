package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/ledger"
	"coop-ledger/internal/pkg/pubsub"

	"github.com/shopspring/decimal"
)

// LoanService originates loans and drives the loan and installment status machines
type LoanService struct {
	loanRepo repositories.LoanRepository
	userRepo repositories.UserRepository
	rateRepo repositories.RateRepository
	events   pubsub.Publisher
	now      func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(
	loanRepo repositories.LoanRepository,
	userRepo repositories.UserRepository,
	rateRepo repositories.RateRepository,
	events pubsub.Publisher,
) *LoanService {
	return &LoanService{
		loanRepo: loanRepo,
		userRepo: userRepo,
		rateRepo: rateRepo,
		events:   events,
		now:      time.Now,
	}
}

// ApplyLoanInput is a loan application. Either RateID or both Months and
// MonthlyRatePercent must be given; explicit values win over the rate table.
type ApplyLoanInput struct {
	MemberID           string           `json:"member_id"`
	Principal          decimal.Decimal  `json:"principal"`
	RateID             string           `json:"rate_id"`
	Months             int              `json:"months"`
	MonthlyRatePercent *decimal.Decimal `json:"monthly_rate_percent"`
}

// Apply originates a pending loan with its full installment schedule
func (s *LoanService) Apply(ctx context.Context, actor domain.Actor, input ApplyLoanInput) (*LoanResponse, error) {
	memberID := input.MemberID
	if memberID == "" {
		memberID = actor.ID
	}
	if err := actor.Require(domain.ActionApplyLoan, memberID); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, memberID); err != nil {
		return nil, err
	}

	months, rate, err := s.resolveTenor(ctx, input)
	if err != nil {
		return nil, err
	}

	loan, err := ledger.Originate(ledger.LoanApplication{
		MemberID:           memberID,
		Principal:          input.Principal,
		TenorMonths:        months,
		MonthlyRatePercent: rate,
		AppliedAt:          s.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.loanRepo.Create(ctx, loan); err != nil {
		return nil, err
	}

	log.Printf("✅ Loan %s applied for member %s: %s over %d months at %s%%",
		loan.ID, memberID, loan.Principal.StringFixed(2), months, rate)
	s.publish(loan.ID, pubsub.KindCreated, loan.Status)
	return NewLoanResponse(loan), nil
}

func (s *LoanService) resolveTenor(ctx context.Context, input ApplyLoanInput) (int, decimal.Decimal, error) {
	months := input.Months
	var rate decimal.Decimal
	hasRate := input.MonthlyRatePercent != nil
	if hasRate {
		rate = *input.MonthlyRatePercent
	}

	if input.RateID != "" {
		r, err := s.rateRepo.GetByID(ctx, input.RateID)
		if err != nil {
			if isNotFound(err) {
				return 0, decimal.Zero, fmt.Errorf("%w: unknown rate %s", domain.ErrInvalidInput, input.RateID)
			}
			return 0, decimal.Zero, err
		}
		if months == 0 {
			months = r.Months
		}
		if !hasRate {
			rate, hasRate = r.MonthlyRatePercent, true
		}
	}

	if !hasRate {
		return 0, decimal.Zero, fmt.Errorf("%w: monthly rate or rate id is required", domain.ErrInvalidRate)
	}
	return months, rate, nil
}

// Get returns a loan visible to actor
func (s *LoanService) Get(ctx context.Context, actor domain.Actor, id string) (*LoanResponse, error) {
	loan, err := s.loanRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := actor.Require(domain.ActionViewLoan, loan.UserID); err != nil {
		return nil, err
	}
	return NewLoanResponse(loan), nil
}

// List returns every loan, optionally by status (staff only)
func (s *LoanService) List(ctx context.Context, actor domain.Actor, status string) ([]*LoanResponse, error) {
	if err := actor.Require(domain.ActionListLoans, ""); err != nil {
		return nil, err
	}
	filter := repositories.LoanFilter{}
	if status != "" {
		st := domain.LoanStatus(status)
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown loan status %q", domain.ErrInvalidInput, status)
		}
		filter.Status = st
	}
	loans, err := s.loanRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return newLoanResponses(loans), nil
}

// ListMine returns the caller's own loans
func (s *LoanService) ListMine(ctx context.Context, actor domain.Actor) ([]*LoanResponse, error) {
	if err := actor.Require(domain.ActionViewLoan, actor.ID); err != nil {
		return nil, err
	}
	loans, err := s.loanRepo.List(ctx, repositories.LoanFilter{UserID: actor.ID})
	if err != nil {
		return nil, err
	}
	return newLoanResponses(loans), nil
}

// SetStatus approves or rejects a pending loan
func (s *LoanService) SetStatus(ctx context.Context, actor domain.Actor, loanID string, status string) (*LoanResponse, error) {
	if err := actor.Require(domain.ActionDecideLoan, ""); err != nil {
		return nil, err
	}

	at := s.now()
	loan, err := s.loanRepo.Apply(ctx, loanID, func(l *domain.LoanAccount) error {
		return ledger.SetLoanStatus(l, domain.LoanStatus(status), actor, at)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Loan %s is now %s (by %s)", loan.ID, loan.Status, actor.ID)
	s.publish(loan.ID, pubsub.KindUpdated, loan.Status)
	return NewLoanResponse(loan), nil
}

// SetInstallmentStatus confirms a payment, or reverts it (admin only)
func (s *LoanService) SetInstallmentStatus(ctx context.Context, actor domain.Actor, loanID, installmentID, status string) (*LoanResponse, error) {
	to := domain.InstallmentStatus(status)
	action := domain.ActionConfirmPayment
	if to == domain.InstallmentUnpaid {
		action = domain.ActionRevertPayment
	}
	if err := actor.Require(action, ""); err != nil {
		return nil, err
	}

	at := s.now()
	loan, err := s.loanRepo.Apply(ctx, loanID, func(l *domain.LoanAccount) error {
		return ledger.SetInstallmentStatus(l, installmentID, to, actor, at)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Installment %s of loan %s marked %s (by %s)", installmentID, loanID, to, actor.ID)
	s.publish(loan.ID, pubsub.KindUpdated, loan.Status)
	return NewLoanResponse(loan), nil
}

// Delete removes a loan and its schedule
func (s *LoanService) Delete(ctx context.Context, actor domain.Actor, loanID string) error {
	if err := actor.Require(domain.ActionDeleteLoan, ""); err != nil {
		return err
	}
	if err := s.loanRepo.Delete(ctx, loanID); err != nil {
		return err
	}
	log.Printf("⚠️ Loan %s deleted by %s", loanID, actor.ID)
	s.publish(loanID, pubsub.KindDeleted, "")
	return nil
}

func (s *LoanService) publish(id, kind string, status domain.LoanStatus) {
	e := pubsub.Event{Path: pubsub.LoanPath(id), Kind: kind, At: s.now()}
	if status != "" {
		e.Data = map[string]interface{}{"status": status}
	}
	s.events.Publish(e)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
