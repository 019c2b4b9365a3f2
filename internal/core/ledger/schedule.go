package ledger

import (
	"fmt"
	"sort"
	"time"

	"coop-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// LoanApplication is the input to loan origination
type LoanApplication struct {
	MemberID           string
	Principal          decimal.Decimal
	TenorMonths        int
	MonthlyRatePercent decimal.Decimal
	AppliedAt          time.Time
}

// Validate checks the positivity constraints; economically odd inputs such as 0% are accepted
func (a LoanApplication) Validate() error {
	if !a.Principal.IsPositive() {
		return fmt.Errorf("%w: principal %s", domain.ErrInvalidAmount, a.Principal.String())
	}
	if err := ValidateCents(a.Principal); err != nil {
		return err
	}
	if a.TenorMonths <= 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidTenor, a.TenorMonths)
	}
	if a.MonthlyRatePercent.IsNegative() {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRate, a.MonthlyRatePercent.String())
	}
	if a.MemberID == "" {
		return fmt.Errorf("%w: member id is required", domain.ErrInvalidInput)
	}
	return nil
}

// TotalInterest is principal × rate/100 × months (flat interest)
func TotalInterest(principal decimal.Decimal, tenor domain.Tenor) decimal.Decimal {
	return principal.Mul(tenor.MonthlyRatePercent).Div(hundred).Mul(decimal.NewFromInt(int64(tenor.Months)))
}

// InstallmentAmount is the flat per-month repayment rounded to 2 decimals
func InstallmentAmount(principal decimal.Decimal, tenor domain.Tenor) decimal.Decimal {
	total := principal.Add(TotalInterest(principal, tenor))
	return total.Div(decimal.NewFromInt(int64(tenor.Months))).Round(2)
}

// DueDate returns the application date advanced by months calendar months.
// The day-of-month is clamped to the last day of the target month, so an
// application on Jan 31 falls due on Feb 28/29, Mar 31, Apr 30, ...
func DueDate(appliedAt time.Time, months int) time.Time {
	y, m, d := appliedAt.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, appliedAt.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, appliedAt.Location())
}

// Originate turns an application into a pending loan with its full installment schedule
func Originate(app LoanApplication) (*domain.LoanAccount, error) {
	if err := app.Validate(); err != nil {
		return nil, err
	}

	tenor := domain.Tenor{Months: app.TenorMonths, MonthlyRatePercent: app.MonthlyRatePercent}
	amount := InstallmentAmount(app.Principal, tenor)

	loan := &domain.LoanAccount{
		ID:           uuid.NewString(),
		UserID:       app.MemberID,
		Principal:    app.Principal,
		Status:       domain.LoanPending,
		Tenor:        tenor,
		Installments: make(map[string]domain.Installment, app.TenorMonths),
		AppliedAt:    app.AppliedAt,
	}

	for i := 0; i < app.TenorMonths; i++ {
		inst := domain.Installment{
			ID:        uuid.NewString(),
			Seq:       i + 1,
			Status:    domain.InstallmentUnpaid,
			AmountDue: amount,
			DueDate:   DueDate(app.AppliedAt, i+1),
		}
		loan.Installments[inst.ID] = inst
	}

	return loan, nil
}

// SortedInstallments returns a loan's installments in schedule order
func SortedInstallments(loan *domain.LoanAccount) []domain.Installment {
	out := make([]domain.Installment, 0, len(loan.Installments))
	for _, inst := range loan.Installments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].DueDate.Before(out[j].DueDate)
	})
	return out
}
