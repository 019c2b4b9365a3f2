package services

import (
	"time"

	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/ledger"

	"github.com/shopspring/decimal"
)

// UserResponse DTO. Never carries the password hash.
type UserResponse struct {
	ID        string          `json:"id"`
	Username  string          `json:"username"`
	FullName  string          `json:"full_name"`
	Role      domain.Role     `json:"role"`
	IsActive  bool            `json:"is_active"`
	Profile   *domain.Profile `json:"profile,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewUserResponse converts a user without its password hash
func NewUserResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		Profile:   u.Profile,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// RateResponse DTO
type RateResponse struct {
	ID                 string          `json:"id"`
	Months             int             `json:"months"`
	MonthlyRatePercent decimal.Decimal `json:"monthly_rate_percent"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewRateResponse converts a rate
func NewRateResponse(r *domain.Rate) *RateResponse {
	return &RateResponse{
		ID:                 r.ID,
		Months:             r.Months,
		MonthlyRatePercent: r.MonthlyRatePercent,
		UpdatedAt:          r.UpdatedAt,
	}
}

// EntryResponse DTO
type EntryResponse struct {
	ID         string           `json:"id"`
	Kind       domain.EntryKind `json:"kind"`
	Nominal    decimal.Decimal  `json:"nominal"`
	OccurredAt time.Time        `json:"occurred_at"`
	RecordedBy string           `json:"recorded_by,omitempty"`
}

// SavingsResponse DTO; entries newest first
type SavingsResponse struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Total     decimal.Decimal `json:"total"`
	Entries   []EntryResponse `json:"entries"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewSavingsResponse converts an account, entries newest first
func NewSavingsResponse(a *domain.SavingsAccount) *SavingsResponse {
	out := &SavingsResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Total:     a.Total,
		Entries:   make([]EntryResponse, 0, len(a.Entries)),
		UpdatedAt: a.UpdatedAt,
	}
	for _, e := range ledger.SortedEntries(a) {
		out.Entries = append(out.Entries, EntryResponse(e))
	}
	return out
}

// InstallmentResponse DTO
type InstallmentResponse struct {
	ID        string                   `json:"id"`
	Seq       int                      `json:"seq"`
	Status    domain.InstallmentStatus `json:"status"`
	AmountDue decimal.Decimal          `json:"amount_due"`
	DueDate   time.Time                `json:"due_date"`
	PaidAt    *time.Time               `json:"paid_at,omitempty"`
	PaidBy    *string                  `json:"paid_by,omitempty"`
}

// LoanResponse DTO; installments in schedule order
type LoanResponse struct {
	ID            string                `json:"id"`
	UserID        string                `json:"user_id"`
	Principal     decimal.Decimal       `json:"principal"`
	Status        domain.LoanStatus     `json:"status"`
	Tenor         domain.Tenor          `json:"tenor"`
	TotalInterest decimal.Decimal       `json:"total_interest"`
	Installments  []InstallmentResponse `json:"installments"`
	AppliedAt     time.Time             `json:"applied_at"`
	DecidedAt     *time.Time            `json:"decided_at,omitempty"`
	DecidedBy     *string               `json:"decided_by,omitempty"`
}

// NewLoanResponse converts a loan with its schedule
func NewLoanResponse(l *domain.LoanAccount) *LoanResponse {
	out := &LoanResponse{
		ID:            l.ID,
		UserID:        l.UserID,
		Principal:     l.Principal,
		Status:        l.Status,
		Tenor:         l.Tenor,
		TotalInterest: ledger.TotalInterest(l.Principal, l.Tenor),
		Installments:  make([]InstallmentResponse, 0, len(l.Installments)),
		AppliedAt:     l.AppliedAt,
		DecidedAt:     l.DecidedAt,
		DecidedBy:     l.DecidedBy,
	}
	for _, inst := range ledger.SortedInstallments(l) {
		out.Installments = append(out.Installments, InstallmentResponse(inst))
	}
	return out
}

func newLoanResponses(loans []*domain.LoanAccount) []*LoanResponse {
	out := make([]*LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, NewLoanResponse(l))
	}
	return out
}
