package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a cooperative account holder or staff member in the domain layer
type User struct {
	ID        string
	Username  string
	FullName  string
	Password  string // Hashed
	Role      Role
	IsActive  bool
	Profile   *Profile
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the optional personal/address detail block of a user
type Profile struct {
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
	Address    string `json:"address,omitempty"`
	Village    string `json:"village,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// RefreshToken represents a refresh token in the domain
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// IsRevoked reports whether the token has been revoked
func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

// IsExpired reports whether the token is past its expiry
func (rt *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(rt.ExpiresAt)
}

// Rate is an interest/tenor pair managed by admin, used to pre-fill loan applications
type Rate struct {
	ID                 string
	Months             int
	MonthlyRatePercent decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// EntryKind is the direction of a savings entry
type EntryKind string

const (
	EntryDeposit    EntryKind = "deposit"
	EntryWithdrawal EntryKind = "withdrawal"
)

// Valid reports whether k is a known entry kind
func (k EntryKind) Valid() bool {
	return k == EntryDeposit || k == EntryWithdrawal
}

// Signed returns nominal with the sign implied by the entry kind
func (k EntryKind) Signed(nominal decimal.Decimal) decimal.Decimal {
	if k == EntryWithdrawal {
		return nominal.Neg()
	}
	return nominal
}

// SavingsEntry is one immutable deposit or withdrawal
type SavingsEntry struct {
	ID         string
	Kind       EntryKind
	Nominal    decimal.Decimal
	OccurredAt time.Time
	RecordedBy string
}

// SavingsAccount holds a member's running balance and its entry log
type SavingsAccount struct {
	ID        string
	UserID    string
	Total     decimal.Decimal
	Entries   map[string]SavingsEntry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so mutations can be discarded on failure
func (a *SavingsAccount) Clone() *SavingsAccount {
	if a == nil {
		return nil
	}
	c := *a
	c.Entries = make(map[string]SavingsEntry, len(a.Entries))
	for id, e := range a.Entries {
		c.Entries[id] = e
	}
	return &c
}

// LoanStatus is the loan-level decision state
type LoanStatus string

const (
	LoanPending  LoanStatus = "pending"
	LoanApproved LoanStatus = "approved"
	LoanRejected LoanStatus = "rejected"
)

// Valid reports whether s is a known loan status
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanPending, LoanApproved, LoanRejected:
		return true
	}
	return false
}

// InstallmentStatus is the payment state of a single installment
type InstallmentStatus string

const (
	InstallmentUnpaid InstallmentStatus = "unpaid"
	InstallmentPaid   InstallmentStatus = "paid"
)

// Valid reports whether s is a known installment status
func (s InstallmentStatus) Valid() bool {
	return s == InstallmentUnpaid || s == InstallmentPaid
}

// Tenor is the rate and length snapshot captured when a loan is applied for
type Tenor struct {
	Months             int             `json:"months"`
	MonthlyRatePercent decimal.Decimal `json:"monthly_rate_percent"`
}

// Installment is one scheduled repayment of a loan
type Installment struct {
	ID        string
	Seq       int
	Status    InstallmentStatus
	AmountDue decimal.Decimal
	DueDate   time.Time
	PaidAt    *time.Time
	PaidBy    *string
}

// LoanAccount is a member's loan with its fixed installment schedule
type LoanAccount struct {
	ID           string
	UserID       string
	Principal    decimal.Decimal
	Status       LoanStatus
	Tenor        Tenor
	Installments map[string]Installment
	AppliedAt    time.Time
	DecidedAt    *time.Time
	DecidedBy    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Clone returns a deep copy so mutations can be discarded on failure
func (l *LoanAccount) Clone() *LoanAccount {
	if l == nil {
		return nil
	}
	c := *l
	c.Installments = make(map[string]Installment, len(l.Installments))
	for id, inst := range l.Installments {
		c.Installments[id] = inst
	}
	return &c
}
