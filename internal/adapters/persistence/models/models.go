package models

import (
	"time"

	"coop-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Auth & User Tables
// ============================================================

// User represents users table
type User struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Username  string    `gorm:"uniqueIndex;size:50;not null"`
	FullName  string    `gorm:"size:100;not null"`
	Password  string    `gorm:"size:255;not null"`
	Role      string    `gorm:"size:20;not null;default:'member'"`
	IsActive  bool      `gorm:"default:true"`
	Profile   Profile   `gorm:"embedded;embeddedPrefix:profile_"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// Profile columns are embedded into users with a profile_ prefix
type Profile struct {
	Phone      string `gorm:"size:30"`
	Email      string `gorm:"size:100"`
	Address    string `gorm:"size:255"`
	Village    string `gorm:"size:100"`
	District   string `gorm:"size:100"`
	City       string `gorm:"size:100"`
	Province   string `gorm:"size:100"`
	PostalCode string `gorm:"size:10"`
}

func (p Profile) empty() bool {
	return p == Profile{}
}

func FromDomainUser(u *domain.User) *User {
	m := &User{
		ID:        u.ID,
		Username:  u.Username,
		FullName:  u.FullName,
		Password:  u.Password,
		Role:      string(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Profile != nil {
		m.Profile = Profile(*u.Profile)
	}
	return m
}

func (m *User) ToDomain() *domain.User {
	u := &domain.User{
		ID:        m.ID,
		Username:  m.Username,
		FullName:  m.FullName,
		Password:  m.Password,
		Role:      domain.Role(m.Role),
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if !m.Profile.empty() {
		p := domain.Profile(m.Profile)
		u.Profile = &p
	}
	return u
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        string     `gorm:"primaryKey;size:36"`
	UserID    string     `gorm:"index;size:36;not null"`
	TokenHash string     `gorm:"size:255;not null;index"`
	ExpiresAt time.Time  `gorm:"not null"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	RevokedAt *time.Time `gorm:"index"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func FromDomainRefreshToken(t *domain.RefreshToken) *RefreshToken {
	return &RefreshToken{
		ID:        t.ID,
		UserID:    t.UserID,
		TokenHash: t.TokenHash,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
		RevokedAt: t.RevokedAt,
	}
}

func (m *RefreshToken) ToDomain() *domain.RefreshToken {
	return &domain.RefreshToken{
		ID:        m.ID,
		UserID:    m.UserID,
		TokenHash: m.TokenHash,
		ExpiresAt: m.ExpiresAt,
		CreatedAt: m.CreatedAt,
		RevokedAt: m.RevokedAt,
	}
}

// ============================================================
// Rate table
// ============================================================

// Rate is one tenor/rate pair offered to members
type Rate struct {
	ID                 string          `gorm:"primaryKey;size:36"`
	Months             int             `gorm:"uniqueIndex;not null"`
	MonthlyRatePercent decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	CreatedAt          time.Time       `gorm:"autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime"`
}

func (Rate) TableName() string {
	return "rates"
}

func FromDomainRate(r *domain.Rate) *Rate {
	return &Rate{
		ID:                 r.ID,
		Months:             r.Months,
		MonthlyRatePercent: r.MonthlyRatePercent,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func (m *Rate) ToDomain() *domain.Rate {
	return &domain.Rate{
		ID:                 m.ID,
		Months:             m.Months,
		MonthlyRatePercent: m.MonthlyRatePercent,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// ============================================================
// Savings ledger
// ============================================================

// SavingsAccount is one row per member
type SavingsAccount struct {
	ID        string          `gorm:"primaryKey;size:36"`
	UserID    string          `gorm:"uniqueIndex;size:36;not null"`
	Total     decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Entries   []SavingsEntry  `gorm:"foreignKey:AccountID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SavingsAccount) TableName() string {
	return "savings_accounts"
}

// SavingsEntry is an immutable deposit or withdrawal row
type SavingsEntry struct {
	ID         string          `gorm:"primaryKey;size:36"`
	AccountID  string          `gorm:"index;size:36;not null"`
	Kind       string          `gorm:"size:20;not null"`
	Nominal    decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	OccurredAt time.Time       `gorm:"index;not null"`
	RecordedBy string          `gorm:"size:36"`
}

func (SavingsEntry) TableName() string {
	return "savings_entries"
}

func FromDomainSavingsEntry(accountID string, e domain.SavingsEntry) SavingsEntry {
	return SavingsEntry{
		ID:         e.ID,
		AccountID:  accountID,
		Kind:       string(e.Kind),
		Nominal:    e.Nominal,
		OccurredAt: e.OccurredAt,
		RecordedBy: e.RecordedBy,
	}
}

// FromDomainSavings maps the account row only; entries are written one by one
func FromDomainSavings(a *domain.SavingsAccount) *SavingsAccount {
	return &SavingsAccount{
		ID:        a.ID,
		UserID:    a.UserID,
		Total:     a.Total,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (m *SavingsAccount) ToDomain() *domain.SavingsAccount {
	a := &domain.SavingsAccount{
		ID:        m.ID,
		UserID:    m.UserID,
		Total:     m.Total,
		Entries:   make(map[string]domain.SavingsEntry, len(m.Entries)),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	for _, e := range m.Entries {
		a.Entries[e.ID] = domain.SavingsEntry{
			ID:         e.ID,
			Kind:       domain.EntryKind(e.Kind),
			Nominal:    e.Nominal,
			OccurredAt: e.OccurredAt,
			RecordedBy: e.RecordedBy,
		}
	}
	return a
}

// ============================================================
// Loans
// ============================================================

// LoanAccount stores the loan and its tenor snapshot
type LoanAccount struct {
	ID                 string          `gorm:"primaryKey;size:36"`
	UserID             string          `gorm:"index;size:36;not null"`
	Principal          decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Status             string          `gorm:"index;size:20;not null"`
	TenorMonths        int             `gorm:"not null"`
	MonthlyRatePercent decimal.Decimal `gorm:"type:decimal(7,4);not null"`
	AppliedAt          time.Time       `gorm:"not null"`
	DecidedAt          *time.Time
	DecidedBy          *string       `gorm:"size:36"`
	Installments       []Installment `gorm:"foreignKey:LoanID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (LoanAccount) TableName() string {
	return "loan_accounts"
}

// Installment is one scheduled repayment row
type Installment struct {
	ID        string          `gorm:"primaryKey;size:36"`
	LoanID    string          `gorm:"index;size:36;not null"`
	Seq       int             `gorm:"not null"`
	Status    string          `gorm:"index;size:20;not null"`
	AmountDue decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	DueDate   time.Time       `gorm:"index;not null"`
	PaidAt    *time.Time
	PaidBy    *string `gorm:"size:36"`
}

func (Installment) TableName() string {
	return "installments"
}

func FromDomainInstallment(loanID string, i domain.Installment) Installment {
	return Installment{
		ID:        i.ID,
		LoanID:    loanID,
		Seq:       i.Seq,
		Status:    string(i.Status),
		AmountDue: i.AmountDue,
		DueDate:   i.DueDate,
		PaidAt:    i.PaidAt,
		PaidBy:    i.PaidBy,
	}
}

func FromDomainLoan(l *domain.LoanAccount) *LoanAccount {
	m := &LoanAccount{
		ID:                 l.ID,
		UserID:             l.UserID,
		Principal:          l.Principal,
		Status:             string(l.Status),
		TenorMonths:        l.Tenor.Months,
		MonthlyRatePercent: l.Tenor.MonthlyRatePercent,
		AppliedAt:          l.AppliedAt,
		DecidedAt:          l.DecidedAt,
		DecidedBy:          l.DecidedBy,
		CreatedAt:          l.CreatedAt,
		UpdatedAt:          l.UpdatedAt,
	}
	for _, inst := range l.Installments {
		m.Installments = append(m.Installments, FromDomainInstallment(l.ID, inst))
	}
	return m
}

func (m *LoanAccount) ToDomain() *domain.LoanAccount {
	l := &domain.LoanAccount{
		ID:        m.ID,
		UserID:    m.UserID,
		Principal: m.Principal,
		Status:    domain.LoanStatus(m.Status),
		Tenor: domain.Tenor{
			Months:             m.TenorMonths,
			MonthlyRatePercent: m.MonthlyRatePercent,
		},
		Installments: make(map[string]domain.Installment, len(m.Installments)),
		AppliedAt:    m.AppliedAt,
		DecidedAt:    m.DecidedAt,
		DecidedBy:    m.DecidedBy,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	for _, i := range m.Installments {
		l.Installments[i.ID] = domain.Installment{
			ID:        i.ID,
			Seq:       i.Seq,
			Status:    domain.InstallmentStatus(i.Status),
			AmountDue: i.AmountDue,
			DueDate:   i.DueDate,
			PaidAt:    i.PaidAt,
			PaidBy:    i.PaidBy,
		}
	}
	return l
}

// AutoMigrate creates or updates every ledger table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Rate{},
		&SavingsAccount{},
		&SavingsEntry{},
		&LoanAccount{},
		&Installment{},
	)
}
