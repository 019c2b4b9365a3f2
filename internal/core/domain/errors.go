package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Common domain errors
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrStoreUnavailable  = errors.New("ledger store unavailable")
	ErrInvalidRole       = errors.New("invalid role")
	ErrInvalidCredential = errors.New("invalid credentials")
)

// Ledger errors
var (
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWouldGoNegative   = errors.New("removing entry would make balance negative")
	ErrInvalidTenor      = errors.New("tenor must be a positive number of months")
	ErrInvalidRate       = errors.New("monthly rate must not be negative")
)

// Status machine errors
var (
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrLoanNotApproved   = errors.New("loan is not approved")
)

// InsufficientFundsError provides details about a rejected withdrawal
type InsufficientFundsError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: available %s, requested %s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// TransitionError describes a rejected status change
type TransitionError struct {
	Subject string // "loan" or "installment"
	From    string
	To      string
	Cause   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s: %v", e.Subject, e.From, e.To, e.Cause)
}

func (e *TransitionError) Unwrap() error {
	return e.Cause
}

// IsClientError returns true if the error is due to invalid client input or a business rule
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidTenor) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidRole) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrWouldGoNegative) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrLoanNotApproved)
}
