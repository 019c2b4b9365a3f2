package domain

import (
	"fmt"
	"strings"
)

// Role represents user role in the system
type Role string

const (
	RoleMember Role = "member"
	RoleTeller Role = "teller"
	RoleAdmin  Role = "admin"
)

// ParseRole accepts the current role names and the legacy USER/OFFICER/ADMIN spelling
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "member", "user":
		return RoleMember, nil
	case "teller", "officer":
		return RoleTeller, nil
	case "admin":
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Valid reports whether r is one of the closed set of roles
func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleTeller, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r is teller or admin
func (r Role) IsStaff() bool {
	return r == RoleTeller || r == RoleAdmin
}

// Action is an operation subject to role authorization
type Action string

const (
	ActionRecordSavings     Action = "savings.record"
	ActionViewSavings       Action = "savings.view"
	ActionListSavings       Action = "savings.list"
	ActionDeleteEntry       Action = "savings.delete_entry"
	ActionDeleteSavings     Action = "savings.delete"
	ActionApplyLoan         Action = "loan.apply"
	ActionViewLoan          Action = "loan.view"
	ActionListLoans         Action = "loan.list"
	ActionDecideLoan        Action = "loan.decide"
	ActionConfirmPayment    Action = "loan.confirm_payment"
	ActionRevertPayment     Action = "loan.revert_payment"
	ActionDeleteLoan        Action = "loan.delete"
	ActionViewRates         Action = "rates.view"
	ActionManageRates       Action = "rates.manage"
	ActionManageUsers       Action = "users.manage"
	ActionViewReport        Action = "report.cooperative"
	ActionViewMemberSummary Action = "report.member"
)

// Authorize returns ErrForbidden unless role may perform action.
// Ownership (members acting on their own records) is checked separately by Actor.
func Authorize(role Role, action Action) error {
	var allowed bool
	switch role {
	case RoleMember:
		switch action {
		case ActionRecordSavings, ActionViewSavings, ActionApplyLoan, ActionViewLoan,
			ActionViewRates, ActionViewMemberSummary:
			allowed = true
		}
	case RoleTeller:
		switch action {
		case ActionRecordSavings, ActionViewSavings, ActionListSavings, ActionApplyLoan,
			ActionViewLoan, ActionListLoans, ActionDecideLoan, ActionConfirmPayment,
			ActionViewRates, ActionViewReport, ActionViewMemberSummary:
			allowed = true
		}
	case RoleAdmin:
		allowed = true
	}
	if !allowed {
		return fmt.Errorf("%w: %s may not %s", ErrForbidden, role, action)
	}
	return nil
}

// Actor is the authenticated caller of a service operation
type Actor struct {
	ID   string
	Role Role
}

// CanActFor reports whether the actor may touch records owned by memberID
func (a Actor) CanActFor(memberID string) bool {
	if a.Role.IsStaff() {
		return true
	}
	return a.Role == RoleMember && a.ID == memberID
}

// Require authorizes action and, for owned records, the ownership of memberID.
// Pass an empty memberID for operations without an owning member.
func (a Actor) Require(action Action, memberID string) error {
	if err := Authorize(a.Role, action); err != nil {
		return err
	}
	if memberID != "" && !a.CanActFor(memberID) {
		return fmt.Errorf("%w: %s does not own this record", ErrForbidden, a.ID)
	}
	return nil
}
