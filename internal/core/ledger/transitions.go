package ledger

import (
	"fmt"
	"time"

	"coop-ledger/internal/core/domain"
)

type loanEdge struct {
	from, to domain.LoanStatus
}

// loanTransitions lists every permitted decision and the roles allowed to make it.
// approved and rejected are terminal.
var loanTransitions = map[loanEdge][]domain.Role{
	{domain.LoanPending, domain.LoanApproved}: {domain.RoleTeller, domain.RoleAdmin},
	{domain.LoanPending, domain.LoanRejected}: {domain.RoleTeller, domain.RoleAdmin},
}

type installmentEdge struct {
	from, to domain.InstallmentStatus
}

var installmentTransitions = map[installmentEdge][]domain.Role{
	{domain.InstallmentUnpaid, domain.InstallmentPaid}:   {domain.RoleTeller, domain.RoleAdmin},
	{domain.InstallmentPaid, domain.InstallmentUnpaid}:   {domain.RoleAdmin},
	{domain.InstallmentUnpaid, domain.InstallmentUnpaid}: {domain.RoleTeller, domain.RoleAdmin},
	{domain.InstallmentPaid, domain.InstallmentPaid}:     {domain.RoleTeller, domain.RoleAdmin},
}

func hasRole(roles []domain.Role, role domain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// LoanTransition validates a loan status change by role.
// A self-transition is a no-op and always allowed for staff.
func LoanTransition(from, to domain.LoanStatus, role domain.Role) error {
	if !to.Valid() {
		return &domain.TransitionError{Subject: "loan", From: string(from), To: string(to),
			Cause: fmt.Errorf("%w: unknown status", domain.ErrInvalidInput)}
	}
	if from == to && role.IsStaff() {
		return nil
	}
	roles, ok := loanTransitions[loanEdge{from, to}]
	if !ok {
		return &domain.TransitionError{Subject: "loan", From: string(from), To: string(to), Cause: domain.ErrIllegalTransition}
	}
	if !hasRole(roles, role) {
		return &domain.TransitionError{Subject: "loan", From: string(from), To: string(to), Cause: domain.ErrForbidden}
	}
	return nil
}

// InstallmentTransition validates an installment status change by role.
// Payment state can only move while the loan itself is approved.
func InstallmentTransition(loanStatus domain.LoanStatus, from, to domain.InstallmentStatus, role domain.Role) error {
	if !to.Valid() {
		return &domain.TransitionError{Subject: "installment", From: string(from), To: string(to),
			Cause: fmt.Errorf("%w: unknown status", domain.ErrInvalidInput)}
	}
	roles, ok := installmentTransitions[installmentEdge{from, to}]
	if !ok {
		return &domain.TransitionError{Subject: "installment", From: string(from), To: string(to), Cause: domain.ErrIllegalTransition}
	}
	if !hasRole(roles, role) {
		return &domain.TransitionError{Subject: "installment", From: string(from), To: string(to), Cause: domain.ErrForbidden}
	}
	if loanStatus != domain.LoanApproved {
		return &domain.TransitionError{Subject: "installment", From: string(from), To: string(to), Cause: domain.ErrLoanNotApproved}
	}
	return nil
}

// SetLoanStatus applies a validated decision to loan. Installments are not touched.
func SetLoanStatus(loan *domain.LoanAccount, to domain.LoanStatus, actor domain.Actor, at time.Time) error {
	if err := LoanTransition(loan.Status, to, actor.Role); err != nil {
		return err
	}
	if loan.Status == to {
		return nil
	}
	loan.Status = to
	decidedBy := actor.ID
	loan.DecidedAt = &at
	loan.DecidedBy = &decidedBy
	return nil
}

// SetInstallmentStatus applies a validated payment change to one installment of loan
func SetInstallmentStatus(loan *domain.LoanAccount, installmentID string, to domain.InstallmentStatus, actor domain.Actor, at time.Time) error {
	inst, ok := loan.Installments[installmentID]
	if !ok {
		return fmt.Errorf("%w: installment %s", domain.ErrNotFound, installmentID)
	}
	if err := InstallmentTransition(loan.Status, inst.Status, to, actor.Role); err != nil {
		return err
	}
	if inst.Status == to {
		return nil
	}

	inst.Status = to
	if to == domain.InstallmentPaid {
		paidBy := actor.ID
		inst.PaidAt = &at
		inst.PaidBy = &paidBy
	} else {
		inst.PaidAt = nil
		inst.PaidBy = nil
	}
	loan.Installments[installmentID] = inst
	return nil
}
