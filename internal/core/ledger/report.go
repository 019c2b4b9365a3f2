package ledger

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"coop-ledger/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Report is the cooperative-wide financial summary
type Report struct {
	AsOf time.Time `json:"as_of"`

	TotalSavings     decimal.Decimal `json:"total_savings"`
	TotalDeposits    decimal.Decimal `json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `json:"total_withdrawals"`

	ApprovedPrincipal decimal.Decimal `json:"approved_principal"`
	PendingPrincipal  decimal.Decimal `json:"pending_principal"`
	RejectedPrincipal decimal.Decimal `json:"rejected_principal"`

	PaidInstallments   decimal.Decimal `json:"paid_installments"`
	UnpaidInstallments decimal.Decimal `json:"unpaid_installments"`
	OverdueAmount      decimal.Decimal `json:"overdue_amount"`
	ProjectedInterest  decimal.Decimal `json:"projected_interest"`

	// NetPosition = approved principal + unpaid installments − total savings
	NetPosition decimal.Decimal `json:"net_position"`

	MemberCount   int `json:"member_count"`
	PendingLoans  int `json:"pending_loans"`
	ApprovedLoans int `json:"approved_loans"`
	RejectedLoans int `json:"rejected_loans"`
}

// ComputeReport folds every savings account and loan into a Report.
// Nil records and unknown statuses contribute nothing.
func ComputeReport(savings []*domain.SavingsAccount, loans []*domain.LoanAccount, asOf time.Time) Report {
	r := Report{
		AsOf:               asOf,
		TotalSavings:       decimal.Zero,
		TotalDeposits:      decimal.Zero,
		TotalWithdrawals:   decimal.Zero,
		ApprovedPrincipal:  decimal.Zero,
		PendingPrincipal:   decimal.Zero,
		RejectedPrincipal:  decimal.Zero,
		PaidInstallments:   decimal.Zero,
		UnpaidInstallments: decimal.Zero,
		OverdueAmount:      decimal.Zero,
		ProjectedInterest:  decimal.Zero,
	}

	members := make(map[string]struct{})
	for _, acct := range savings {
		if acct == nil {
			continue
		}
		members[acct.UserID] = struct{}{}
		r.TotalSavings = r.TotalSavings.Add(acct.Total)
		for _, e := range acct.Entries {
			switch e.Kind {
			case domain.EntryDeposit:
				r.TotalDeposits = r.TotalDeposits.Add(e.Nominal)
			case domain.EntryWithdrawal:
				r.TotalWithdrawals = r.TotalWithdrawals.Add(e.Nominal)
			}
		}
	}
	r.MemberCount = len(members)

	for _, loan := range loans {
		if loan == nil {
			continue
		}
		switch loan.Status {
		case domain.LoanPending:
			r.PendingLoans++
			r.PendingPrincipal = r.PendingPrincipal.Add(loan.Principal)
		case domain.LoanRejected:
			r.RejectedLoans++
			r.RejectedPrincipal = r.RejectedPrincipal.Add(loan.Principal)
		case domain.LoanApproved:
			r.ApprovedLoans++
			r.ApprovedPrincipal = r.ApprovedPrincipal.Add(loan.Principal)
			if loan.Tenor.Months > 0 {
				r.ProjectedInterest = r.ProjectedInterest.Add(TotalInterest(loan.Principal, loan.Tenor))
			}
			for _, inst := range loan.Installments {
				switch inst.Status {
				case domain.InstallmentPaid:
					r.PaidInstallments = r.PaidInstallments.Add(inst.AmountDue)
				case domain.InstallmentUnpaid:
					r.UnpaidInstallments = r.UnpaidInstallments.Add(inst.AmountDue)
					if inst.DueDate.Before(asOf) {
						r.OverdueAmount = r.OverdueAmount.Add(inst.AmountDue)
					}
				}
			}
		}
	}

	r.NetPosition = r.ApprovedPrincipal.Add(r.UnpaidInstallments).Sub(r.TotalSavings)
	return r
}

// MemberSummary is one member's view of their own savings and loans
type MemberSummary struct {
	MemberID        string              `json:"member_id"`
	SavingsTotal    decimal.Decimal     `json:"savings_total"`
	PendingLoans    int                 `json:"pending_loans"`
	ApprovedLoans   int                 `json:"approved_loans"`
	RejectedLoans   int                 `json:"rejected_loans"`
	RemainingAmount decimal.Decimal     `json:"remaining_amount"`
	OverdueAmount   decimal.Decimal     `json:"overdue_amount"`
	NextDue         *domain.Installment `json:"next_due,omitempty"`
	NextDueLoanID   string              `json:"next_due_loan_id,omitempty"`
}

// ComputeMemberSummary folds the records owned by memberID
func ComputeMemberSummary(memberID string, savings []*domain.SavingsAccount, loans []*domain.LoanAccount, asOf time.Time) MemberSummary {
	s := MemberSummary{
		MemberID:        memberID,
		SavingsTotal:    decimal.Zero,
		RemainingAmount: decimal.Zero,
		OverdueAmount:   decimal.Zero,
	}

	for _, acct := range savings {
		if acct != nil && acct.UserID == memberID {
			s.SavingsTotal = s.SavingsTotal.Add(acct.Total)
		}
	}

	for _, loan := range loans {
		if loan == nil || loan.UserID != memberID {
			continue
		}
		switch loan.Status {
		case domain.LoanPending:
			s.PendingLoans++
		case domain.LoanRejected:
			s.RejectedLoans++
		case domain.LoanApproved:
			s.ApprovedLoans++
			for _, inst := range SortedInstallments(loan) {
				if inst.Status != domain.InstallmentUnpaid {
					continue
				}
				s.RemainingAmount = s.RemainingAmount.Add(inst.AmountDue)
				if inst.DueDate.Before(asOf) {
					s.OverdueAmount = s.OverdueAmount.Add(inst.AmountDue)
				}
				if s.NextDue == nil || inst.DueDate.Before(s.NextDue.DueDate) {
					next := inst
					s.NextDue = &next
					s.NextDueLoanID = loan.ID
				}
			}
		}
	}
	return s
}

// Rows returns the report as (metric, value) pairs in a stable order. Money is fixed to 2 decimals, counts are integers.
func (r Report) Rows() [][2]string {
	money := func(d decimal.Decimal) string { return d.StringFixed(2) }
	count := strconv.Itoa
	return [][2]string{
		{"total_savings", money(r.TotalSavings)},
		{"total_deposits", money(r.TotalDeposits)},
		{"total_withdrawals", money(r.TotalWithdrawals)},
		{"approved_principal", money(r.ApprovedPrincipal)},
		{"pending_principal", money(r.PendingPrincipal)},
		{"rejected_principal", money(r.RejectedPrincipal)},
		{"paid_installments", money(r.PaidInstallments)},
		{"unpaid_installments", money(r.UnpaidInstallments)},
		{"overdue_amount", money(r.OverdueAmount)},
		{"projected_interest", money(r.ProjectedInterest)},
		{"net_position", money(r.NetPosition)},
		{"member_count", count(r.MemberCount)},
		{"pending_loans", count(r.PendingLoans)},
		{"approved_loans", count(r.ApprovedLoans)},
		{"rejected_loans", count(r.RejectedLoans)},
	}
}

// WriteReportCSV writes the report as a two-column metric,value table
func WriteReportCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"metric", "value"}); err != nil {
		return err
	}
	for _, row := range r.Rows() {
		if err := cw.Write([]string{row[0], row[1]}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
