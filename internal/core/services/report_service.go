package services

import (
	"context"
	"io"
	"time"

	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/ledger"
)

// ReportService folds the whole ledger into cooperative and member summaries
type ReportService struct {
	savingsRepo repositories.SavingsRepository
	loanRepo    repositories.LoanRepository
	now         func() time.Time
}

// NewReportService creates a new report service
func NewReportService(savingsRepo repositories.SavingsRepository, loanRepo repositories.LoanRepository) *ReportService {
	return &ReportService{savingsRepo: savingsRepo, loanRepo: loanRepo, now: time.Now}
}

func (s *ReportService) snapshot(ctx context.Context, filter repositories.LoanFilter) ([]*domain.SavingsAccount, []*domain.LoanAccount, error) {
	savings, err := s.savingsRepo.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	loans, err := s.loanRepo.List(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return savings, loans, nil
}

// Compute builds the cooperative report without an authorization check; used by scheduled jobs
func (s *ReportService) Compute(ctx context.Context) (ledger.Report, error) {
	savings, loans, err := s.snapshot(ctx, repositories.LoanFilter{})
	if err != nil {
		return ledger.Report{}, err
	}
	return ledger.ComputeReport(savings, loans, s.now()), nil
}

// Cooperative is the staff-facing cooperative report
func (s *ReportService) Cooperative(ctx context.Context, actor domain.Actor) (ledger.Report, error) {
	if err := actor.Require(domain.ActionViewReport, ""); err != nil {
		return ledger.Report{}, err
	}
	return s.Compute(ctx)
}

// Member summarises one member's savings and loans
func (s *ReportService) Member(ctx context.Context, actor domain.Actor, memberID string) (ledger.MemberSummary, error) {
	if err := actor.Require(domain.ActionViewMemberSummary, memberID); err != nil {
		return ledger.MemberSummary{}, err
	}

	var savings []*domain.SavingsAccount
	acct, err := s.savingsRepo.GetByMember(ctx, memberID)
	switch {
	case err == nil:
		savings = append(savings, acct)
	case !isNotFound(err):
		return ledger.MemberSummary{}, err
	}

	loans, err := s.loanRepo.List(ctx, repositories.LoanFilter{UserID: memberID})
	if err != nil {
		return ledger.MemberSummary{}, err
	}
	return ledger.ComputeMemberSummary(memberID, savings, loans, s.now()), nil
}

// ExportCSV writes the cooperative report as metric,value rows
func (s *ReportService) ExportCSV(ctx context.Context, actor domain.Actor, w io.Writer) error {
	report, err := s.Cooperative(ctx, actor)
	if err != nil {
		return err
	}
	return ledger.WriteReportCSV(w, report)
}
