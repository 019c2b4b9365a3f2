package services

import (
	"context"
	"log"
	"time"

	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/pkg/pubsub"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

const tokenCleanupSchedule = "@daily"

// CronSchedules are standard five-field cron specs
type CronSchedules struct {
	OverdueScan    string
	ReportSnapshot string
	Location       *time.Location
}

// CronService runs the overdue scan, the daily report snapshot and token cleanup
type CronService struct {
	cron      *cron.Cron
	schedules CronSchedules
	loanRepo  repositories.LoanRepository
	reports   *ReportService
	auth      *AuthService
	events    pubsub.Publisher
	now       func() time.Time
}

// NewCronService creates the scheduler; call Start to run it
func NewCronService(
	schedules CronSchedules,
	loanRepo repositories.LoanRepository,
	reports *ReportService,
	auth *AuthService,
	events pubsub.Publisher,
) *CronService {
	loc := schedules.Location
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.PrintfLogger(log.Default()))),
	)
	return &CronService{
		cron:      c,
		schedules: schedules,
		loanRepo:  loanRepo,
		reports:   reports,
		auth:      auth,
		events:    events,
		now:       time.Now,
	}
}

// Start registers every job and starts the scheduler. A bad schedule is an error.
func (s *CronService) Start() error {
	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"overdue scan", s.schedules.OverdueScan, func() { s.ScanOverdue(context.Background()) }},
		{"report snapshot", s.schedules.ReportSnapshot, func() { s.SnapshotReport(context.Background()) }},
		{"token cleanup", tokenCleanupSchedule, func() { s.CleanupTokens(context.Background()) }},
	}

	for _, j := range jobs {
		if j.spec == "" {
			log.Printf("⚠️ %s job disabled (no schedule)", j.name)
			continue
		}
		if _, err := s.cron.AddFunc(j.spec, j.fn); err != nil {
			return err
		}
		log.Printf("✅ Scheduled %s job: %s", j.name, j.spec)
	}

	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish
func (s *CronService) Stop() context.Context {
	return s.cron.Stop()
}

// OverdueInstallment is one finding of the overdue scan
type OverdueInstallment struct {
	LoanID        string          `json:"loan_id"`
	MemberID      string          `json:"member_id"`
	InstallmentID string          `json:"installment_id"`
	Seq           int             `json:"seq"`
	AmountDue     decimal.Decimal `json:"amount_due"`
	DueDate       time.Time       `json:"due_date"`
}

// ScanOverdue logs and publishes every unpaid installment past its due date
func (s *CronService) ScanOverdue(ctx context.Context) []OverdueInstallment {
	asOf := s.now()
	loans, err := s.loanRepo.ListOverdue(ctx, asOf)
	if err != nil {
		log.Printf("❌ Overdue scan failed: %v", err)
		return nil
	}

	var found []OverdueInstallment
	for _, loan := range loans {
		var perLoan []OverdueInstallment
		for _, inst := range loan.Installments {
			if inst.Status != domain.InstallmentUnpaid || !inst.DueDate.Before(asOf) {
				continue
			}
			perLoan = append(perLoan, OverdueInstallment{
				LoanID:        loan.ID,
				MemberID:      loan.UserID,
				InstallmentID: inst.ID,
				Seq:           inst.Seq,
				AmountDue:     inst.AmountDue,
				DueDate:       inst.DueDate,
			})
			log.Printf("⚠️ Overdue: loan %s installment #%d (%s) due %s",
				loan.ID, inst.Seq, inst.AmountDue.StringFixed(2), inst.DueDate.Format("2006-01-02"))
		}
		if len(perLoan) > 0 {
			s.events.Publish(pubsub.Event{
				Path: pubsub.LoanPath(loan.ID),
				Kind: pubsub.KindOverdue,
				At:   asOf,
				Data: perLoan,
			})
			found = append(found, perLoan...)
		}
	}

	log.Printf("✅ Overdue scan done: %d installments on %d loans", len(found), len(loans))
	return found
}

// SnapshotReport logs the cooperative totals
func (s *CronService) SnapshotReport(ctx context.Context) {
	r, err := s.reports.Compute(ctx)
	if err != nil {
		log.Printf("❌ Report snapshot failed: %v", err)
		return
	}
	log.Printf("📊 Report %s: savings=%s approved=%s unpaid=%s overdue=%s net=%s members=%d",
		r.AsOf.Format("2006-01-02"),
		r.TotalSavings.StringFixed(2),
		r.ApprovedPrincipal.StringFixed(2),
		r.UnpaidInstallments.StringFixed(2),
		r.OverdueAmount.StringFixed(2),
		r.NetPosition.StringFixed(2),
		r.MemberCount,
	)
}

// CleanupTokens purges expired refresh tokens
func (s *CronService) CleanupTokens(ctx context.Context) {
	if err := s.auth.CleanupExpired(ctx); err != nil {
		log.Printf("❌ Token cleanup failed: %v", err)
	}
}
