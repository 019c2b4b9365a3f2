package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"coop-ledger/internal/adapters/persistence/memory"
	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/pkg/jwt"
	"coop-ledger/internal/pkg/password"
	"coop-ledger/internal/pkg/pubsub"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	store *repositories.Store
	hub   *pubsub.Hub
	clock time.Time

	auth    *AuthService
	users   *UserService
	rates   *RateService
	savings *SavingsService
	loans   *LoanService
	reports *ReportService
	cron    *CronService

	admin  domain.Actor
	teller domain.Actor
	member domain.Actor
	other  domain.Actor
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupSuite() {
	password.Cost = bcrypt.MinCost
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New().Store()
	s.hub = pubsub.NewHub(32)
	s.clock = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)
	now := func() time.Time { return s.clock }

	signer := jwt.NewSigner("access", "refresh", 15, 7)
	signer.Now = now

	s.auth = NewAuthService(s.store.Users, s.store.RefreshTokens, signer)
	s.users = NewUserService(s.store.Users, s.hub)
	s.rates = NewRateService(s.store.Rates, s.hub)
	s.savings = NewSavingsService(s.store.Savings, s.store.Users, s.hub)
	s.loans = NewLoanService(s.store.Loans, s.store.Users, s.store.Rates, s.hub)
	s.reports = NewReportService(s.store.Savings, s.store.Loans)
	s.cron = NewCronService(CronSchedules{}, s.store.Loans, s.reports, s.auth, s.hub)
	s.auth.now, s.users.now, s.rates.now = now, now, now
	s.savings.now, s.loans.now, s.reports.now, s.cron.now = now, now, now, now

	s.admin = s.seedUser("admin", domain.RoleAdmin)
	s.teller = s.seedUser("teller", domain.RoleTeller)
	s.member = s.seedUser("member", domain.RoleMember)
	s.other = s.seedUser("other", domain.RoleMember)
}

func (s *ServiceSuite) seedUser(username string, role domain.Role) domain.Actor {
	u, err := BuildUser(&CreateUserInput{
		Username: username, FullName: strings.ToUpper(username), Password: "password123", Role: string(role),
	})
	s.Require().NoError(err)
	s.Require().NoError(s.store.Users.Create(s.ctx, u))
	return domain.Actor{ID: u.ID, Role: role}
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// ============================================================
// Savings
// ============================================================

func (s *ServiceSuite) TestSavings_DepositWithdrawScenario() {
	events, cancel := s.hub.Subscribe(pubsub.SavingsRoot)
	defer cancel()

	acct, err := s.savings.RecordTransaction(s.ctx, s.member, s.member.ID, domain.EntryDeposit, d("50000"))
	s.Require().NoError(err)
	s.True(acct.Total.Equal(d("50000")))

	acct, err = s.savings.RecordTransaction(s.ctx, s.teller, s.member.ID, domain.EntryWithdrawal, d("20000"))
	s.Require().NoError(err)
	s.True(acct.Total.Equal(d("30000")))
	s.Len(acct.Entries, 2)

	_, err = s.savings.RecordTransaction(s.ctx, s.member, s.member.ID, domain.EntryWithdrawal, d("40000"))
	s.ErrorIs(err, domain.ErrInsufficientFunds)

	mine, err := s.savings.GetMine(s.ctx, s.member)
	s.Require().NoError(err)
	s.True(mine.Total.Equal(d("30000")))
	s.Len(mine.Entries, 2)

	first := <-events
	s.Equal(pubsub.SavingsPath(acct.ID), first.Path)
	s.Equal(pubsub.KindUpdated, first.Kind)
}

func (s *ServiceSuite) TestSavings_Authorization() {
	_, err := s.savings.RecordTransaction(s.ctx, s.member, s.other.ID, domain.EntryDeposit, d("10"))
	s.ErrorIs(err, domain.ErrForbidden)

	_, err = s.savings.RecordTransaction(s.ctx, s.teller, "ghost", domain.EntryDeposit, d("10"))
	s.ErrorIs(err, domain.ErrNotFound)

	_, err = s.savings.RecordTransaction(s.ctx, s.teller, s.member.ID, domain.EntryDeposit, d("0"))
	s.ErrorIs(err, domain.ErrInvalidAmount)

	_, err = s.savings.List(s.ctx, s.member)
	s.ErrorIs(err, domain.ErrForbidden)
}

func (s *ServiceSuite) TestSavings_RejectsSubCentAmounts() {
	acct, err := s.savings.RecordTransaction(s.ctx, s.teller, s.member.ID, domain.EntryDeposit, d("0.01"))
	s.Require().NoError(err)

	for _, nominal := range []string{"0.005", "0.0001"} {
		_, err = s.savings.RecordTransaction(s.ctx, s.teller, s.member.ID, domain.EntryDeposit, d(nominal))
		s.ErrorIs(err, domain.ErrInvalidAmount, nominal)
		_, err = s.savings.RecordTransaction(s.ctx, s.teller, s.member.ID, domain.EntryWithdrawal, d(nominal))
		s.ErrorIs(err, domain.ErrInvalidAmount, nominal)
	}

	mine, err := s.savings.GetMine(s.ctx, s.member)
	s.Require().NoError(err)
	s.True(mine.Total.Equal(d("0.01")))
	s.Len(mine.Entries, 1)
	s.Equal(acct.ID, mine.ID)

	rate := d("1")
	_, err = s.loans.Apply(s.ctx, s.member, ApplyLoanInput{
		Principal: d("1000.005"), Months: 3, MonthlyRatePercent: &rate,
	})
	s.ErrorIs(err, domain.ErrInvalidAmount)
}

func (s *ServiceSuite) TestSavings_DeleteTransaction() {
	acct, err := s.savings.RecordTransaction(s.ctx, s.teller, s.member.ID, domain.EntryDeposit, d("100"))
	s.Require().NoError(err)
	acct, err = s.savings.RecordTransaction(s.ctx, s.teller, s.member.ID, domain.EntryWithdrawal, d("80"))
	s.Require().NoError(err)

	var depositID string
	for _, e := range acct.Entries {
		if e.Kind == domain.EntryDeposit {
			depositID = e.ID
		}
	}

	_, err = s.savings.DeleteTransaction(s.ctx, s.teller, acct.ID, depositID)
	s.ErrorIs(err, domain.ErrForbidden)

	_, err = s.savings.DeleteTransaction(s.ctx, s.admin, acct.ID, depositID)
	s.ErrorIs(err, domain.ErrWouldGoNegative)

	history, err := s.savings.History(s.ctx, s.member, acct.ID)
	s.Require().NoError(err)
	s.Len(history, 2)

	_, err = s.savings.History(s.ctx, s.other, acct.ID)
	s.ErrorIs(err, domain.ErrForbidden)

	s.Require().NoError(s.savings.DeleteAccount(s.ctx, s.admin, acct.ID))
	mine, err := s.savings.GetMine(s.ctx, s.member)
	s.Require().NoError(err)
	s.True(mine.Total.IsZero())
}

// ============================================================
// Loans
// ============================================================

func (s *ServiceSuite) applyReference() *LoanResponse {
	rate := d("2")
	loan, err := s.loans.Apply(s.ctx, s.member, ApplyLoanInput{
		Principal: d("1200000"), Months: 12, MonthlyRatePercent: &rate,
	})
	s.Require().NoError(err)
	return loan
}

func (s *ServiceSuite) TestLoans_ApplyReferenceScenario() {
	loan := s.applyReference()

	s.Equal(domain.LoanPending, loan.Status)
	s.Equal(s.member.ID, loan.UserID)
	s.Require().Len(loan.Installments, 12)
	s.True(loan.TotalInterest.Equal(d("288000")))
	for i, inst := range loan.Installments {
		s.Equal(i+1, inst.Seq)
		s.Equal("124000.00", inst.AmountDue.StringFixed(2))
	}
	s.Equal(time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC), loan.Installments[0].DueDate)
}

func (s *ServiceSuite) TestLoans_ApplyFromRateTable() {
	rate, err := s.rates.Create(s.ctx, s.admin, RateInput{Months: 6, MonthlyRatePercent: d("1.5")})
	s.Require().NoError(err)

	loan, err := s.loans.Apply(s.ctx, s.teller, ApplyLoanInput{
		MemberID: s.member.ID, Principal: d("600000"), RateID: rate.ID,
	})
	s.Require().NoError(err)
	s.Equal(6, loan.Tenor.Months)
	s.True(loan.Tenor.MonthlyRatePercent.Equal(d("1.5")))

	_, err = s.loans.Apply(s.ctx, s.member, ApplyLoanInput{Principal: d("1000")})
	s.ErrorIs(err, domain.ErrInvalidRate)

	_, err = s.loans.Apply(s.ctx, s.member, ApplyLoanInput{MemberID: s.other.ID, Principal: d("1000"), RateID: rate.ID})
	s.ErrorIs(err, domain.ErrForbidden)
}

func (s *ServiceSuite) TestLoans_StatusMachine() {
	loan := s.applyReference()
	instID := loan.Installments[0].ID

	_, err := s.loans.SetStatus(s.ctx, s.member, loan.ID, "approved")
	s.ErrorIs(err, domain.ErrForbidden)

	_, err = s.loans.SetInstallmentStatus(s.ctx, s.teller, loan.ID, instID, "paid")
	s.ErrorIs(err, domain.ErrLoanNotApproved)

	approved, err := s.loans.SetStatus(s.ctx, s.teller, loan.ID, "approved")
	s.Require().NoError(err)
	s.Equal(domain.LoanApproved, approved.Status)
	s.Equal(loan.Installments, approved.Installments)

	_, err = s.loans.SetStatus(s.ctx, s.admin, loan.ID, "rejected")
	s.ErrorIs(err, domain.ErrIllegalTransition)

	paid, err := s.loans.SetInstallmentStatus(s.ctx, s.teller, loan.ID, instID, "paid")
	s.Require().NoError(err)
	s.Equal(domain.InstallmentPaid, paid.Installments[0].Status)

	again, err := s.loans.SetInstallmentStatus(s.ctx, s.teller, loan.ID, instID, "paid")
	s.Require().NoError(err)
	s.Equal(paid.Installments, again.Installments)

	_, err = s.loans.SetInstallmentStatus(s.ctx, s.teller, loan.ID, instID, "unpaid")
	s.ErrorIs(err, domain.ErrForbidden)

	reverted, err := s.loans.SetInstallmentStatus(s.ctx, s.admin, loan.ID, instID, "unpaid")
	s.Require().NoError(err)
	s.Equal(domain.InstallmentUnpaid, reverted.Installments[0].Status)
	s.Nil(reverted.Installments[0].PaidAt)
}

func (s *ServiceSuite) TestLoans_ListingAndDelete() {
	loan := s.applyReference()

	mine, err := s.loans.ListMine(s.ctx, s.member)
	s.Require().NoError(err)
	s.Len(mine, 1)

	theirs, err := s.loans.ListMine(s.ctx, s.other)
	s.Require().NoError(err)
	s.Empty(theirs)

	_, err = s.loans.Get(s.ctx, s.other, loan.ID)
	s.ErrorIs(err, domain.ErrForbidden)

	pending, err := s.loans.List(s.ctx, s.teller, "pending")
	s.Require().NoError(err)
	s.Len(pending, 1)

	_, err = s.loans.List(s.ctx, s.teller, "closed")
	s.ErrorIs(err, domain.ErrInvalidInput)

	s.ErrorIs(s.loans.Delete(s.ctx, s.teller, loan.ID), domain.ErrForbidden)
	s.Require().NoError(s.loans.Delete(s.ctx, s.admin, loan.ID))
	_, err = s.loans.Get(s.ctx, s.admin, loan.ID)
	s.ErrorIs(err, domain.ErrNotFound)
}

// ============================================================
// Reports & jobs
// ============================================================

func (s *ServiceSuite) TestReports_Cooperative() {
	rate := d("1")
	loan, err := s.loans.Apply(s.ctx, s.member, ApplyLoanInput{Principal: d("1000000"), Months: 10, MonthlyRatePercent: &rate})
	s.Require().NoError(err)
	_, err = s.loans.SetStatus(s.ctx, s.teller, loan.ID, "approved")
	s.Require().NoError(err)
	_, err = s.savings.RecordTransaction(s.ctx, s.teller, s.member.ID, domain.EntryDeposit, d("500000"))
	s.Require().NoError(err)

	_, err = s.reports.Cooperative(s.ctx, s.member)
	s.ErrorIs(err, domain.ErrForbidden)

	report, err := s.reports.Cooperative(s.ctx, s.teller)
	s.Require().NoError(err)

	unpaid := decimal.Zero
	for _, inst := range loan.Installments {
		unpaid = unpaid.Add(inst.AmountDue)
	}
	s.True(report.UnpaidInstallments.Equal(unpaid))
	s.True(report.NetPosition.Equal(d("1000000").Add(unpaid).Sub(d("500000"))))

	var buf bytes.Buffer
	s.Require().NoError(s.reports.ExportCSV(s.ctx, s.admin, &buf))
	s.True(strings.HasPrefix(buf.String(), "metric,value\n"))
	s.Contains(buf.String(), "total_savings,500000.00")

	summary, err := s.reports.Member(s.ctx, s.member, s.member.ID)
	s.Require().NoError(err)
	s.True(summary.SavingsTotal.Equal(d("500000")))
	s.Equal(1, summary.ApprovedLoans)

	_, err = s.reports.Member(s.ctx, s.member, s.other.ID)
	s.ErrorIs(err, domain.ErrForbidden)
}

func (s *ServiceSuite) TestCron_ScanOverdue() {
	loan := s.applyReference()
	_, err := s.loans.SetStatus(s.ctx, s.admin, loan.ID, "approved")
	s.Require().NoError(err)

	events, cancel := s.hub.Subscribe(pubsub.LoanPath(loan.ID))
	defer cancel()

	s.clock = time.Date(2025, time.April, 1, 8, 30, 0, 0, time.UTC)
	found := s.cron.ScanOverdue(s.ctx)
	s.Require().Len(found, 2)
	s.ElementsMatch([]int{1, 2}, []int{found[0].Seq, found[1].Seq})
	s.Equal(s.member.ID, found[0].MemberID)

	e := <-events
	s.Equal(pubsub.KindOverdue, e.Kind)
}

func (s *ServiceSuite) TestCron_StartRejectsBadSchedule() {
	c := NewCronService(CronSchedules{OverdueScan: "not a schedule"}, s.store.Loans, s.reports, s.auth, s.hub)
	s.Error(c.Start())
}

// ============================================================
// Auth & users
// ============================================================

func (s *ServiceSuite) TestAuth_LoginRefreshLogout() {
	_, err := s.auth.Login(s.ctx, &LoginInput{Username: "member", Password: "wrong-password"})
	s.ErrorIs(err, domain.ErrInvalidCredential)

	resp, err := s.auth.Login(s.ctx, &LoginInput{Username: "member", Password: "password123"})
	s.Require().NoError(err)
	s.Equal(domain.RoleMember, resp.User.Role)

	claims, err := s.auth.ValidateAccessToken(resp.AccessToken)
	s.Require().NoError(err)
	s.Equal(s.member.ID, claims.UserID)

	rotated, err := s.auth.RefreshToken(s.ctx, resp.RefreshToken)
	s.Require().NoError(err)
	s.NotEqual(resp.RefreshToken, rotated.RefreshToken)

	_, err = s.auth.RefreshToken(s.ctx, resp.RefreshToken)
	s.ErrorIs(err, ErrTokenRevoked)

	s.Require().NoError(s.auth.Logout(s.ctx, rotated.RefreshToken))
	_, err = s.auth.RefreshToken(s.ctx, rotated.RefreshToken)
	s.ErrorIs(err, ErrTokenRevoked)
}

func (s *ServiceSuite) TestAuth_InactiveUser() {
	inactive := false
	_, err := s.users.Update(s.ctx, s.admin, s.member.ID, &UpdateUserInput{IsActive: &inactive})
	s.Require().NoError(err)

	_, err = s.auth.Login(s.ctx, &LoginInput{Username: "member", Password: "password123"})
	s.ErrorIs(err, ErrUserInactive)
}

func (s *ServiceSuite) TestUsers_AdminManagement() {
	created, err := s.users.Create(s.ctx, s.admin, &CreateUserInput{
		Username: "budi", FullName: "Budi Santoso", Password: "password123", Role: "OFFICER",
	})
	s.Require().NoError(err)
	s.Equal(domain.RoleTeller, created.Role)

	_, err = s.users.Create(s.ctx, s.admin, &CreateUserInput{
		Username: "budi", FullName: "Budi", Password: "password123", Role: "member",
	})
	s.ErrorIs(err, ErrUserAlreadyExists)

	_, err = s.users.Create(s.ctx, s.admin, &CreateUserInput{
		Username: "rina", FullName: "Rina", Password: "password123", Role: "superuser",
	})
	s.ErrorIs(err, domain.ErrInvalidRole)

	_, err = s.users.Create(s.ctx, s.teller, &CreateUserInput{
		Username: "eko", FullName: "Eko", Password: "password123", Role: "member",
	})
	s.ErrorIs(err, domain.ErrForbidden)

	s.ErrorIs(s.users.Delete(s.ctx, s.admin, s.admin.ID), ErrCannotDeleteSelf)

	role := "member"
	_, err = s.users.Update(s.ctx, s.admin, s.admin.ID, &UpdateUserInput{Role: &role})
	s.ErrorIs(err, ErrCannotChangeOwnRole)

	s.Require().NoError(s.users.Delete(s.ctx, s.admin, created.ID))
	list, err := s.users.List(s.ctx, s.admin, 0, 10)
	s.Require().NoError(err)
	s.EqualValues(4, list.Total)
}

func (s *ServiceSuite) TestUsers_ChangePassword() {
	err := s.users.ChangePassword(s.ctx, s.member.ID, &ChangePasswordInput{OldPassword: "nope", NewPassword: "newpassword1"})
	s.ErrorIs(err, ErrOldPasswordWrong)

	s.Require().NoError(s.users.ChangePassword(s.ctx, s.member.ID, &ChangePasswordInput{
		OldPassword: "password123", NewPassword: "newpassword1",
	}))
	_, err = s.auth.Login(s.ctx, &LoginInput{Username: "member", Password: "newpassword1"})
	s.NoError(err)
}

func (s *ServiceSuite) TestRates_AdminOnly() {
	_, err := s.rates.Create(s.ctx, s.teller, RateInput{Months: 3, MonthlyRatePercent: d("1")})
	s.ErrorIs(err, domain.ErrForbidden)

	_, err = s.rates.Create(s.ctx, s.admin, RateInput{Months: 0, MonthlyRatePercent: d("1")})
	s.ErrorIs(err, domain.ErrInvalidTenor)

	created, err := s.rates.Create(s.ctx, s.admin, RateInput{Months: 3, MonthlyRatePercent: d("1")})
	s.Require().NoError(err)

	list, err := s.rates.List(s.ctx, s.member)
	s.Require().NoError(err)
	s.Len(list, 1)

	updated, err := s.rates.Update(s.ctx, s.admin, created.ID, RateInput{Months: 3, MonthlyRatePercent: d("1.25")})
	s.Require().NoError(err)
	s.True(updated.MonthlyRatePercent.Equal(d("1.25")))

	s.Require().NoError(s.rates.Delete(s.ctx, s.admin, created.ID))
	s.ErrorIs(s.rates.Delete(s.ctx, s.admin, created.ID), domain.ErrNotFound)
}
