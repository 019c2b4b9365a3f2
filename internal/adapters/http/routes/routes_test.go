package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/adapters/persistence/memory"
	"coop-ledger/internal/adapters/persistence/repositories"
	"coop-ledger/internal/config"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/jwt"
	"coop-ledger/internal/pkg/password"
	"coop-ledger/internal/pkg/pubsub"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testUser struct {
	ID    string
	Token string
}

type APISuite struct {
	suite.Suite
	app    *fiber.App
	store  *repositories.Store
	signer *jwt.Signer

	admin  testUser
	teller testUser
	member testUser
	other  testUser
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupSuite() {
	password.Cost = bcrypt.MinCost
}

func (s *APISuite) SetupTest() {
	cfg := &config.Config{
		AppMode:     "dev",
		StoreDriver: config.StoreMemory,
		JWT:         config.JWTConfig{Secret: "a", RefreshSecret: "r", AccessTokenMins: 15, RefreshTokenDays: 7},
		Cookie:      config.CookieConfig{SameSite: "lax"},
	}
	config.AppConfig = cfg

	s.store = memory.New().Store()
	s.signer = jwt.NewSigner(cfg.JWT.Secret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTokenMins, cfg.JWT.RefreshTokenDays)
	hub := pubsub.NewHub(pubsub.DefaultBuffer)

	svc := Services{
		Auth:    services.NewAuthService(s.store.Users, s.store.RefreshTokens, s.signer),
		Users:   services.NewUserService(s.store.Users, hub),
		Rates:   services.NewRateService(s.store.Rates, hub),
		Savings: services.NewSavingsService(s.store.Savings, s.store.Users, hub),
		Loans:   services.NewLoanService(s.store.Loans, s.store.Users, s.store.Rates, hub),
		Reports: services.NewReportService(s.store.Savings, s.store.Loans),
	}

	s.app = fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	Setup(s.app, cfg, s.signer, hub, svc)

	s.admin = s.seed("admin", domain.RoleAdmin)
	s.teller = s.seed("teller", domain.RoleTeller)
	s.member = s.seed("member", domain.RoleMember)
	s.other = s.seed("other", domain.RoleMember)
}

func (s *APISuite) seed(username string, role domain.Role) testUser {
	u, err := services.BuildUser(&services.CreateUserInput{
		Username: username, FullName: username, Password: "password123", Role: string(role),
	})
	s.Require().NoError(err)
	s.Require().NoError(s.store.Users.Create(context.Background(), u))

	token, err := s.signer.AccessToken(u.ID, u.Username, string(u.Role))
	s.Require().NoError(err)
	return testUser{ID: u.ID, Token: token}
}

func (s *APISuite) do(method, path string, as *testUser, body interface{}) (*http.Response, envelope) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+as.Token)
	}

	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		s.Require().NoError(json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (s *APISuite) decode(env envelope, out interface{}) {
	s.Require().NoError(json.Unmarshal(env.Data, out), string(env.Data))
}

// ============================================================
// Health & auth
// ============================================================

func (s *APISuite) TestHealth() {
	resp, _ := s.do(http.MethodGet, "/health", nil, nil)
	s.Equal(fiber.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestProtectedRouteRequiresToken() {
	resp, env := s.do(http.MethodGet, "/api/v1/savings/my", nil, nil)
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
	s.False(env.Success)

	resp, _ = s.do(http.MethodGet, "/api/v1/savings/my", &testUser{Token: "garbage"}, nil)
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

func (s *APISuite) TestLoginAndMe() {
	resp, env := s.do(http.MethodPost, "/api/v1/auth/login", nil, map[string]string{
		"username": "member", "password": "password123",
	})
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Error)

	var auth services.AuthResponse
	s.decode(env, &auth)
	s.NotEmpty(auth.AccessToken)
	s.NotEmpty(auth.RefreshToken)
	s.NotContains(string(env.Data), "password")

	resp, env = s.do(http.MethodGet, "/api/v1/auth/me", &testUser{Token: auth.AccessToken}, nil)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var me services.UserResponse
	s.decode(env, &me)
	s.Equal(s.member.ID, me.ID)

	resp, _ = s.do(http.MethodPost, "/api/v1/auth/refresh", nil, map[string]string{"refresh_token": auth.RefreshToken})
	s.Equal(fiber.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodPost, "/api/v1/auth/refresh", nil, map[string]string{"refresh_token": auth.RefreshToken})
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/v1/auth/login", nil, map[string]string{
		"username": "member", "password": "wrong-password",
	})
	s.Equal(fiber.StatusUnauthorized, resp.StatusCode)
}

// ============================================================
// Savings
// ============================================================

func (s *APISuite) TestSavingsFlow() {
	resp, env := s.do(http.MethodPost, "/api/v1/savings/deposit", &s.member, map[string]string{"nominal": "50000"})
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Error)

	resp, env = s.do(http.MethodPost, "/api/v1/savings/withdraw", &s.teller, map[string]string{
		"member_id": s.member.ID, "nominal": "20000",
	})
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Error)
	var acct services.SavingsResponse
	s.decode(env, &acct)
	s.True(acct.Total.Equal(decimal.NewFromInt(30000)))

	resp, env = s.do(http.MethodPost, "/api/v1/savings/withdraw", &s.member, map[string]string{"nominal": "40000"})
	s.Equal(fiber.StatusUnprocessableEntity, resp.StatusCode)
	s.Contains(env.Error, "insufficient funds")

	resp, _ = s.do(http.MethodPost, "/api/v1/savings/deposit", &s.member, map[string]string{"nominal": "-5"})
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/v1/savings/deposit", &s.member, map[string]string{"nominal": "0.005"})
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/api/v1/savings/deposit", &s.member, map[string]string{
		"member_id": s.other.ID, "nominal": "10",
	})
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, env = s.do(http.MethodGet, "/api/v1/savings/"+acct.ID+"/entries", &s.member, nil)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var entries []services.EntryResponse
	s.decode(env, &entries)
	s.Len(entries, 2)

	resp, _ = s.do(http.MethodGet, "/api/v1/savings/"+acct.ID, &s.other, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)
}

func (s *APISuite) TestSavingsStaffRoutes() {
	resp, _ := s.do(http.MethodGet, "/api/v1/savings", &s.member, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, env := s.do(http.MethodPost, "/api/v1/savings/deposit", &s.teller, map[string]string{
		"member_id": s.member.ID, "nominal": "100",
	})
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var acct services.SavingsResponse
	s.decode(env, &acct)

	resp, _ = s.do(http.MethodGet, "/api/v1/savings", &s.teller, nil)
	s.Equal(fiber.StatusOK, resp.StatusCode)

	path := "/api/v1/savings/" + acct.ID + "/entries/" + acct.Entries[0].ID
	resp, _ = s.do(http.MethodDelete, path, &s.teller, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, env = s.do(http.MethodDelete, path, &s.admin, nil)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Error)
	s.decode(env, &acct)
	s.True(acct.Total.IsZero())
}

// ============================================================
// Loans
// ============================================================

func (s *APISuite) applyLoan() services.LoanResponse {
	resp, env := s.do(http.MethodPost, "/api/v1/loans", &s.member, map[string]interface{}{
		"principal": "1200000", "months": 12, "monthly_rate_percent": "2",
	})
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode, env.Error)
	var loan services.LoanResponse
	s.decode(env, &loan)
	return loan
}

func (s *APISuite) TestLoanFlow() {
	loan := s.applyLoan()
	s.Equal(domain.LoanPending, loan.Status)
	s.Require().Len(loan.Installments, 12)
	s.Equal("124000.00", loan.Installments[0].AmountDue.StringFixed(2))

	statusPath := "/api/v1/loans/" + loan.ID + "/status"
	instPath := "/api/v1/loans/" + loan.ID + "/installments/" + loan.Installments[0].ID + "/status"

	resp, _ := s.do(http.MethodPut, instPath, &s.teller, map[string]string{"status": "paid"})
	s.Equal(fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(http.MethodPut, statusPath, &s.member, map[string]string{"status": "approved"})
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, env := s.do(http.MethodPut, statusPath, &s.teller, map[string]string{"status": "approved"})
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Error)

	resp, _ = s.do(http.MethodPut, statusPath, &s.admin, map[string]string{"status": "rejected"})
	s.Equal(fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(http.MethodPut, statusPath, &s.admin, map[string]string{"status": "closed"})
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)

	resp, env = s.do(http.MethodPut, instPath, &s.teller, map[string]string{"status": "paid"})
	s.Require().Equal(fiber.StatusOK, resp.StatusCode, env.Error)
	s.decode(env, &loan)
	s.Equal(domain.InstallmentPaid, loan.Installments[0].Status)

	resp, _ = s.do(http.MethodPut, instPath, &s.teller, map[string]string{"status": "unpaid"})
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(http.MethodPut, instPath, &s.admin, map[string]string{"status": "unpaid"})
	s.Equal(fiber.StatusOK, resp.StatusCode)
}

func (s *APISuite) TestLoanVisibility() {
	loan := s.applyLoan()

	resp, env := s.do(http.MethodGet, "/api/v1/loans/my", &s.member, nil)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var mine []services.LoanResponse
	s.decode(env, &mine)
	s.Len(mine, 1)

	resp, _ = s.do(http.MethodGet, "/api/v1/loans/"+loan.ID, &s.other, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/v1/loans?status=pending", &s.member, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, env = s.do(http.MethodGet, "/api/v1/loans?status=pending", &s.teller, nil)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var pending []services.LoanResponse
	s.decode(env, &pending)
	s.Len(pending, 1)

	resp, _ = s.do(http.MethodGet, "/api/v1/loans/does-not-exist", &s.admin, nil)
	s.Equal(fiber.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/api/v1/loans/"+loan.ID, &s.teller, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)
	resp, _ = s.do(http.MethodDelete, "/api/v1/loans/"+loan.ID, &s.admin, nil)
	s.Equal(fiber.StatusOK, resp.StatusCode)
}

// ============================================================
// Reports, rates & users
// ============================================================

func (s *APISuite) TestReports() {
	s.applyLoan()

	resp, _ := s.do(http.MethodGet, "/api/v1/reports/summary", &s.member, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, env := s.do(http.MethodGet, "/api/v1/reports/summary", &s.teller, nil)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var report struct {
		PendingLoans     int             `json:"pending_loans"`
		PendingPrincipal decimal.Decimal `json:"pending_principal"`
	}
	s.decode(env, &report)
	s.Equal(1, report.PendingLoans)
	s.True(report.PendingPrincipal.Equal(decimal.NewFromInt(1200000)))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/summary.csv", nil)
	req.Header.Set("Authorization", "Bearer "+s.admin.Token)
	csvResp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	s.Equal(fiber.StatusOK, csvResp.StatusCode)
	s.Contains(csvResp.Header.Get("Content-Type"), "text/csv")
	body, _ := io.ReadAll(csvResp.Body)
	s.True(strings.HasPrefix(string(body), "metric,value\n"))
	s.Contains(string(body), "pending_principal,1200000.00")

	resp, _ = s.do(http.MethodGet, "/api/v1/reports/member/"+s.member.ID, &s.member, nil)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/api/v1/reports/member/"+s.member.ID, &s.other, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)
}

func (s *APISuite) TestRatesAndLoanFromRate() {
	resp, _ := s.do(http.MethodPost, "/api/v1/rates", &s.teller, map[string]interface{}{"months": 6, "monthly_rate_percent": "1.5"})
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, env := s.do(http.MethodPost, "/api/v1/rates", &s.admin, map[string]interface{}{"months": 6, "monthly_rate_percent": "1.5"})
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode, env.Error)
	var rate services.RateResponse
	s.decode(env, &rate)

	resp, env = s.do(http.MethodGet, "/api/v1/rates", &s.member, nil)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var rates []services.RateResponse
	s.decode(env, &rates)
	s.Len(rates, 1)

	resp, env = s.do(http.MethodPost, "/api/v1/loans", &s.member, map[string]interface{}{
		"principal": "600000", "rate_id": rate.ID,
	})
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode, env.Error)
	var loan services.LoanResponse
	s.decode(env, &loan)
	s.Len(loan.Installments, 6)
}

func (s *APISuite) TestUserManagement() {
	body := map[string]string{"username": "budi", "full_name": "Budi", "password": "password123", "role": "teller"}

	resp, _ := s.do(http.MethodPost, "/api/v1/users", &s.teller, body)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, env := s.do(http.MethodPost, "/api/v1/users", &s.admin, body)
	s.Require().Equal(fiber.StatusCreated, resp.StatusCode, env.Error)

	resp, _ = s.do(http.MethodPost, "/api/v1/users", &s.admin, body)
	s.Equal(fiber.StatusConflict, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/v1/users/"+s.member.ID, &s.member, nil)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/api/v1/users/"+s.other.ID, &s.member, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, env = s.do(http.MethodGet, "/api/v1/users?page=1&limit=2", &s.admin, nil)
	s.Require().Equal(fiber.StatusOK, resp.StatusCode)
	var users []services.UserResponse
	s.decode(env, &users)
	s.Len(users, 2)

	resp, _ = s.do(http.MethodDelete, "/api/v1/users/"+s.admin.ID, &s.admin, nil)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *APISuite) TestStreamRejectsForeignPaths() {
	resp, _ := s.do(http.MethodGet, "/api/v1/stream?path=org/ledger/loans", &s.member, nil)
	s.Equal(fiber.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/api/v1/stream?path=elsewhere", &s.teller, nil)
	s.Equal(fiber.StatusBadRequest, resp.StatusCode)
}

func (s *APISuite) TestCacheHeaders() {
	resp, _ := s.do(http.MethodGet, "/api/v1/savings/my", &s.member, nil)
	s.Equal("no-store, no-cache, must-revalidate", resp.Header.Get(fiber.HeaderCacheControl))

	resp, _ = s.do(http.MethodGet, "/api/v1/rates", &s.member, nil)
	s.Equal(fiber.StatusOK, resp.StatusCode)
	s.Equal("private, max-age=60", resp.Header.Get(fiber.HeaderCacheControl))
}
