package handlers

import (
	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/core/domain"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/pagination"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

// SavingsHandler handles deposit, withdrawal and savings history endpoints
type SavingsHandler struct {
	savingsService *services.SavingsService
}

// NewSavingsHandler creates a new savings handler
func NewSavingsHandler(savingsService *services.SavingsService) *SavingsHandler {
	return &SavingsHandler{savingsService: savingsService}
}

// TransactionRequest is a deposit or withdrawal. MemberID defaults to the caller.
type TransactionRequest struct {
	MemberID string          `json:"member_id"`
	Nominal  decimal.Decimal `json:"nominal"`
}

// Deposit
// @Summary Record a deposit
// @Tags Savings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body TransactionRequest true "Deposit"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /savings/deposit [post]
func (h *SavingsHandler) Deposit(c *fiber.Ctx) error {
	return h.record(c, domain.EntryDeposit)
}

// Withdraw
// @Summary Record a withdrawal
// @Tags Savings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body TransactionRequest true "Withdrawal"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /savings/withdraw [post]
func (h *SavingsHandler) Withdraw(c *fiber.Ctx) error {
	return h.record(c, domain.EntryWithdrawal)
}

func (h *SavingsHandler) record(c *fiber.Ctx, kind domain.EntryKind) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req TransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	memberID := req.MemberID
	if memberID == "" {
		memberID = actor.ID
	}

	acct, err := h.savingsService.RecordTransaction(c.Context(), actor, memberID, kind, req.Nominal)
	if err != nil {
		return fail(c, err, "Failed to record "+string(kind))
	}
	return response.Success(c, string(kind)+" recorded successfully", acct)
}

// GetMySavings
// @Summary Get my savings account
// @Tags Savings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /savings/my [get]
func (h *SavingsHandler) GetMySavings(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	acct, err := h.savingsService.GetMine(c.Context(), actor)
	if err != nil {
		return fail(c, err, "Failed to get savings")
	}
	return response.Success(c, "Savings retrieved successfully", acct)
}

// ListSavings
// @Summary List all savings accounts (Staff)
// @Tags Savings
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /savings [get]
func (h *SavingsHandler) ListSavings(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	accts, err := h.savingsService.List(c.Context(), actor)
	if err != nil {
		return fail(c, err, "Failed to list savings")
	}

	p := pagination.FromQuery(c)
	return response.Page(c, "Savings retrieved successfully", pagination.Slice(accts, p), p.Meta(int64(len(accts))))
}

// GetSavings
// @Summary Get savings account by ID
// @Tags Savings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /savings/{id} [get]
func (h *SavingsHandler) GetSavings(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	acct, err := h.savingsService.GetByID(c.Context(), actor, c.Params("id"))
	if err != nil {
		return fail(c, err, "Failed to get savings")
	}
	return response.Success(c, "Savings retrieved successfully", acct)
}

// GetHistory
// @Summary Savings entries, newest first
// @Tags Savings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /savings/{id}/entries [get]
func (h *SavingsHandler) GetHistory(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	entries, err := h.savingsService.History(c.Context(), actor, c.Params("id"))
	if err != nil {
		return fail(c, err, "Failed to get savings history")
	}

	p := pagination.FromQuery(c)
	return response.Page(c, "History retrieved successfully", pagination.Slice(entries, p), p.Meta(int64(len(entries))))
}

// DeleteEntry
// @Summary Delete a savings entry (Admin only)
// @Description Removes the entry and reverses its effect on the balance
// @Tags Savings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Param entry_id path string true "Entry ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /savings/{id}/entries/{entry_id} [delete]
func (h *SavingsHandler) DeleteEntry(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	acct, err := h.savingsService.DeleteTransaction(c.Context(), actor, c.Params("id"), c.Params("entry_id"))
	if err != nil {
		return fail(c, err, "Failed to delete entry")
	}
	return response.Success(c, "Entry deleted successfully", acct)
}

// DeleteSavings
// @Summary Delete a savings account (Admin only)
// @Tags Savings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Account ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /savings/{id} [delete]
func (h *SavingsHandler) DeleteSavings(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.savingsService.DeleteAccount(c.Context(), actor, c.Params("id")); err != nil {
		return fail(c, err, "Failed to delete savings account")
	}
	return response.Success(c, "Savings account deleted successfully", nil)
}
