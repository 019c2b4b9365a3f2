package handlers

import (
	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/pagination"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles loan application and status endpoints
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// StatusRequest sets a loan or installment status
type StatusRequest struct {
	Status string `json:"status" example:"approved"`
}

// ApplyLoan
// @Summary Apply for a loan
// @Description Originates a pending loan with its full installment schedule. Give rate_id, or months and monthly_rate_percent.
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ApplyLoanInput true "Application"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) ApplyLoan(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var input services.ApplyLoanInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	loan, err := h.loanService.Apply(c.Context(), actor, input)
	if err != nil {
		return fail(c, err, "Failed to apply for loan")
	}
	return response.Created(c, "Loan application submitted", loan)
}

// GetMyLoans
// @Summary My loans
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /loans/my [get]
func (h *LoanHandler) GetMyLoans(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	loans, err := h.loanService.ListMine(c.Context(), actor)
	if err != nil {
		return fail(c, err, "Failed to list loans")
	}
	return response.Success(c, "Loans retrieved successfully", loans)
}

// ListLoans
// @Summary List loans (Staff)
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending, approved or rejected"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) ListLoans(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	loans, err := h.loanService.List(c.Context(), actor, c.Query("status"))
	if err != nil {
		return fail(c, err, "Failed to list loans")
	}

	p := pagination.FromQuery(c)
	return response.Page(c, "Loans retrieved successfully", pagination.Slice(loans, p), p.Meta(int64(len(loans))))
}

// GetLoan
// @Summary Get loan by ID
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) GetLoan(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	loan, err := h.loanService.Get(c.Context(), actor, c.Params("id"))
	if err != nil {
		return fail(c, err, "Failed to get loan")
	}
	return response.Success(c, "Loan retrieved successfully", loan)
}

// UpdateLoanStatus
// @Summary Approve or reject a pending loan (Staff)
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param body body StatusRequest true "approved or rejected"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/status [put]
func (h *LoanHandler) UpdateLoanStatus(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	loan, err := h.loanService.SetStatus(c.Context(), actor, c.Params("id"), req.Status)
	if err != nil {
		return fail(c, err, "Failed to update loan status")
	}
	return response.Success(c, "Loan status updated", loan)
}

// UpdateInstallmentStatus
// @Summary Mark an installment paid (Staff) or unpaid (Admin)
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Param installment_id path string true "Installment ID"
// @Param body body StatusRequest true "paid or unpaid"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans/{id}/installments/{installment_id}/status [put]
func (h *LoanHandler) UpdateInstallmentStatus(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	loan, err := h.loanService.SetInstallmentStatus(c.Context(), actor, c.Params("id"), c.Params("installment_id"), req.Status)
	if err != nil {
		return fail(c, err, "Failed to update installment status")
	}
	return response.Success(c, "Installment status updated", loan)
}

// DeleteLoan
// @Summary Delete a loan and its schedule (Admin only)
// @Tags Loans
// @Produce json
// @Security BearerAuth
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [delete]
func (h *LoanHandler) DeleteLoan(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.loanService.Delete(c.Context(), actor, c.Params("id")); err != nil {
		return fail(c, err, "Failed to delete loan")
	}
	return response.Success(c, "Loan deleted successfully", nil)
}
