package handlers

import (
	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// RateHandler serves the tenor/rate table
type RateHandler struct {
	rateService *services.RateService
}

// NewRateHandler creates a new rate handler
func NewRateHandler(rateService *services.RateService) *RateHandler {
	return &RateHandler{rateService: rateService}
}

// ListRates
// @Summary List rates
// @Description Tenor/rate pairs used to pre-fill loan applications
// @Tags Rates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /rates [get]
func (h *RateHandler) ListRates(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	rates, err := h.rateService.List(c.Context(), actor)
	if err != nil {
		return fail(c, err, "Failed to list rates")
	}
	return response.Success(c, "Rates retrieved successfully", rates)
}

// CreateRate
// @Summary Create rate (Admin only)
// @Tags Rates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.RateInput true "Rate"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /rates [post]
func (h *RateHandler) CreateRate(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var input services.RateInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	rate, err := h.rateService.Create(c.Context(), actor, input)
	if err != nil {
		return fail(c, err, "Failed to create rate")
	}
	return response.Created(c, "Rate created successfully", rate)
}

// UpdateRate
// @Summary Update rate (Admin only)
// @Tags Rates
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Rate ID"
// @Param body body services.RateInput true "Rate"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /rates/{id} [put]
func (h *RateHandler) UpdateRate(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var input services.RateInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	rate, err := h.rateService.Update(c.Context(), actor, c.Params("id"), input)
	if err != nil {
		return fail(c, err, "Failed to update rate")
	}
	return response.Success(c, "Rate updated successfully", rate)
}

// DeleteRate
// @Summary Delete rate (Admin only)
// @Tags Rates
// @Produce json
// @Security BearerAuth
// @Param id path string true "Rate ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /rates/{id} [delete]
func (h *RateHandler) DeleteRate(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.rateService.Delete(c.Context(), actor, c.Params("id")); err != nil {
		return fail(c, err, "Failed to delete rate")
	}
	return response.Success(c, "Rate deleted successfully", nil)
}
