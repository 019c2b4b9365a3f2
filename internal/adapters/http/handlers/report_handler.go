package handlers

import (
	"bytes"
	"fmt"

	"coop-ledger/internal/adapters/http/middleware"
	"coop-ledger/internal/core/services"
	"coop-ledger/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ReportHandler handles the cooperative and member reports
type ReportHandler struct {
	reportService *services.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportService *services.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// GetSummary returns the cooperative report
// @Summary Cooperative financial report (Staff)
// @Description Savings, loan portfolio and net position as of now
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /reports/summary [get]
func (h *ReportHandler) GetSummary(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	report, err := h.reportService.Cooperative(c.Context(), actor)
	if err != nil {
		return fail(c, err, "Failed to compute report")
	}
	return response.Success(c, "Report computed successfully", report)
}

// ExportSummary
// @Summary Cooperative financial report as CSV (Staff)
// @Tags Reports
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {string} string "metric,value rows"
// @Failure 403 {object} response.Response
// @Router /reports/summary.csv [get]
func (h *ReportHandler) ExportSummary(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	var buf bytes.Buffer
	if err := h.reportService.ExportCSV(c.Context(), actor, &buf); err != nil {
		return fail(c, err, "Failed to export report")
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "cooperative-report.csv"))
	return c.Send(buf.Bytes())
}

// GetMemberSummary
// @Summary One member's savings and loan summary
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Member ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /reports/member/{id} [get]
func (h *ReportHandler) GetMemberSummary(c *fiber.Ctx) error {
	actor, ok := middleware.CurrentActor(c)
	if !ok {
		return unauthorized(c)
	}

	summary, err := h.reportService.Member(c.Context(), actor, c.Params("id"))
	if err != nil {
		return fail(c, err, "Failed to compute member summary")
	}
	return response.Success(c, "Member summary computed successfully", summary)
}
