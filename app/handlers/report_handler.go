package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/jashub/parcelhub/app/dto"
	businessflow "github.com/jashub/parcelhub/business_flow"
)

// ReportHandlerInterface defines the contract for report handlers
type ReportHandlerInterface interface {
	Summary(c fiber.Ctx) error
	Excel(c fiber.Ctx) error
}

// ReportHandler serves admin reports
type ReportHandler struct {
	baseHandler
	flow businessflow.ReportFlow
}

func NewReportHandler(flow businessflow.ReportFlow) *ReportHandler {
	return &ReportHandler{baseHandler: newBaseHandler(), flow: flow}
}

func (h *ReportHandler) reportRequest(c fiber.Ctx) (*dto.ReportRequest, error) {
	from, err := dateParam(c, "from", false)
	if err != nil {
		return nil, err
	}
	to, err := dateParam(c, "to", true)
	if err != nil {
		return nil, err
	}
	return &dto.ReportRequest{From: from, To: to}, nil
}

// Summary Report
// @Description Parcel counts per status, parcels overdue right now with their outstanding charges, collected revenue and courier volumes
// @Tags Admin Reports
// @Produce json
// @Security ApiKeyAuth
// @Param from query string false "Intake from (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Intake to, inclusive (RFC3339 or YYYY-MM-DD)"
// @Success 200 {object} dto.APIResponse{data=dto.ReportSummaryResponse} "Report generated"
// @Failure 400 {object} dto.APIResponse "Invalid date range"
// @Failure 401 {object} dto.APIResponse "Missing or invalid API key"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/reports/summary [get]
func (h *ReportHandler) Summary(c fiber.Ctx) error {
	req, err := h.reportRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date", "INVALID_DATE", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/reports/summary")
	defer cancel()

	result, err := h.flow.Summary(ctx, req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to generate report", "REPORT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Report generated successfully", result)
}

// Excel Report
// @Description Download parcels with their pricing as an Excel workbook, plus a summary sheet
// @Tags Admin Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param from query string false "Intake from (RFC3339 or YYYY-MM-DD)"
// @Param to query string false "Intake to, inclusive (RFC3339 or YYYY-MM-DD)"
// @Success 200 {file} file "Excel workbook"
// @Failure 400 {object} dto.APIResponse "Invalid date range"
// @Failure 401 {object} dto.APIResponse "Missing or invalid API key"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/reports/parcels.xlsx [get]
func (h *ReportHandler) Excel(c fiber.Ctx) error {
	req, err := h.reportRequest(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date", "INVALID_DATE", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/reports/parcels.xlsx")
	defer cancel()

	file, err := h.flow.ExcelReport(ctx, req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to generate report", "REPORT_FAILED")
	}

	c.Set(fiber.HeaderContentType, file.ContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+file.FileName)
	return c.Status(fiber.StatusOK).Send(file.Data)
}
