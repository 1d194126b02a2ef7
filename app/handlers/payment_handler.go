package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/jashub/parcelhub/app/dto"
	businessflow "github.com/jashub/parcelhub/business_flow"
)

// PaymentHandlerInterface defines the contract for payment handlers
type PaymentHandlerInterface interface {
	Pay(c fiber.Ctx) error
	VerifyReceipt(c fiber.Ctx) error
	AdminList(c fiber.Ctx) error
}

// PaymentHandler serves simulated checkout and the payment ledger
type PaymentHandler struct {
	baseHandler
	flow businessflow.PaymentFlow
}

func NewPaymentHandler(flow businessflow.PaymentFlow) *PaymentHandler {
	return &PaymentHandler{baseHandler: newBaseHandler(), flow: flow}
}

// Pay Parcel
// @Description Pay the current price of a parcel and collect it. The pickup code sent at intake is required. The amount is fixed at this moment and a signed receipt is returned.
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.PayParcelRequest true "Payment details"
// @Success 201 {object} dto.APIResponse{data=dto.PayParcelResponse} "Parcel collected"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 403 {object} dto.APIResponse "Invalid pickup code"
// @Failure 404 {object} dto.APIResponse "Parcel not found"
// @Failure 409 {object} dto.APIResponse "Parcel already collected, returned, or being collected"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/payments [post]
func (h *PaymentHandler) Pay(c fiber.Ctx) error {
	var req dto.PayParcelRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/payments")
	defer cancel()

	result, err := h.flow.Pay(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to process payment", "PAYMENT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Payment completed and parcel collected", result)
}

// VerifyReceipt Payment
// @Description Check a receipt token and return what it attests
// @Tags Payments
// @Accept json
// @Produce json
// @Param request body dto.VerifyReceiptRequest true "Receipt token"
// @Success 200 {object} dto.APIResponse{data=dto.VerifyReceiptResponse} "Receipt is valid"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 422 {object} dto.APIResponse "Receipt invalid or expired"
// @Router /api/v1/payments/receipts/verify [post]
func (h *PaymentHandler) VerifyReceipt(c fiber.Ctx) error {
	var req dto.VerifyReceiptRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/payments/receipts/verify")
	defer cancel()

	result, err := h.flow.VerifyReceipt(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to verify receipt", "VERIFY_RECEIPT_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Receipt is valid", result)
}

// AdminList Payments
// @Description List collection payments, newest first, with revenue totals over the whole filter
// @Tags Admin Payments
// @Produce json
// @Security ApiKeyAuth
// @Param method query string false "card, ewallet or cash"
// @Param tracking_number query string false "Tracking number"
// @Param paid_from query string false "Paid from (RFC3339 or YYYY-MM-DD)"
// @Param paid_to query string false "Paid to, inclusive (RFC3339 or YYYY-MM-DD)"
// @Param page query integer false "Page number (default: 1)"
// @Param page_size query integer false "Items per page (default: 20, max: 100)"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListPaymentsResponse} "Payments retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Failure 401 {object} dto.APIResponse "Missing or invalid API key"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/payments [get]
func (h *PaymentHandler) AdminList(c fiber.Ctx) error {
	from, err := dateParam(c, "paid_from", false)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date", "INVALID_DATE", err.Error())
	}
	to, err := dateParam(c, "paid_to", true)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date", "INVALID_DATE", err.Error())
	}
	page, pageSize := pageParams(c)

	req := dto.AdminListPaymentsRequest{
		Method:         optionalQuery(c, "method"),
		TrackingNumber: optionalQuery(c, "tracking_number"),
		PaidFrom:       from,
		PaidTo:         to,
		Page:           page,
		PageSize:       pageSize,
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ValidationErrorResponse(c, err)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/payments")
	defer cancel()

	result, err := h.flow.AdminListPayments(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list payments", "ADMIN_LIST_PAYMENTS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Payments retrieved successfully", result)
}
