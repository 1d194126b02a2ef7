package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/jashub/parcelhub/app/dto"
	businessflow "github.com/jashub/parcelhub/business_flow"
)

// ParcelHandlerInterface defines the contract for public parcel handlers
type ParcelHandlerInterface interface {
	Track(c fiber.Ctx) error
	Quote(c fiber.Ctx) error
	ListByRecipient(c fiber.Ctx) error
}

// ParcelHandler serves the student facing tracking endpoints
type ParcelHandler struct {
	baseHandler
	flow businessflow.ParcelFlow
}

func NewParcelHandler(flow businessflow.ParcelFlow) *ParcelHandler {
	return &ParcelHandler{baseHandler: newBaseHandler(), flow: flow}
}

// Track Parcel
// @Description Look up a parcel by tracking number. Returns the timeline and the price as of now; collected parcels show the amount that was paid.
// @Tags Parcels
// @Produce json
// @Param trackingNumber path string true "Tracking number"
// @Success 200 {object} dto.APIResponse{data=dto.TrackParcelResponse} "Parcel found"
// @Failure 400 {object} dto.APIResponse "Invalid tracking number"
// @Failure 404 {object} dto.APIResponse "Parcel not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/parcels/track/{trackingNumber} [get]
func (h *ParcelHandler) Track(c fiber.Ctx) error {
	tn := c.Params("trackingNumber")
	if !trackingNumberPattern.MatchString(tn) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tracking number", "INVALID_TRACKING_NUMBER", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/parcels/track")
	defer cancel()

	result, err := h.flow.Track(ctx, tn, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to track parcel", "TRACK_PARCEL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Parcel retrieved successfully", result)
}

// Quote Parcel
// @Description Price a parcel as of now without collecting it
// @Tags Parcels
// @Produce json
// @Param trackingNumber path string true "Tracking number"
// @Success 200 {object} dto.APIResponse{data=dto.QuoteResponse} "Current price"
// @Failure 400 {object} dto.APIResponse "Invalid tracking number"
// @Failure 404 {object} dto.APIResponse "Parcel not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/parcels/track/{trackingNumber}/quote [get]
func (h *ParcelHandler) Quote(c fiber.Ctx) error {
	tn := c.Params("trackingNumber")
	if !trackingNumberPattern.MatchString(tn) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tracking number", "INVALID_TRACKING_NUMBER", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/parcels/track/quote")
	defer cancel()

	result, err := h.flow.Quote(ctx, tn, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to quote parcel", "QUOTE_PARCEL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Quote computed successfully", result)
}

// ListByRecipient Parcels
// @Description List parcels waiting for a recipient, oldest first, each priced now, plus the total due
// @Tags Parcels
// @Produce json
// @Param recipient_email query string true "Recipient email"
// @Param page query integer false "Page number (default: 1)"
// @Param page_size query integer false "Items per page (default: 20, max: 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListRecipientParcelsResponse} "Parcels retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/parcels [get]
func (h *ParcelHandler) ListByRecipient(c fiber.Ctx) error {
	page, pageSize := pageParams(c)
	req := dto.ListRecipientParcelsRequest{
		RecipientEmail: c.Query("recipient_email"),
		Page:           page,
		PageSize:       pageSize,
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ValidationErrorResponse(c, err)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/parcels")
	defer cancel()

	result, err := h.flow.ListByRecipient(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list parcels", "LIST_RECIPIENT_PARCELS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Parcels retrieved successfully", result)
}
