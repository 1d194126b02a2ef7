package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/jashub/parcelhub/app/dto"
	businessflow "github.com/jashub/parcelhub/business_flow"
)

// ParcelAdminHandlerInterface defines the contract for admin parcel handlers
type ParcelAdminHandlerInterface interface {
	Receive(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	UpdateStatus(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	RegeneratePickupCode(c fiber.Ctx) error
}

// ParcelAdminHandler serves parcel intake and management for hub staff
type ParcelAdminHandler struct {
	baseHandler
	flow businessflow.ParcelAdminFlow
}

func NewParcelAdminHandler(flow businessflow.ParcelAdminFlow) *ParcelAdminHandler {
	return &ParcelAdminHandler{baseHandler: newBaseHandler(), flow: flow}
}

// Receive Parcel
// @Description Register a parcel arriving at the hub. Returns the pickup code once; only its hash is stored. The recipient is notified by email and, when a phone is given, SMS.
// @Tags Admin Parcels
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.ReceiveParcelRequest true "Parcel details"
// @Success 201 {object} dto.APIResponse{data=dto.ReceiveParcelResponse} "Parcel received"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Missing or invalid API key"
// @Failure 409 {object} dto.APIResponse "Tracking number already exists"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/parcels [post]
func (h *ParcelAdminHandler) Receive(c fiber.Ctx) error {
	var req dto.ReceiveParcelRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/parcels")
	defer cancel()

	result, err := h.flow.Receive(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to receive parcel", "RECEIVE_PARCEL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Parcel received successfully", result)
}

// List Parcels
// @Description List parcels with filters, newest first, each priced now (or at collection)
// @Tags Admin Parcels
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Received, Collected or Returned"
// @Param courier_name query string false "Exact courier name"
// @Param category query string false "Parcels carrying this category"
// @Param recipient_email query string false "Recipient email"
// @Param tracking_number_prefix query string false "Tracking number prefix"
// @Param received_from query string false "Intake from (RFC3339 or YYYY-MM-DD)"
// @Param received_to query string false "Intake to, inclusive (RFC3339 or YYYY-MM-DD)"
// @Param page query integer false "Page number (default: 1)"
// @Param page_size query integer false "Items per page (default: 20, max: 100)"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListParcelsResponse} "Parcels retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Failure 401 {object} dto.APIResponse "Missing or invalid API key"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/admin/parcels [get]
func (h *ParcelAdminHandler) List(c fiber.Ctx) error {
	from, err := dateParam(c, "received_from", false)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date", "INVALID_DATE", err.Error())
	}
	to, err := dateParam(c, "received_to", true)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date", "INVALID_DATE", err.Error())
	}
	page, pageSize := pageParams(c)

	req := dto.AdminListParcelsRequest{
		Status:               optionalQuery(c, "status"),
		CourierName:          optionalQuery(c, "courier_name"),
		Category:             optionalQuery(c, "category"),
		RecipientEmail:       optionalQuery(c, "recipient_email"),
		TrackingNumberPrefix: optionalQuery(c, "tracking_number_prefix"),
		ReceivedFrom:         from,
		ReceivedTo:           to,
		Page:                 page,
		PageSize:             pageSize,
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ValidationErrorResponse(c, err)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/parcels")
	defer cancel()

	result, err := h.flow.List(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list parcels", "ADMIN_LIST_PARCELS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Parcels retrieved successfully", result)
}

// Get Parcel
// @Description Full parcel record with timeline, pricing and payment
// @Tags Admin Parcels
// @Produce json
// @Security ApiKeyAuth
// @Param uuid path string true "Parcel UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ParcelResponse} "Parcel retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid UUID"
// @Failure 404 {object} dto.APIResponse "Parcel not found"
// @Router /api/v1/admin/parcels/{uuid} [get]
func (h *ParcelAdminHandler) Get(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/parcels/:uuid")
	defer cancel()

	result, err := h.flow.Get(ctx, c.Params("uuid"), h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to get parcel", "GET_PARCEL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Parcel retrieved successfully", result)
}

// Update Parcel
// @Description Change descriptive fields of an uncollected parcel. Omitted fields are kept; clear_base_price returns to weight pricing.
// @Tags Admin Parcels
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param uuid path string true "Parcel UUID"
// @Param request body dto.UpdateParcelRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.ParcelResponse} "Parcel updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error or nothing to update"
// @Failure 404 {object} dto.APIResponse "Parcel not found"
// @Failure 409 {object} dto.APIResponse "Parcel already collected"
// @Router /api/v1/admin/parcels/{uuid} [put]
func (h *ParcelAdminHandler) Update(c fiber.Ctx) error {
	var req dto.UpdateParcelRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}
	req.UUID = c.Params("uuid")

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/parcels/:uuid")
	defer cancel()

	result, err := h.flow.Update(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to update parcel", "UPDATE_PARCEL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Parcel updated successfully", result)
}

// UpdateStatus Parcel
// @Description Move a parcel between Received and Returned. Collected is set only by payment.
// @Tags Admin Parcels
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param uuid path string true "Parcel UUID"
// @Param request body dto.UpdateParcelStatusRequest true "New status"
// @Success 200 {object} dto.APIResponse{data=dto.ParcelResponse} "Parcel status updated successfully"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Parcel not found"
// @Failure 409 {object} dto.APIResponse "Transition not allowed"
// @Router /api/v1/admin/parcels/{uuid}/status [patch]
func (h *ParcelAdminHandler) UpdateStatus(c fiber.Ctx) error {
	var req dto.UpdateParcelStatusRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}
	req.UUID = c.Params("uuid")

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/parcels/:uuid/status")
	defer cancel()

	result, err := h.flow.UpdateStatus(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to update parcel status", "UPDATE_PARCEL_STATUS_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Parcel status updated successfully", result)
}

// Delete Parcel
// @Description Remove a parcel registered by mistake. Collected parcels cannot be deleted.
// @Tags Admin Parcels
// @Produce json
// @Security ApiKeyAuth
// @Param uuid path string true "Parcel UUID"
// @Success 200 {object} dto.APIResponse{data=dto.DeleteParcelResponse} "Parcel deleted successfully"
// @Failure 404 {object} dto.APIResponse "Parcel not found"
// @Failure 409 {object} dto.APIResponse "Parcel already collected"
// @Router /api/v1/admin/parcels/{uuid} [delete]
func (h *ParcelAdminHandler) Delete(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/parcels/:uuid")
	defer cancel()

	result, err := h.flow.Delete(ctx, c.Params("uuid"), h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to delete parcel", "DELETE_PARCEL_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Parcel deleted successfully", result)
}

// RegeneratePickupCode Parcel
// @Description Issue a new pickup code and send it to the recipient again. The old code stops working.
// @Tags Admin Parcels
// @Produce json
// @Security ApiKeyAuth
// @Param uuid path string true "Parcel UUID"
// @Success 200 {object} dto.APIResponse{data=dto.RegeneratePickupCodeResponse} "Pickup code regenerated"
// @Failure 404 {object} dto.APIResponse "Parcel not found"
// @Failure 409 {object} dto.APIResponse "Parcel collected or returned"
// @Router /api/v1/admin/parcels/{uuid}/pickup-code [post]
func (h *ParcelAdminHandler) RegeneratePickupCode(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/parcels/:uuid/pickup-code")
	defer cancel()

	result, err := h.flow.RegeneratePickupCode(ctx, c.Params("uuid"), h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to regenerate pickup code", "PICKUP_CODE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Pickup code regenerated successfully", result)
}
