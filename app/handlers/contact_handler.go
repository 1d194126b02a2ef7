package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/jashub/parcelhub/app/dto"
	businessflow "github.com/jashub/parcelhub/business_flow"
)

// ContactHandlerInterface defines the contract for contact form handlers
type ContactHandlerInterface interface {
	Captcha(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	AdminList(c fiber.Ctx) error
	MarkRead(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
}

// ContactHandler serves the public contact form and the admin inbox
type ContactHandler struct {
	baseHandler
	flow businessflow.ContactFlow
}

func NewContactHandler(flow businessflow.ContactFlow) *ContactHandler {
	return &ContactHandler{baseHandler: newBaseHandler(), flow: flow}
}

// Captcha Contact
// @Description Get a rotate captcha challenge to solve before sending a message
// @Tags Contact
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.CaptchaChallengeResponse} "Challenge generated"
// @Failure 500 {object} dto.APIResponse "Captcha unavailable"
// @Router /api/v1/contact/captcha [get]
func (h *ContactHandler) Captcha(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/contact/captcha")
	defer cancel()

	result, err := h.flow.Captcha(ctx, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to generate captcha", "CAPTCHA_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Captcha generated successfully", result)
}

// Create Contact
// @Description Send a message to the hub staff
// @Tags Contact
// @Accept json
// @Produce json
// @Param request body dto.CreateContactMessageRequest true "Message"
// @Success 201 {object} dto.APIResponse{data=dto.CreateContactMessageResponse} "Message sent"
// @Failure 400 {object} dto.APIResponse "Validation error or wrong captcha"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/contact [post]
func (h *ContactHandler) Create(c fiber.Ctx) error {
	var req dto.CreateContactMessageRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/contact")
	defer cancel()

	result, err := h.flow.Create(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to send message", "CONTACT_CREATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Message sent successfully", result)
}

// AdminList Contact
// @Description List contact messages, newest first, with the unread count
// @Tags Admin Contact
// @Produce json
// @Security ApiKeyAuth
// @Param unread query boolean false "Only unread (true) or only read (false)"
// @Param email query string false "Sender email"
// @Param page query integer false "Page number (default: 1)"
// @Param page_size query integer false "Items per page (default: 20, max: 100)"
// @Success 200 {object} dto.APIResponse{data=dto.AdminListContactMessagesResponse} "Messages retrieved successfully"
// @Failure 400 {object} dto.APIResponse "Invalid filter"
// @Failure 401 {object} dto.APIResponse "Missing or invalid API key"
// @Router /api/v1/admin/contact-messages [get]
func (h *ContactHandler) AdminList(c fiber.Ctx) error {
	page, pageSize := pageParams(c)
	req := dto.AdminListContactMessagesRequest{
		Email:    optionalQuery(c, "email"),
		Page:     page,
		PageSize: pageSize,
	}
	if v := c.Query("unread"); v != "" {
		unread, err := strconv.ParseBool(v)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid unread filter", "INVALID_FILTER", "unread must be true or false")
		}
		req.Unread = &unread
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.ValidationErrorResponse(c, err)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/contact-messages")
	defer cancel()

	result, err := h.flow.AdminList(ctx, &req, h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to list messages", "CONTACT_LIST_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Messages retrieved successfully", result)
}

// MarkRead Contact
// @Description Mark a contact message as read
// @Tags Admin Contact
// @Produce json
// @Security ApiKeyAuth
// @Param uuid path string true "Message UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ContactMessageResponse} "Message marked as read"
// @Failure 404 {object} dto.APIResponse "Message not found"
// @Router /api/v1/admin/contact-messages/{uuid}/read [patch]
func (h *ContactHandler) MarkRead(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/contact-messages/:uuid/read")
	defer cancel()

	result, err := h.flow.MarkRead(ctx, c.Params("uuid"), h.metadata(c))
	if err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to update message", "CONTACT_UPDATE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Message marked as read", result)
}

// Delete Contact
// @Description Delete a contact message
// @Tags Admin Contact
// @Produce json
// @Security ApiKeyAuth
// @Param uuid path string true "Message UUID"
// @Success 200 {object} dto.APIResponse "Message deleted"
// @Failure 404 {object} dto.APIResponse "Message not found"
// @Router /api/v1/admin/contact-messages/{uuid} [delete]
func (h *ContactHandler) Delete(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/admin/contact-messages/:uuid")
	defer cancel()

	if err := h.flow.Delete(ctx, c.Params("uuid"), h.metadata(c)); err != nil {
		return h.BusinessErrorResponse(c, err, "Failed to delete message", "CONTACT_DELETE_FAILED")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Message deleted successfully", nil)
}
