// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/jashub/parcelhub/app/dto"
	businessflow "github.com/jashub/parcelhub/business_flow"
	"github.com/jashub/parcelhub/pricing"
	"github.com/jashub/parcelhub/utils"
)

const (
	requestTimeout   = 30 * time.Second
	freeTagMaxLength = 40
)

var trackingNumberPattern = regexp.MustCompile(`^[A-Za-z0-9-]{3,64}$`)

// baseHandler carries what every handler shares: validation and the response envelope
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: newValidator()}
}

// newValidator registers the parcel specific rules on top of the stock validator
func newValidator() *validator.Validate {
	v := validator.New()

	// tracking numbers are 3-64 letters, digits or dashes
	_ = v.RegisterValidation("tracking_number", func(fl validator.FieldLevel) bool {
		return trackingNumberPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})

	// a category is a weight label or a free tag such as a month or "Fragile"
	_ = v.RegisterValidation("parcel_category", func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		if pricing.IsWeightCategory(value) {
			return true
		}
		return value != "" && len([]rune(value)) <= freeTagMaxLength
	})

	// prices are stored as NUMERIC(10,2), so finer amounts would be rounded away
	_ = v.RegisterValidation("cents", func(fl validator.FieldLevel) bool {
		scaled := fl.Field().Float() * 100
		return math.Abs(scaled-math.Round(scaled)) < 1e-6
	})

	return v
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ValidationErrorResponse renders validator errors as a list of messages
func (h *baseHandler) ValidationErrorResponse(c fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, getValidationErrorMessage(fe))
	}
	return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
}

// bindJSON decodes and validates the body; a non-nil error has already been written to the client
func (h *baseHandler) bindJSON(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		return false, h.ValidationErrorResponse(c, err)
	}
	return true, nil
}

// BusinessErrorResponse maps a flow error to an HTTP status. Unknown errors become 500 with the fallback code.
func (h *baseHandler) BusinessErrorResponse(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsParcelNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Parcel not found", "PARCEL_NOT_FOUND", nil)
	case businessflow.IsContactMessageNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Contact message not found", "CONTACT_MESSAGE_NOT_FOUND", nil)
	case businessflow.IsInvalidParcelID(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid parcel identifier", "INVALID_PARCEL_ID", nil)
	case businessflow.IsTrackingNumberExists(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Tracking number already exists", "TRACKING_NUMBER_EXISTS", nil)
	case businessflow.IsParcelAlreadyCollected(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Parcel has already been collected", "PARCEL_ALREADY_COLLECTED", nil)
	case businessflow.IsParcelReturned(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Parcel has been returned to the courier", "PARCEL_RETURNED", nil)
	case businessflow.IsParcelCollectedImmutable(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Collected parcels cannot be changed", "PARCEL_COLLECTED_IMMUTABLE", nil)
	case businessflow.IsCollectionInProgress(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Another collection for this parcel is in progress", "COLLECTION_IN_PROGRESS", nil)
	case businessflow.IsInvalidStatusTransition(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Invalid status transition", "INVALID_STATUS_TRANSITION", err.Error())
	case businessflow.IsInvalidPickupCode(err):
		return h.ErrorResponse(c, fiber.StatusForbidden, "Invalid pickup code", "INVALID_PICKUP_CODE", nil)
	case businessflow.IsReceiptExpired(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Receipt has expired", "RECEIPT_EXPIRED", nil)
	case businessflow.IsInvalidReceipt(err):
		return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Receipt is not valid", "INVALID_RECEIPT", nil)
	case businessflow.IsInvalidCaptcha(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Captcha verification failed", "INVALID_CAPTCHA", nil)
	case businessflow.IsNothingToUpdate(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "At least one field must be provided", "NOTHING_TO_UPDATE", nil)
	case businessflow.IsInvalidPage(err), businessflow.IsInvalidPageSize(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination", "INVALID_PAGINATION", err.Error())
	case businessflow.IsStartDateAfterEndDate(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Start date must be before end date", "START_DATE_AFTER_END_DATE", nil)
	}

	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Code != "" {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, be.Code, nil)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

// metadata collects client details and the admin actor set by the auth middleware
func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	md := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	md.SetRequestID(requestid.FromContext(c))
	if actor, ok := c.Locals(utils.ActorKey).(string); ok {
		md.SetActor(actor)
	}
	return md
}

// createRequestContext creates a context with a timeout and request-scoped values
func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, requestTimeout)
	if actor, ok := c.Locals(utils.ActorKey).(string); ok {
		ctx = context.WithValue(ctx, utils.ActorKey, actor)
	}
	return ctx, cancel
}

// pageParams reads page and page_size; malformed values fall back to defaults
func pageParams(c fiber.Ctx) (uint, uint) {
	var page, pageSize uint
	if v := c.Query("page"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			page = uint(n)
		}
	}
	if v := c.Query("page_size"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			pageSize = uint(n)
		}
	}
	return page, pageSize
}

// dateParam reads an optional RFC3339 or YYYY-MM-DD query parameter
func dateParam(c fiber.Ctx, name string, endOfDay bool) (*time.Time, error) {
	t, err := utils.ParseDateParam(c.Query(name), endOfDay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

func optionalQuery(c fiber.Ctx, name string) *string {
	if v := strings.TrimSpace(c.Query(name)); v != "" {
		return &v
	}
	return nil
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "uuid":
		return err.Field() + " must be a valid UUID"
	case "tracking_number":
		return err.Field() + " must be 3-64 letters, digits or dashes"
	case "parcel_category":
		return err.Field() + " must be a weight label (" + strings.Join(pricing.WeightCategories(), ", ") + ") or a tag of at most 40 characters"
	case "cents":
		return err.Field() + " must have at most 2 decimal places"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
