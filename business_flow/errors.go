package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Parcel errors
	ErrParcelNotFound           = errors.New("parcel not found")
	ErrTrackingNumberExists     = errors.New("tracking number already exists")
	ErrParcelAlreadyCollected   = errors.New("parcel has already been collected")
	ErrParcelReturned           = errors.New("parcel has been returned to the courier")
	ErrParcelCollectedImmutable = errors.New("collected parcels cannot be changed")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrNothingToUpdate          = errors.New("at least one field must be provided for update")
	ErrInvalidParcelID          = errors.New("invalid parcel identifier")

	// Collection errors
	ErrInvalidPickupCode    = errors.New("invalid pickup code")
	ErrCollectionInProgress = errors.New("another collection for this parcel is in progress")
	ErrInvalidReceipt       = errors.New("invalid receipt")
	ErrReceiptExpired       = errors.New("receipt has expired")

	// Contact errors
	ErrInvalidCaptcha         = errors.New("captcha verification failed")
	ErrContactMessageNotFound = errors.New("contact message not found")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsParcelNotFound(err error) bool {
	return errors.Is(err, ErrParcelNotFound)
}

func IsTrackingNumberExists(err error) bool {
	return errors.Is(err, ErrTrackingNumberExists)
}

func IsParcelAlreadyCollected(err error) bool {
	return errors.Is(err, ErrParcelAlreadyCollected)
}

func IsParcelReturned(err error) bool {
	return errors.Is(err, ErrParcelReturned)
}

func IsParcelCollectedImmutable(err error) bool {
	return errors.Is(err, ErrParcelCollectedImmutable)
}

func IsInvalidStatusTransition(err error) bool {
	return errors.Is(err, ErrInvalidStatusTransition)
}

func IsNothingToUpdate(err error) bool {
	return errors.Is(err, ErrNothingToUpdate)
}

func IsInvalidParcelID(err error) bool {
	return errors.Is(err, ErrInvalidParcelID)
}

func IsInvalidPickupCode(err error) bool {
	return errors.Is(err, ErrInvalidPickupCode)
}

func IsCollectionInProgress(err error) bool {
	return errors.Is(err, ErrCollectionInProgress)
}

func IsInvalidReceipt(err error) bool {
	return errors.Is(err, ErrInvalidReceipt)
}

func IsReceiptExpired(err error) bool {
	return errors.Is(err, ErrReceiptExpired)
}

func IsInvalidCaptcha(err error) bool {
	return errors.Is(err, ErrInvalidCaptcha)
}

func IsContactMessageNotFound(err error) bool {
	return errors.Is(err, ErrContactMessageNotFound)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}
