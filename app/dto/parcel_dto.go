package dto

import "time"

// PricingDTO is the price of a parcel as of EvaluatedAt.
// For collected parcels it is the snapshot that was paid and IsFinal is true.
type PricingDTO struct {
	BasePrice     float64 `json:"base_price"`
	OverdueCharge float64 `json:"overdue_charge"`
	TotalPrice    float64 `json:"total_price"`
	DaysHeld      int     `json:"days_held"`
	OverdueMonths int     `json:"overdue_months"`
	Currency      string  `json:"currency"`
	EvaluatedAt   string  `json:"evaluated_at"`
	IsFinal       bool    `json:"is_final"`
}

// ParcelEventDTO is one timeline entry
type ParcelEventDTO struct {
	Status    string `json:"status"`
	Note      string `json:"note,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TrackParcelResponse is the public view of a parcel. The recipient name is masked.
type TrackParcelResponse struct {
	TrackingNumber string           `json:"tracking_number"`
	RecipientName  string           `json:"recipient_name"`
	CourierName    string           `json:"courier_name"`
	Categories     []string         `json:"categories"`
	Status         string           `json:"status"`
	ShelfLocation  *string          `json:"shelf_location,omitempty"`
	ReceivedAt     string           `json:"received_at"`
	CollectedAt    *string          `json:"collected_at,omitempty"`
	Timeline       []ParcelEventDTO `json:"timeline,omitempty"`
	Pricing        PricingDTO       `json:"pricing"`
}

// QuoteResponse is the price a recipient would pay right now
type QuoteResponse struct {
	TrackingNumber string     `json:"tracking_number"`
	Status         string     `json:"status"`
	Pricing        PricingDTO `json:"pricing"`
}

// ListRecipientParcelsRequest lists uncollected parcels addressed to an email
type ListRecipientParcelsRequest struct {
	RecipientEmail string `json:"recipient_email" validate:"required,email,max=255"`
	Page           uint   `json:"page,omitempty"`
	PageSize       uint   `json:"page_size,omitempty"`
}

// ListRecipientParcelsResponse returns the recipient's parcels, each priced now
type ListRecipientParcelsResponse struct {
	Message    string                `json:"message"`
	Items      []TrackParcelResponse `json:"items"`
	TotalDue   float64               `json:"total_due"`
	Pagination PaginationInfo        `json:"pagination"`
}

// ReceiveParcelRequest registers a parcel arriving at the hub.
// Categories may mix weight labels (1kg, 3kg, 5kg, Above 5kg) with free tags like a month or "Fragile".
// BasePrice overrides the weight-derived base price when non-zero.
type ReceiveParcelRequest struct {
	TrackingNumber string   `json:"tracking_number" validate:"required,tracking_number"`
	RecipientName  string   `json:"recipient_name" validate:"required,min=2,max=120"`
	RecipientEmail string   `json:"recipient_email" validate:"required,email,max=255"`
	RecipientPhone *string  `json:"recipient_phone,omitempty" validate:"omitempty,min=8,max=20"`
	StudentID      *string  `json:"student_id,omitempty" validate:"omitempty,max=32"`
	CourierName    string   `json:"courier_name" validate:"required,max=80"`
	Categories     []string `json:"categories,omitempty" validate:"omitempty,max=10,dive,parcel_category"`
	BasePrice      *float64 `json:"base_price,omitempty" validate:"omitempty,gte=0,lte=10000,cents"`
	ShelfLocation  *string  `json:"shelf_location,omitempty" validate:"omitempty,max=32"`
	Remarks        *string  `json:"remarks,omitempty" validate:"omitempty,max=1000"`
}

// ReceiveParcelResponse returns the stored parcel and the pickup code to print on the slip
type ReceiveParcelResponse struct {
	Message    string         `json:"message"`
	Parcel     AdminParcelDTO `json:"parcel"`
	PickupCode string         `json:"pickup_code"`
}

// AdminParcelDTO is the full admin view of a parcel
type AdminParcelDTO struct {
	ID             uint             `json:"id"`
	UUID           string           `json:"uuid"`
	TrackingNumber string           `json:"tracking_number"`
	RecipientName  string           `json:"recipient_name"`
	RecipientEmail string           `json:"recipient_email"`
	RecipientPhone *string          `json:"recipient_phone,omitempty"`
	StudentID      *string          `json:"student_id,omitempty"`
	CourierName    string           `json:"courier_name"`
	Categories     []string         `json:"categories"`
	BasePrice      *float64         `json:"base_price,omitempty"`
	ShelfLocation  *string          `json:"shelf_location,omitempty"`
	Remarks        *string          `json:"remarks,omitempty"`
	Status         string           `json:"status"`
	CollectedBy    *string          `json:"collected_by,omitempty"`
	CollectedAt    *string          `json:"collected_at,omitempty"`
	ReminderMonths int              `json:"reminder_months"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
	Pricing        PricingDTO       `json:"pricing"`
	Payment        *PaymentDTO      `json:"payment,omitempty"`
	Timeline       []ParcelEventDTO `json:"timeline,omitempty"`
}

// AdminListParcelsRequest filters the admin parcel listing; Received* bounds are inclusive
type AdminListParcelsRequest struct {
	Status               *string    `json:"status,omitempty" validate:"omitempty,oneof=Received Collected Returned"`
	CourierName          *string    `json:"courier_name,omitempty" validate:"omitempty,max=80"`
	Category             *string    `json:"category,omitempty" validate:"omitempty,max=40"`
	RecipientEmail       *string    `json:"recipient_email,omitempty" validate:"omitempty,max=255"`
	TrackingNumberPrefix *string    `json:"tracking_number_prefix,omitempty" validate:"omitempty,max=64"`
	ReceivedFrom         *time.Time `json:"received_from,omitempty"`
	ReceivedTo           *time.Time `json:"received_to,omitempty"`
	Page                 uint       `json:"page,omitempty"`
	PageSize             uint       `json:"page_size,omitempty"`
}

// AdminListParcelsResponse is a page of parcels
type AdminListParcelsResponse struct {
	Message    string           `json:"message"`
	Items      []AdminParcelDTO `json:"items"`
	Pagination PaginationInfo   `json:"pagination"`
}

// UpdateParcelRequest changes descriptive fields of an uncollected parcel.
// Nil fields are left as they are. A non-nil empty Categories clears them;
// ClearBasePrice drops the override and returns to weight pricing.
type UpdateParcelRequest struct {
	UUID           string   `json:"-"`
	RecipientName  *string  `json:"recipient_name,omitempty" validate:"omitempty,min=2,max=120"`
	RecipientEmail *string  `json:"recipient_email,omitempty" validate:"omitempty,email,max=255"`
	RecipientPhone *string  `json:"recipient_phone,omitempty" validate:"omitempty,min=8,max=20"`
	StudentID      *string  `json:"student_id,omitempty" validate:"omitempty,max=32"`
	CourierName    *string  `json:"courier_name,omitempty" validate:"omitempty,min=1,max=80"`
	Categories     []string `json:"categories,omitempty" validate:"omitempty,max=10,dive,parcel_category"`
	BasePrice      *float64 `json:"base_price,omitempty" validate:"omitempty,gte=0,lte=10000,cents"`
	ClearBasePrice bool     `json:"clear_base_price,omitempty"`
	ShelfLocation  *string  `json:"shelf_location,omitempty" validate:"omitempty,max=32"`
	Remarks        *string  `json:"remarks,omitempty" validate:"omitempty,max=1000"`
}

// UpdateParcelStatusRequest moves a parcel between Received and Returned
type UpdateParcelStatusRequest struct {
	UUID   string `json:"-"`
	Status string `json:"status" validate:"required,oneof=Received Returned"`
	Note   string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// ParcelResponse wraps a single parcel
type ParcelResponse struct {
	Message string         `json:"message"`
	Parcel  AdminParcelDTO `json:"parcel"`
}

// DeleteParcelResponse confirms a deletion
type DeleteParcelResponse struct {
	Message string `json:"message"`
	UUID    string `json:"uuid"`
}

// RegeneratePickupCodeResponse returns the new pickup code
type RegeneratePickupCodeResponse struct {
	Message        string `json:"message"`
	TrackingNumber string `json:"tracking_number"`
	PickupCode     string `json:"pickup_code"`
}
