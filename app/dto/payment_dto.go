package dto

import "time"

// PayParcelRequest simulates paying for and collecting a parcel
type PayParcelRequest struct {
	TrackingNumber string  `json:"tracking_number" validate:"required,tracking_number"`
	PickupCode     string  `json:"pickup_code" validate:"required,len=6,numeric"`
	Method         string  `json:"method" validate:"required,oneof=card ewallet cash"`
	PayerName      string  `json:"payer_name" validate:"required,min=2,max=120"`
	PayerStudentID *string `json:"payer_student_id,omitempty" validate:"omitempty,max=32"`
}

// PayParcelResponse confirms collection and carries a signed receipt
type PayParcelResponse struct {
	Message        string     `json:"message"`
	ReceiptID      string     `json:"receipt_id"`
	Receipt        string     `json:"receipt"`
	TrackingNumber string     `json:"tracking_number"`
	Status         string     `json:"status"`
	Method         string     `json:"method"`
	Pricing        PricingDTO `json:"pricing"`
	PaidAt         string     `json:"paid_at"`
}

// VerifyReceiptRequest carries a receipt issued at collection
type VerifyReceiptRequest struct {
	Receipt string `json:"receipt" validate:"required,max=4096"`
}

// VerifyReceiptResponse lists what the receipt attests
type VerifyReceiptResponse struct {
	Valid          bool    `json:"valid"`
	ReceiptID      string  `json:"receipt_id"`
	TrackingNumber string  `json:"tracking_number"`
	PayerName      string  `json:"payer_name"`
	Method         string  `json:"method"`
	BasePrice      float64 `json:"base_price"`
	OverdueCharge  float64 `json:"overdue_charge"`
	TotalPrice     float64 `json:"total_price"`
	DaysHeld       int     `json:"days_held"`
	Currency       string  `json:"currency"`
	PaidAt         string  `json:"paid_at"`
	ExpiresAt      string  `json:"expires_at"`
}

// PaymentDTO is a stored collection payment
type PaymentDTO struct {
	UUID           string  `json:"uuid"`
	ReceiptID      string  `json:"receipt_id"`
	TrackingNumber string  `json:"tracking_number"`
	Method         string  `json:"method"`
	PayerName      string  `json:"payer_name"`
	PayerStudentID *string `json:"payer_student_id,omitempty"`
	BasePrice      float64 `json:"base_price"`
	OverdueCharge  float64 `json:"overdue_charge"`
	TotalPrice     float64 `json:"total_price"`
	DaysHeld       int     `json:"days_held"`
	PaidAt         string  `json:"paid_at"`
}

// AdminListPaymentsRequest filters payments; Paid* bounds are inclusive
type AdminListPaymentsRequest struct {
	Method         *string    `json:"method,omitempty" validate:"omitempty,oneof=card ewallet cash"`
	TrackingNumber *string    `json:"tracking_number,omitempty" validate:"omitempty,max=64"`
	PaidFrom       *time.Time `json:"paid_from,omitempty"`
	PaidTo         *time.Time `json:"paid_to,omitempty"`
	Page           uint       `json:"page,omitempty"`
	PageSize       uint       `json:"page_size,omitempty"`
}

// AdminListPaymentsResponse is a page of payments plus totals over the whole filter
type AdminListPaymentsResponse struct {
	Message    string         `json:"message"`
	Items      []PaymentDTO   `json:"items"`
	Totals     RevenueDTO     `json:"totals"`
	Pagination PaginationInfo `json:"pagination"`
}

// RevenueDTO splits collected revenue into base and overdue parts
type RevenueDTO struct {
	Count        int64   `json:"count"`
	BaseTotal    float64 `json:"base_total"`
	OverdueTotal float64 `json:"overdue_total"`
	RevenueTotal float64 `json:"revenue_total"`
	Currency     string  `json:"currency"`
}
