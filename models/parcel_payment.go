package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jashub/parcelhub/utils"
	"gorm.io/gorm"
)

// Payment methods accepted by the simulated checkout
const (
	PaymentMethodCard    = "card"
	PaymentMethodEWallet = "ewallet"
	PaymentMethodCash    = "cash"
)

// ParcelPayment is the pricing snapshot charged when a parcel was collected.
// Table: parcel_payments
// One row per parcel; the unique parcel_id index backs the single-collection rule.
type ParcelPayment struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID           uuid.UUID `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	ParcelID       uint      `gorm:"not null;uniqueIndex" json:"parcel_id"`
	TrackingNumber string    `gorm:"type:varchar(64);not null;index" json:"tracking_number"`
	Method         string    `gorm:"type:varchar(20);not null" json:"method"`
	PayerName      string    `gorm:"type:varchar(120);not null" json:"payer_name"`
	PayerStudentID *string   `gorm:"type:varchar(32)" json:"payer_student_id,omitempty"`
	BasePrice      float64   `gorm:"type:numeric(10,2);not null" json:"base_price"`
	OverdueCharge  float64   `gorm:"type:numeric(10,2);not null" json:"overdue_charge"`
	TotalPrice     float64   `gorm:"type:numeric(10,2);not null" json:"total_price"`
	DaysHeld       int       `gorm:"not null" json:"days_held"`
	ReceiptID      string    `gorm:"type:varchar(64);not null;uniqueIndex" json:"receipt_id"`
	PaidAt         time.Time `gorm:"not null;index" json:"paid_at"`
	CreatedAt      time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Parcel *Parcel `gorm:"foreignKey:ParcelID;references:ID;constraint:OnDelete:RESTRICT" json:"-"`
}

func (ParcelPayment) TableName() string { return "parcel_payments" }

func (p *ParcelPayment) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.ReceiptID == "" {
		p.ReceiptID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ParcelPaymentFilter represents filter criteria for payment queries
type ParcelPaymentFilter struct {
	ParcelID       *uint      `json:"parcel_id,omitempty"`
	TrackingNumber *string    `json:"tracking_number,omitempty"`
	Method         *string    `json:"method,omitempty"`
	PaidAfter      *time.Time `json:"paid_after,omitempty"`
	PaidBefore     *time.Time `json:"paid_before,omitempty"`
}

// RevenueTotals aggregates collected payments
type RevenueTotals struct {
	Count        int64   `json:"count"`
	BaseTotal    float64 `json:"base_total"`
	OverdueTotal float64 `json:"overdue_total"`
	RevenueTotal float64 `json:"revenue_total"`
}
