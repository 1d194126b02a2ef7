// Package models contains domain entities and business models for the parcel hub
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jashub/parcelhub/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Parcel statuses
const (
	ParcelStatusReceived  = "Received"
	ParcelStatusCollected = "Collected"
	ParcelStatusReturned  = "Returned"
)

// ParcelStatuses lists every valid status value
var ParcelStatuses = []string{ParcelStatusReceived, ParcelStatusCollected, ParcelStatusReturned}

// Parcel is a package held at the hub awaiting collection.
// Table: parcels
// CreatedAt is the intake timestamp used for overdue pricing.
// BasePrice, when set and non-zero, replaces the weight-derived base price.
type Parcel struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID           uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	TrackingNumber string         `gorm:"type:varchar(64);uniqueIndex;not null" json:"tracking_number"`
	RecipientName  string         `gorm:"type:varchar(120);not null" json:"recipient_name"`
	RecipientEmail string         `gorm:"type:varchar(255);not null;index" json:"recipient_email"`
	RecipientPhone *string        `gorm:"type:varchar(32)" json:"recipient_phone,omitempty"`
	StudentID      *string        `gorm:"type:varchar(32);index" json:"student_id,omitempty"`
	CourierName    string         `gorm:"type:varchar(80);not null;index" json:"courier_name"`
	Categories     pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"categories"`
	BasePrice      *float64       `gorm:"type:numeric(10,2)" json:"base_price,omitempty"`
	ShelfLocation  *string        `gorm:"type:varchar(32)" json:"shelf_location,omitempty"`
	Remarks        *string        `gorm:"type:text" json:"remarks,omitempty"`
	Status         string         `gorm:"type:varchar(20);not null;default:'Received';index" json:"status"`
	PickupCodeHash string         `gorm:"type:varchar(100);not null" json:"-"`
	CollectedBy    *string        `gorm:"type:varchar(120)" json:"collected_by,omitempty"`
	CollectedAt    *time.Time     `json:"collected_at,omitempty"`
	ReminderMonths int            `gorm:"not null;default:0" json:"reminder_months"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Parcel) TableName() string { return "parcels" }

func (p *Parcel) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.Status == "" {
		p.Status = ParcelStatusReceived
	}
	if p.Categories == nil {
		p.Categories = pq.StringArray{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = utils.UTCNow()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return nil
}

// IsCollected reports whether the parcel has been paid for and picked up
func (p *Parcel) IsCollected() bool {
	return p.Status == ParcelStatusCollected
}

// ParcelFilter represents filter criteria for parcel queries
type ParcelFilter struct {
	ID                   *uint      `json:"id,omitempty"`
	UUID                 *uuid.UUID `json:"uuid,omitempty"`
	TrackingNumber       *string    `json:"tracking_number,omitempty"`
	TrackingNumberPrefix *string    `json:"tracking_number_prefix,omitempty"`
	RecipientEmail       *string    `json:"recipient_email,omitempty"`
	StudentID            *string    `json:"student_id,omitempty"`
	CourierName          *string    `json:"courier_name,omitempty"`
	Category             *string    `json:"category,omitempty"`
	Status               *string    `json:"status,omitempty"`
	ExcludeStatus        *string    `json:"exclude_status,omitempty"`
	CreatedAfter         *time.Time `json:"created_after,omitempty"`
	CreatedBefore        *time.Time `json:"created_before,omitempty"`
}

// ParcelCursor is a keyset position in (created_at, id) order
type ParcelCursor struct {
	CreatedAt time.Time
	ID        uint
}

// CursorOf returns the position just after p
func CursorOf(p *Parcel) *ParcelCursor {
	return &ParcelCursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

// ParcelStatusCount is one row of a per-status aggregate
type ParcelStatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// CourierCount is one row of a per-courier aggregate
type CourierCount struct {
	CourierName string `json:"courier_name"`
	Count       int64  `json:"count"`
}
