package models

import (
	"time"

	"github.com/jashub/parcelhub/utils"
	"gorm.io/gorm"
)

// ParcelEvent is one entry of a parcel's tracking timeline.
// Table: parcel_events
// Rows are append-only.
type ParcelEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ParcelID  uint      `gorm:"not null;index" json:"parcel_id"`
	Status    string    `gorm:"type:varchar(20);not null" json:"status"`
	Note      string    `gorm:"type:text;not null;default:''" json:"note"`
	Actor     string    `gorm:"type:varchar(120);not null;default:'system'" json:"actor"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Parcel *Parcel `gorm:"foreignKey:ParcelID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

func (ParcelEvent) TableName() string { return "parcel_events" }

func (e *ParcelEvent) BeforeCreate(tx *gorm.DB) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = utils.UTCNow()
	}
	if e.Actor == "" {
		e.Actor = "system"
	}
	return nil
}
