package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jashub/parcelhub/utils"
	"gorm.io/gorm"
)

// ContactMessage is a message left through the public contact form.
// Table: contact_messages
type ContactMessage struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID      uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null;default:gen_random_uuid()" json:"uuid"`
	Name      string     `gorm:"type:varchar(120);not null" json:"name"`
	Email     string     `gorm:"type:varchar(255);not null" json:"email"`
	Subject   string     `gorm:"type:varchar(200);not null" json:"subject"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	IPAddress *string    `gorm:"type:varchar(64)" json:"ip_address,omitempty"`
	ReadAt    *time.Time `gorm:"index" json:"read_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (ContactMessage) TableName() string { return "contact_messages" }

func (m *ContactMessage) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = utils.UTCNow()
	}
	return nil
}

// ContactMessageFilter represents filter criteria for contact message queries
type ContactMessageFilter struct {
	UUID   *uuid.UUID `json:"uuid,omitempty"`
	Email  *string    `json:"email,omitempty"`
	Unread *bool      `json:"unread,omitempty"`
}
