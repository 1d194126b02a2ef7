// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/jashub/parcelhub/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// ParcelRepository defines operations for parcels
type ParcelRepository interface {
	Repository[models.Parcel, models.ParcelFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Parcel, error)
	ByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Parcel, error)
	// Update rewrites the descriptive fields; false means the parcel has been collected
	Update(ctx context.Context, parcel *models.Parcel) (bool, error)
	// UpdateStatus moves a parcel from one status to another; false means the parcel was not in from
	UpdateStatus(ctx context.Context, id uint, from, to string) (bool, error)
	// MarkCollected atomically sets status and owner; false means the parcel was no longer collectable
	MarkCollected(ctx context.Context, id uint, collectedBy string, collectedAt time.Time) (bool, error)
	UpdatePickupCodeHash(ctx context.Context, id uint, hash string) error
	UpdateReminderMonths(ctx context.Context, id uint, months int) error
	// DeleteUncollected removes a parcel unless it has been collected
	DeleteUncollected(ctx context.Context, id uint) (bool, error)
	// ListOverdueCandidates pages Received parcels taken in before the cutoff, oldest first, starting after the cursor
	ListOverdueCandidates(ctx context.Context, receivedBefore time.Time, after *models.ParcelCursor, limit int) ([]*models.Parcel, error)
	StatusCounts(ctx context.Context, from, to *time.Time) ([]models.ParcelStatusCount, error)
	CourierCounts(ctx context.Context, from, to *time.Time) ([]models.CourierCount, error)
}

// ParcelEventRepository defines operations for the parcel timeline
type ParcelEventRepository interface {
	Save(ctx context.Context, event *models.ParcelEvent) error
	ListByParcel(ctx context.Context, parcelID uint) ([]*models.ParcelEvent, error)
}

// ParcelPaymentRepository defines operations for collection payments
type ParcelPaymentRepository interface {
	Repository[models.ParcelPayment, models.ParcelPaymentFilter]
	ByParcelID(ctx context.Context, parcelID uint) (*models.ParcelPayment, error)
	ByParcelIDs(ctx context.Context, parcelIDs []uint) (map[uint]*models.ParcelPayment, error)
	Totals(ctx context.Context, filter models.ParcelPaymentFilter) (*models.RevenueTotals, error)
}

// ContactMessageRepository defines operations for contact messages
type ContactMessageRepository interface {
	Repository[models.ContactMessage, models.ContactMessageFilter]
	ByUUID(ctx context.Context, uuid string) (*models.ContactMessage, error)
	MarkRead(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) (bool, error)
}
